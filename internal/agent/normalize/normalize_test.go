// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package normalize

import (
	"encoding/json"
	"testing"
)

var requiredKeys = []string{
	"answer", "products", "product_details", "stores",
	"policy_info", "comparison", "authentication", "end",
}

func assertSchema(t *testing.T, out map[string]any) {
	t.Helper()
	for _, k := range requiredKeys {
		if _, ok := out[k]; !ok {
			t.Errorf("missing required key %q", k)
		}
	}
	if _, ok := out["answer"].(string); !ok {
		t.Errorf("answer is not a string: %#v", out["answer"])
	}
	if _, ok := out["end"].(string); !ok {
		t.Errorf("end is not a string: %#v", out["end"])
	}
}

func TestNormalizeArbitraryInputs(t *testing.T) {
	inputs := []string{
		"",
		"plain text, no json at all",
		"{broken json",
		`[1, 2, 3]`,
		`{"answer": "ok"}`,
		"```json\n{\"answer\": \"fenced\"}\n```",
		`["noise", "{\"answer\": \"from array\"}"]`,
		`{"data": {"answer": "{\"answer\": \"inner\", \"products\": []}"}}`,
	}
	for _, in := range inputs {
		out := Normalize(in)
		if out == nil {
			t.Fatalf("nil output for input %q", in)
		}
		assertSchema(t, out)
	}
}

func TestNormalizeStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"answer\": \"ok\", \"products\": [], \"end\": \"bye\"}\n```"
	out := Normalize(raw)
	if out["answer"] != "ok" || out["end"] != "bye" {
		t.Errorf("fenced JSON not parsed: %#v", out)
	}
}

func TestNormalizeWellFormedIsStable(t *testing.T) {
	raw := `{
		"answer": "Here are two phones",
		"products": [{"product_name": "Samsung Galaxy M14", "product_mrp": "₹13,999"}],
		"product_details": {},
		"stores": [],
		"policy_info": {},
		"comparison": {"products": [], "criteria": [], "table": []},
		"authentication": {"required": false, "step": "verified", "message": ""},
		"end": "Anything else?"
	}`
	out := Normalize(raw)
	assertSchema(t, out)
	if out["answer"] != "Here are two phones" || out["end"] != "Anything else?" {
		t.Errorf("well-formed fields mutated: %#v", out)
	}
	products, ok := out["products"].([]any)
	if !ok || len(products) != 1 {
		t.Fatalf("products mutated: %#v", out["products"])
	}
	p := products[0].(map[string]any)
	if p["product_name"] != "Samsung Galaxy M14" {
		t.Errorf("product mutated: %#v", p)
	}
}

func TestNormalizeUnwrapsDataAnswer(t *testing.T) {
	inner := `{"answer": "unwrapped", "products": []}`
	outer := map[string]any{"data": map[string]any{"answer": inner}}
	raw, _ := json.Marshal(outer)

	out := Normalize(string(raw))
	if out["answer"] != "unwrapped" {
		t.Errorf("data.answer not unwrapped: %#v", out)
	}
}

func TestNormalizeUnwrapsDirectAnswer(t *testing.T) {
	inner := `{"answer": "level two", "stores": []}`
	raw, _ := json.Marshal(map[string]any{"answer": inner})

	out := Normalize(string(raw))
	if out["answer"] != "level two" {
		t.Errorf("answer nesting not unwrapped: %#v", out)
	}
}

func TestNormalizeKeepsPlainAnswerString(t *testing.T) {
	out := Normalize(`{"answer": "just a sentence, not JSON"}`)
	if out["answer"] != "just a sentence, not JSON" {
		t.Errorf("plain answer mangled: %#v", out)
	}
}

func TestNormalizeExtractsEmbeddedObject(t *testing.T) {
	raw := `Sure, here is the result: {"answer": "embedded", "products": []} hope that helps`
	out := Normalize(raw)
	if out["answer"] != "embedded" {
		t.Errorf("embedded object not extracted: %#v", out)
	}
}

func TestNormalizeParseFailureFallback(t *testing.T) {
	out := Normalize("total garbage without braces")
	assertSchema(t, out)
	if out["answer"] != parseFailAnswer {
		t.Errorf("expected parse failure answer, got %#v", out["answer"])
	}
}

func TestNormalizeRepairsProductDetailsOutput(t *testing.T) {
	raw := `{
		"answer": "details",
		"product_details": {"output": "{'product_name': 'boAt Rockerz 450', 'instock': True, 'del': None}"}
	}`
	out := Normalize(raw)
	details, ok := out["product_details"].(map[string]any)
	if !ok {
		t.Fatalf("product_details is not a map: %#v", out["product_details"])
	}
	if details["product_name"] != "boAt Rockerz 450" {
		t.Errorf("python literal not parsed: %#v", details)
	}
	if details["instock"] != true {
		t.Errorf("True not converted: %#v", details["instock"])
	}
	if v, present := details["del"]; !present || v != nil {
		t.Errorf("None not converted: %#v", details)
	}
}

func TestNormalizeLeavesUnparsableOutputAlone(t *testing.T) {
	raw := `{"answer": "details", "product_details": {"output": "not a literal at all"}}`
	out := Normalize(raw)
	details := out["product_details"].(map[string]any)
	if details["output"] != "not a literal at all" {
		t.Errorf("unparsable output should stay untouched: %#v", details)
	}
}

func TestNormalizeFillsComparisonTable(t *testing.T) {
	raw := `{
		"answer": "compare",
		"comparison": {
			"products": [
				{"product_name": "Samsung Galaxy M14 8GB RAM 128GB Storage"},
				{"product_name": "Vivo Y28 6GB RAM 64GB Storage"}
			],
			"criteria": ["RAM", "Storage"],
			"table": []
		}
	}`
	out := Normalize(raw)
	comp := out["comparison"].(map[string]any)
	table, ok := comp["table"].([]any)
	if !ok || len(table) != 2 {
		t.Fatalf("comparison table not built: %#v", comp["table"])
	}
	row := table[0].(map[string]any)
	if row["feature"] != "RAM" {
		t.Errorf("first row should be RAM: %#v", row)
	}
	if row["Samsung Galaxy M14 8GB RAM 128GB Storage"] != "8GB" {
		t.Errorf("RAM value missing: %#v", row)
	}
}

func TestParsePythonLiteral(t *testing.T) {
	v, ok := parsePythonLiteral(`{'a': 1, 'b': [True, False, None], 'c': "mixed 'quotes'"}`)
	if !ok {
		t.Fatal("expected a successful parse")
	}
	m := v.(map[string]any)
	if m["a"] != float64(1) {
		t.Errorf("number wrong: %#v", m["a"])
	}
	list := m["b"].([]any)
	if list[0] != true || list[1] != false || list[2] != nil {
		t.Errorf("constants wrong: %#v", list)
	}
	if m["c"] != "mixed 'quotes'" {
		t.Errorf("string wrong: %#v", m["c"])
	}

	if _, ok := parsePythonLiteral("plain words"); ok {
		t.Error("non-literal should fail")
	}
	if _, ok := parsePythonLiteral("{'unterminated: 1"); ok {
		t.Error("broken literal should fail")
	}
}
