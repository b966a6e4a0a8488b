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

package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func TestPolicySearch_ReturnsSections(t *testing.T) {
	doc := &schema.Document{
		ID:      "tc-12",
		Content: "Products can be returned within 7 days in original packaging.",
		MetaData: map[string]any{
			"title": "Return Policy",
		},
	}
	doc.WithScore(0.87)

	tool := NewPolicySearch(&fakeRetriever{docs: []*schema.Document{doc}})
	res, err := tool.Execute(context.Background(), map[string]any{"query": "return policy"})
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Success    bool            `json:"success"`
		TotalFound int             `json:"total_found"`
		Results    []policySection `json:"results"`
	}
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.TotalFound != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	sec := out.Results[0]
	if sec.Title != "Return Policy" || sec.Score != 0.87 {
		t.Errorf("unexpected section: %+v", sec)
	}
}

func TestPolicySearch_UntitledSection(t *testing.T) {
	doc := &schema.Document{ID: "tc-1", Content: "Warranty covers manufacturing defects."}
	tool := NewPolicySearch(&fakeRetriever{docs: []*schema.Document{doc}})
	res, err := tool.Execute(context.Background(), map[string]any{"query": "warranty", "max_results": float64(1)})
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Results []policySection `json:"results"`
	}
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatal(err)
	}
	if out.Results[0].Title != "Policy Section" {
		t.Errorf("expected fallback title, got %q", out.Results[0].Title)
	}
}
