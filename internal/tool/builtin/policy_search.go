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
	"fmt"

	einoretriever "github.com/cloudwego/eino/components/retriever"

	"retail-chatbot/internal/tool"
)

const (
	policyDefaultResults = 3
	policyMaxResults     = 5
)

// PolicySearch 售后条款检索工具，覆盖退换货、保修与隐私政策
type PolicySearch struct {
	retriever einoretriever.Retriever
}

// NewPolicySearch 创建条款检索工具
func NewPolicySearch(r einoretriever.Retriever) *PolicySearch {
	return &PolicySearch{retriever: r}
}

func (p *PolicySearch) Name() string { return "search_policies" }

func (p *PolicySearch) Description() string {
	return "Answer questions about company policies: returns, refunds, warranty, " +
		"data privacy and terms of service."
}

func (p *PolicySearch) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":       {Type: "string", Description: "Policy question, e.g. 'return policy' or 'warranty terms'"},
			"max_results": {Type: "integer", Description: "Maximum policy sections to return (1-5, default 3)"},
		},
		Required: []string{"query"},
	}
}

type policySection struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Execute 检索条款片段，按相关度排序返回
func (p *PolicySearch) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	query := asString(args["query"])
	maxResults := intArg(args, "max_results", policyDefaultResults)
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > policyMaxResults {
		maxResults = policyMaxResults
	}

	docs, err := p.retriever.Retrieve(ctx, query, einoretriever.WithTopK(maxResults))
	if err != nil {
		return tool.Result{}, fmt.Errorf("policy search failed: %w", err)
	}

	sections := make([]policySection, 0, len(docs))
	for _, doc := range docs {
		if doc == nil || doc.Content == "" {
			continue
		}
		title := asString(doc.MetaData["title"])
		if title == "" {
			title = asString(doc.MetaData["section"])
		}
		if title == "" {
			title = "Policy Section"
		}
		sections = append(sections, policySection{
			Title:   title,
			Content: doc.Content,
			Score:   doc.Score(),
		})
	}

	content, err := json.Marshal(map[string]any{
		"success":     true,
		"query":       query,
		"total_found": len(sections),
		"results":     sections,
	})
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Content: string(content)}, nil
}
