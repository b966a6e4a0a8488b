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
	"strings"

	"retail-chatbot/internal/storage/contact"
	"retail-chatbot/internal/tool"
)

// RecordContact 联系方式登记工具。对话中自然收集到顾客手机号后
// 落库，供门店跟进。
type RecordContact struct {
	store contact.Store
}

// NewRecordContact 创建联系方式登记工具
func NewRecordContact(store contact.Store) *RecordContact {
	return &RecordContact{store: store}
}

func (r *RecordContact) Name() string { return "record_contact" }

func (r *RecordContact) Description() string {
	return "Save the customer's contact details so a store representative can follow up. " +
		"Use after the customer shares their phone number."
}

func (r *RecordContact) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"phone":      {Type: "string", Description: "Customer phone number, 10-15 digits"},
			"name":       {Type: "string", Description: "Customer name if shared"},
			"note":       {Type: "string", Description: "What the customer is interested in"},
			"session_id": {Type: "string", Description: "Conversation session id (filled in automatically if omitted)"},
		},
		Required: []string{"phone"},
	}
}

// Execute 登记联系方式
func (r *RecordContact) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	phone := strings.TrimSpace(asString(args["phone"]))
	if !validPhone(phone) {
		msg := "Invalid phone number format. Please provide 10-15 digits."
		content, _ := json.Marshal(map[string]string{"status": "error", "message": msg})
		return tool.Result{Content: string(content), Err: msg}, nil
	}

	// 上下文注入的会话 ID 优先，模型显式传入的作兜底
	sessionID := SessionIDFromContext(ctx)
	if sessionID == "" {
		sessionID = strings.TrimSpace(asString(args["session_id"]))
	}

	c := &contact.Contact{
		SessionID: sessionID,
		Name:      strings.TrimSpace(asString(args["name"])),
		Phone:     phone,
		Note:      strings.TrimSpace(asString(args["note"])),
	}
	if err := r.store.Save(ctx, c); err != nil {
		return tool.Result{}, fmt.Errorf("saving contact failed: %w", err)
	}

	content, _ := json.Marshal(map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Contact information saved for %s", phone),
	})
	return tool.Result{Content: string(content)}, nil
}
