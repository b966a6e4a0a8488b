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

// Package contact 顾客联系方式落库。模型在对话中自然收集到
// 姓名/电话后通过工具写入，供门店跟进。
package contact

import (
	"context"
	"time"

	"retail-chatbot/pkg/config"
	"retail-chatbot/pkg/errors"
)

// Contact 一条顾客联系记录
type Contact struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store 联系记录存储接口
type Store interface {
	Save(ctx context.Context, c *Contact) error
	Close()
}

// NewStore 按配置构建联系记录存储
func NewStore(ctx context.Context, cfg config.ContactConfig) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewStorePg(ctx, cfg.DSN)
	case "memory", "":
		return NewStoreMemory(), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidArg, "unknown contact store type %q", cfg.Type)
	}
}
