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

package contact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreMemory 进程内联系记录存储，用于本地开发与测试
type StoreMemory struct {
	mu       sync.Mutex
	contacts []Contact
}

// NewStoreMemory 创建内存联系记录存储
func NewStoreMemory() *StoreMemory {
	return &StoreMemory{}
}

// Save 写入一条联系记录
func (s *StoreMemory) Save(ctx context.Context, c *Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, *c)
	return nil
}

// Close 无操作
func (s *StoreMemory) Close() {}

// All 返回全部记录的副本，测试用
func (s *StoreMemory) All() []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}
