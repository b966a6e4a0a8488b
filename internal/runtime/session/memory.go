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

package session

import (
	"context"
	"sync"
	"time"

	"retail-chatbot/internal/chat"
)

// MemoryStore 进程内会话存储，用于本地开发与测试。
// 过期检查在读路径上惰性执行。
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*memorySession
	ttl   time.Duration
	limit int
	log   Logger
	now   func() time.Time
}

type memorySession struct {
	turns    []chat.Turn
	auth     AuthState
	deadline time.Time
}

// NewMemoryStore 创建内存会话存储
func NewMemoryStore(ttl time.Duration, historyLimit int, log Logger) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]*memorySession),
		ttl:   ttl,
		limit: historyLimit,
		log:   log,
		now:   time.Now,
	}
}

func (s *MemoryStore) live(id string) *memorySession {
	ms, ok := s.data[id]
	if !ok {
		return nil
	}
	if s.now().After(ms.deadline) {
		delete(s.data, id)
		return nil
	}
	return ms
}

// Load 读取会话，过期或不存在时返回空会话。
func (s *MemoryStore) Load(ctx context.Context, id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{ID: id, Auth: DefaultAuthState(), Available: true}
	ms := s.live(id)
	if ms == nil {
		return sess
	}
	sess.Turns = append(sess.Turns, ms.turns...)
	sess.Auth = ms.auth
	return sess
}

// AppendTurn 追加轮次并滚动淘汰，刷新过期时间。
func (s *MemoryStore) AppendTurn(ctx context.Context, id string, t chat.Turn) {
	if !t.Persistable() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.live(id)
	if ms == nil {
		ms = &memorySession{auth: DefaultAuthState()}
		s.data[id] = ms
	}
	ms.turns = BoundTurns(append(ms.turns, t), s.limit)
	ms.deadline = s.now().Add(s.ttl)
}

// LoadAuth 读取认证状态。
func (s *MemoryStore) LoadAuth(ctx context.Context, id string) AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ms := s.live(id); ms != nil {
		return ms.auth
	}
	return DefaultAuthState()
}

// SaveAuth 写认证状态并刷新过期时间。
func (s *MemoryStore) SaveAuth(ctx context.Context, id string, st AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.live(id)
	if ms == nil {
		ms = &memorySession{}
		s.data[id] = ms
	}
	ms.auth = st
	ms.deadline = s.now().Add(s.ttl)
}

// Clear 删除会话。
func (s *MemoryStore) Clear(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
}

// Ping 内存存储恒可用。
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
