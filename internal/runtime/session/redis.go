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
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"retail-chatbot/internal/chat"
	"retail-chatbot/pkg/config"
)

const (
	turnsKeyPrefix = "chat:turns:"
	authKeyPrefix  = "chat:auth:"
)

// RedisStore 基于 Redis 的会话存储。轮次以 JSON 元素存入 list，
// 认证状态单独一个 string key，两者共用 TTL 并在写入时刷新。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	limit  int
	log    Logger
}

// NewRedisStore 创建 Redis 会话存储
func NewRedisStore(cfg config.SessionConfig, historyLimit int, log Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return &RedisStore{
		client: client,
		ttl:    cfg.SessionTTL(),
		limit:  historyLimit,
		log:    log,
	}
}

// Load 读取会话。Redis 不可达时返回 Available=false 的空会话，
// 单条记录损坏时跳过该条继续。
func (s *RedisStore) Load(ctx context.Context, id string) *Session {
	sess := &Session{ID: id, Auth: DefaultAuthState(), Available: true}

	raw, err := s.client.LRange(ctx, turnsKeyPrefix+id, 0, -1).Result()
	if err != nil {
		s.log.Warn("会话历史读取失败，降级为空历史", "session_id", id, "error", err)
		sess.Available = false
		return sess
	}
	for _, item := range raw {
		var t chat.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.log.Warn("会话历史记录损坏，已跳过", "session_id", id, "error", err)
			continue
		}
		sess.Turns = append(sess.Turns, t)
	}
	sess.Turns = BoundTurns(sess.Turns, s.limit)
	sess.Auth = s.LoadAuth(ctx, id)
	return sess
}

// AppendTurn 追加轮次并裁剪到最近 limit 条，刷新 TTL。
func (s *RedisStore) AppendTurn(ctx context.Context, id string, t chat.Turn) {
	if !t.Persistable() {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		s.log.Warn("轮次序列化失败，已丢弃", "session_id", id, "error", err)
		return
	}

	key := turnsKeyPrefix + id
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.limit), -1)
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, authKeyPrefix+id, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("会话历史写入失败，已丢弃", "session_id", id, "error", err)
	}
}

// LoadAuth 读取认证状态，缺失或损坏时返回缺省值。
func (s *RedisStore) LoadAuth(ctx context.Context, id string) AuthState {
	raw, err := s.client.Get(ctx, authKeyPrefix+id).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("认证状态读取失败，使用缺省值", "session_id", id, "error", err)
		}
		return DefaultAuthState()
	}
	var st AuthState
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st.Status == "" {
		s.log.Warn("认证状态记录损坏，使用缺省值", "session_id", id)
		return DefaultAuthState()
	}
	return st
}

// SaveAuth 覆盖写认证状态并刷新 TTL。
func (s *RedisStore) SaveAuth(ctx context.Context, id string, st AuthState) {
	data, err := json.Marshal(st)
	if err != nil {
		s.log.Warn("认证状态序列化失败", "session_id", id, "error", err)
		return
	}
	if err := s.client.Set(ctx, authKeyPrefix+id, data, s.ttl).Err(); err != nil {
		s.log.Warn("认证状态写入失败", "session_id", id, "error", err)
	}
}

// Clear 删除会话的全部记录。
func (s *RedisStore) Clear(ctx context.Context, id string) {
	if err := s.client.Del(ctx, turnsKeyPrefix+id, authKeyPrefix+id).Err(); err != nil {
		s.log.Warn("会话清理失败", "session_id", id, "error", err)
	}
}

// Ping 探测 Redis 可用性。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭底层连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
