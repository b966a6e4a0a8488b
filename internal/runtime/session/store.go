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

	"retail-chatbot/internal/chat"
	"retail-chatbot/pkg/config"
	"retail-chatbot/pkg/errors"
)

// Store 会话持久化接口。所有方法对调用方不致命：后端故障被吞掉并
// 记日志，读路径返回空值、写路径静默丢弃，请求流程继续。
type Store interface {
	// Load 读取会话历史与认证状态。后端不可达时返回
	// Available=false 的空会话。
	Load(ctx context.Context, id string) *Session

	// AppendTurn 追加一条轮次并滚动淘汰最旧记录。非 user/assistant
	// 角色的轮次被忽略。
	AppendTurn(ctx context.Context, id string, t chat.Turn)

	// LoadAuth 单独读取认证状态，失败时返回缺省值。
	LoadAuth(ctx context.Context, id string) AuthState

	// SaveAuth 覆盖写认证状态。
	SaveAuth(ctx context.Context, id string, st AuthState)

	// Clear 删除会话的历史与认证记录。
	Clear(ctx context.Context, id string)

	// Ping 探测后端可用性。
	Ping(ctx context.Context) error
}

// NewStore 按配置构建会话存储，类型未知时报错。historyLimit<=0 使用默认值。
func NewStore(cfg config.SessionConfig, historyLimit int, log Logger) (Store, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	switch cfg.Type {
	case "redis":
		return NewRedisStore(cfg, historyLimit, log), nil
	case "memory", "":
		return NewMemoryStore(cfg.SessionTTL(), historyLimit, log), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidArg, "unknown session store type %q", cfg.Type)
	}
}

// Logger 存储层只需要的最小日志面
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}
