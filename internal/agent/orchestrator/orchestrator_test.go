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

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-chatbot/internal/chat"
	"retail-chatbot/internal/model/llm"
	"retail-chatbot/internal/runtime/session"
	"retail-chatbot/internal/tool"
	"retail-chatbot/internal/tool/builtin"
	"retail-chatbot/internal/tool/registry"
	"retail-chatbot/pkg/config"
	"retail-chatbot/pkg/log"
)

// scriptedModel 按脚本依次返回应答，记录每次收到的请求
type scriptedModel struct {
	script   []scriptStep
	requests []llm.ChatRequest
	mode     chat.TranscriptMode
}

type scriptStep struct {
	resp *llm.Response
	err  error
}

func (m *scriptedModel) ChatWithTools(ctx context.Context, req llm.ChatRequest) (*llm.Response, error) {
	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		return &llm.Response{Content: `{"answer": "out of script"}`}, nil
	}
	step := m.script[0]
	m.script = m.script[1:]
	return step.resp, step.err
}

func (m *scriptedModel) Model() string    { return "test-model" }
func (m *scriptedModel) Provider() string { return "test" }

func (m *scriptedModel) TranscriptMode() chat.TranscriptMode {
	if m.mode == "" {
		return chat.ModePassThrough
	}
	return m.mode
}

// echoTool 记录调用并返回固定内容
type echoTool struct {
	name    string
	calls   []map[string]any
	content string
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "test tool" }

func (t *echoTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string", Description: "query"},
		},
	}
}

func (t *echoTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	t.calls = append(t.calls, args)
	return tool.Result{Content: t.content}, nil
}

func newOrchestrator(t *testing.T, model llm.Client, tools ...tool.Tool) (*Orchestrator, session.Store) {
	t.Helper()
	logger := log.Default()
	store := session.NewMemoryStore(30*time.Minute, 30, logger)
	reg := registry.New()
	for _, tl := range tools {
		reg.Register(tl)
	}
	cfg := config.AgentConfig{MaxIterations: 15}
	return New(model, reg, store, cfg, logger), store
}

func finalAnswer(t *testing.T, out map[string]any) string {
	t.Helper()
	answer, ok := out["answer"].(string)
	require.True(t, ok, "answer missing: %#v", out)
	return answer
}

func TestHandleMessageDirectAnswer(t *testing.T) {
	model := &scriptedModel{script: []scriptStep{
		{resp: &llm.Response{Content: `{"answer": "Hello! How can I help?", "end": "Anything else?"}`}},
	}}
	o, store := newOrchestrator(t, model)

	out := o.HandleMessage(context.Background(), "s1", "hi")
	assert.Equal(t, "Hello! How can I help?", finalAnswer(t, out))

	// 用户与助手轮次都已入会话记忆
	sess := store.Load(context.Background(), "s1")
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, chat.RoleUser, sess.Turns[0].Role)
	assert.Equal(t, chat.RoleAssistant, sess.Turns[1].Role)
}

func TestHandleMessageRunsToolLoop(t *testing.T) {
	search := &echoTool{name: "search_products", content: `{"products": [{"product_name": "Samsung Galaxy M14"}]}`}
	model := &scriptedModel{script: []scriptStep{
		{resp: &llm.Response{ToolCalls: []chat.ToolCall{
			{ID: "call_1", Name: "search_products", Arguments: map[string]any{"query": "phones"}},
		}}},
		{resp: &llm.Response{Content: `{"answer": "Here are some phones", "products": []}`}},
	}}
	o, _ := newOrchestrator(t, model, search)

	out := o.HandleMessage(context.Background(), "s1", "show me phones")
	assert.Equal(t, "Here are some phones", finalAnswer(t, out))

	require.Len(t, search.calls, 1)
	assert.Equal(t, "phones", search.calls[0]["query"])

	// 第二次模型调用的历史里应有 tool_call 与对应结果
	require.Len(t, model.requests, 2)
	second := model.requests[1].Turns
	var sawCall, sawResult bool
	for _, turn := range second {
		if turn.HasToolCalls() {
			sawCall = true
		}
		if turn.Role == chat.RoleTool && turn.ToolCallID == "call_1" {
			sawResult = true
		}
	}
	assert.True(t, sawCall, "tool call turn missing from transcript")
	assert.True(t, sawResult, "tool result turn missing from transcript")
}

func TestHandleMessageToolOrder(t *testing.T) {
	var order []string
	a := &orderedTool{name: "get_nearby_store", order: &order}
	b := &orderedTool{name: "search_policies", order: &order}
	model := &scriptedModel{script: []scriptStep{
		{resp: &llm.Response{ToolCalls: []chat.ToolCall{
			{ID: "c1", Name: "get_nearby_store", Arguments: map[string]any{}},
			{ID: "c2", Name: "search_policies", Arguments: map[string]any{}},
		}}},
		{resp: &llm.Response{Content: `{"answer": "done"}`}},
	}}
	o, _ := newOrchestrator(t, model, a, b)

	o.HandleMessage(context.Background(), "s1", "stores and policies")
	assert.Equal(t, []string{"get_nearby_store", "search_policies"}, order)
}

type orderedTool struct {
	name  string
	order *[]string
}

func (t *orderedTool) Name() string        { return t.name }
func (t *orderedTool) Description() string { return "ordered" }
func (t *orderedTool) Schema() tool.Schema { return tool.Schema{Type: "object"} }

func (t *orderedTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	*t.order = append(*t.order, t.name)
	return tool.Result{Content: `{}`}, nil
}

func TestHandleMessageModelErrorIsSafe(t *testing.T) {
	model := &scriptedModel{script: []scriptStep{
		{err: fmt.Errorf("quota exceeded")},
	}}
	o, store := newOrchestrator(t, model)

	out := o.HandleMessage(context.Background(), "s1", "hello")
	assert.Equal(t, modelErrorAnswer, finalAnswer(t, out))

	// 失败的回合不写入会话记忆，只有用户消息
	sess := store.Load(context.Background(), "s1")
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, chat.RoleUser, sess.Turns[0].Role)
}

func TestHandleMessageIterationLimit(t *testing.T) {
	hammer := &echoTool{name: "search_products", content: `{}`}
	// 模型永远只请求工具，循环应被次数上限终止
	var script []scriptStep
	for i := 0; i < 20; i++ {
		script = append(script, scriptStep{resp: &llm.Response{ToolCalls: []chat.ToolCall{
			{ID: fmt.Sprintf("c%d", i), Name: "search_products", Arguments: map[string]any{"query": "again"}},
		}}})
	}
	model := &scriptedModel{script: script}
	o, _ := newOrchestrator(t, model, hammer)

	out := o.HandleMessage(context.Background(), "s1", "loop forever")
	assert.Equal(t, retryAnswer, finalAnswer(t, out))
	assert.Len(t, model.requests, 15)
}

func TestHandleMessageTranscriptShape(t *testing.T) {
	model := &scriptedModel{script: []scriptStep{
		{resp: &llm.Response{Content: `{"answer": "first"}`}},
		{resp: &llm.Response{Content: `{"answer": "second"}`}},
	}}
	o, _ := newOrchestrator(t, model)

	o.HandleMessage(context.Background(), "s1", "one")
	o.HandleMessage(context.Background(), "s1", "two")

	require.Len(t, model.requests, 2)
	req := model.requests[1]
	assert.NotEmpty(t, req.SystemPrompt)
	assert.Contains(t, req.SystemPrompt, "Lotus Electronics")
	// 历史 + 新用户消息：user, assistant, user
	require.Len(t, req.Turns, 3)
	assert.Equal(t, chat.RoleUser, req.Turns[0].Role)
	assert.Equal(t, "one", req.Turns[0].Content)
	assert.Equal(t, chat.RoleAssistant, req.Turns[1].Role)
	assert.Equal(t, chat.RoleUser, req.Turns[2].Role)
	assert.Equal(t, "two", req.Turns[2].Content)
}

func TestHandleMessageStrictModeToolResultsVisible(t *testing.T) {
	search := &echoTool{name: "search_products", content: `{"products": [{"product_name": "Sony Bravia"}]}`}
	model := &scriptedModel{
		mode: chat.ModeStrictAlternation,
		script: []scriptStep{
			{resp: &llm.Response{ToolCalls: []chat.ToolCall{
				{ID: "c1", Name: "search_products", Arguments: map[string]any{"query": "tv"}},
			}}},
			{resp: &llm.Response{Content: `{"answer": "tvs"}`}},
		},
	}
	o, _ := newOrchestrator(t, model, search)

	o.HandleMessage(context.Background(), "s1", "show tvs")

	// 第二次调用必须带上刚执行完的工具结果，不能和第一次一样
	require.Len(t, model.requests, 2)
	second := model.requests[1].Turns
	require.Greater(t, len(second), len(model.requests[0].Turns))
	var sawResult bool
	for _, turn := range second {
		if turn.Role == chat.RoleTool && turn.ToolName == "search_products" {
			sawResult = true
			assert.Contains(t, turn.Content, "Sony Bravia")
		}
	}
	assert.True(t, sawResult, "tool result missing from second model request")
}

func TestHandleMessageStrictModeFiltersHistoryOnly(t *testing.T) {
	search := &echoTool{name: "search_products", content: `{}`}
	model := &scriptedModel{
		mode: chat.ModeStrictAlternation,
		script: []scriptStep{
			{resp: &llm.Response{ToolCalls: []chat.ToolCall{
				{ID: "c1", Name: "search_products", Arguments: map[string]any{"query": "tv"}},
			}}},
			{resp: &llm.Response{Content: `{"answer": "tvs"}`}},
			{resp: &llm.Response{Content: `{"answer": "more"}`}},
		},
	}
	o, _ := newOrchestrator(t, model, search)

	o.HandleMessage(context.Background(), "s1", "show tvs")
	o.HandleMessage(context.Background(), "s1", "anything else")

	// 回放的历史不含工具轮次，也不带 tool_call
	require.Len(t, model.requests, 3)
	for _, turn := range model.requests[2].Turns {
		assert.NotEqual(t, chat.RoleTool, turn.Role, "replayed history must not contain tool turns")
		assert.Empty(t, turn.ToolCalls)
	}
}

func TestHandleMessageStrictModeKeepsNewestUserMessage(t *testing.T) {
	model := &scriptedModel{
		mode: chat.ModeStrictAlternation,
		script: []scriptStep{
			{err: fmt.Errorf("quota exceeded")},
			{resp: &llm.Response{Content: `{"answer": "fresh"}`}},
		},
	}
	o, _ := newOrchestrator(t, model)

	// 第一条消息模型故障，历史里只剩一条 user 轮
	o.HandleMessage(context.Background(), "s1", "old message that failed")
	out := o.HandleMessage(context.Background(), "s1", "new question")
	assert.Equal(t, "fresh", finalAnswer(t, out))

	// 同角色边界上保留新消息，旧的失败消息被丢弃
	require.Len(t, model.requests, 2)
	turns := model.requests[1].Turns
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
	assert.Equal(t, "new question", turns[0].Content)
}

func TestHandleMessageSessionIDReachesTools(t *testing.T) {
	probe := &sessionProbe{}
	model := &scriptedModel{script: []scriptStep{
		{resp: &llm.Response{ToolCalls: []chat.ToolCall{
			{ID: "c1", Name: "probe", Arguments: map[string]any{}},
		}}},
		{resp: &llm.Response{Content: `{"answer": "ok"}`}},
	}}
	o, _ := newOrchestrator(t, model, probe)

	o.HandleMessage(context.Background(), "session-42", "check")
	assert.Equal(t, "session-42", probe.seen)
}

type sessionProbe struct {
	seen string
}

func (t *sessionProbe) Name() string        { return "probe" }
func (t *sessionProbe) Description() string { return "probes the session id" }
func (t *sessionProbe) Schema() tool.Schema { return tool.Schema{Type: "object"} }

func (t *sessionProbe) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	t.seen = builtin.SessionIDFromContext(ctx)
	return tool.Result{Content: `{}`}, nil
}

func TestHandleMessageNormalizesRaggedOutput(t *testing.T) {
	model := &scriptedModel{script: []scriptStep{
		{resp: &llm.Response{Content: "```json\n{\"answer\": \"fenced answer\"}\n```"}},
	}}
	o, _ := newOrchestrator(t, model)

	out := o.HandleMessage(context.Background(), "s1", "hi")
	assert.Equal(t, "fenced answer", finalAnswer(t, out))
	for _, key := range []string{"products", "stores", "comparison", "authentication", "end"} {
		assert.Contains(t, out, key)
	}
}

func TestHandleMessageTokenBudget(t *testing.T) {
	model := &scriptedModel{script: []scriptStep{
		{resp: &llm.Response{Content: `{"answer": "short enough now"}`}},
	}}
	logger := log.Default()
	store := session.NewMemoryStore(30*time.Minute, 30, logger)
	o := New(model, registry.New(), store, config.AgentConfig{TokenBudget: 3000}, logger)

	// 预填一段超出预算的长历史，应被截断后继续而不是直接失败
	ctx := context.Background()
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'x'
	}
	for i := 0; i < 12; i++ {
		store.AppendTurn(ctx, "s1", chat.UserTurn(string(long)))
		store.AppendTurn(ctx, "s1", chat.AssistantTurn("noted", nil))
	}

	out := o.HandleMessage(ctx, "s1", "summarize")
	assert.Equal(t, "short enough now", finalAnswer(t, out))
	require.Len(t, model.requests, 1)
	assert.LessOrEqual(t, len(model.requests[0].Turns), 10)
}

func TestBuildSystemPromptVariants(t *testing.T) {
	optional := buildSystemPrompt(AuthPolicyOptional, session.DefaultAuthState())
	assert.Contains(t, optional, "record_contact")
	assert.Contains(t, optional, "UNAUTHENTICATED")

	otp := buildSystemPrompt(AuthPolicyOTP, session.AuthState{
		Status: session.AuthPending,
		Phone:  "9993536438",
	})
	assert.Contains(t, otp, "send_otp")
	assert.Contains(t, otp, "PENDING_VERIFICATION")
	assert.Contains(t, otp, "9993536438")
}

func TestSafeOutputSchema(t *testing.T) {
	out := safeOutput("fallback text")
	b, err := json.Marshal(out)
	require.NoError(t, err)
	var round map[string]any
	require.NoError(t, json.Unmarshal(b, &round))
	assert.Equal(t, "fallback text", round["answer"])
	for _, key := range []string{"products", "product_details", "stores", "policy_info", "comparison", "authentication", "end"} {
		assert.Contains(t, round, key)
	}
}
