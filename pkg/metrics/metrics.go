package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ChatDuration, ChatTotal, ChatIterations,
		ToolDuration, ToolFailTotal,
		LLMTokensTotal, RateLimitWaitSeconds,
	)
}

// ChatDuration 单次 handle_message 耗时（秒）
var ChatDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "chatbot_chat_duration_seconds",
		Help:    "单次会话请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// ChatTotal 会话请求总数（按结果）
var ChatTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_chat_total",
		Help: "会话请求总数（按结果）",
	},
	[]string{"status"}, // ok | model_error | budget_exhausted
)

// ChatIterations 单次请求内的 模型⇄工具 循环次数
var ChatIterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "chatbot_chat_iterations",
		Help:    "单次请求内的模型调用循环次数",
		Buckets: []float64{1, 2, 3, 5, 8, 15},
	},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chatbot_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFailTotal 工具调用失败总数
var ToolFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_tool_fail_total",
		Help: "工具调用失败总数",
	},
	[]string{"tool"},
)

// LLMTokensTotal LLM 调用 token 估算数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatbot_llm_tokens_total",
		Help: "LLM 调用 token 估算总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chatbot_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
