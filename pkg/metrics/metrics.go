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
		TaskDuration, TaskTotal,
		ToolDuration, ModelCallTotal, FallbackTotal,
		RateLimitRejectTotal, AskWaitSeconds, ActiveSessions,
		BackendThrottleSeconds,
	)
}

// TaskDuration 编排任务耗时（秒）
var TaskDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "prompt_enhance_task_duration_seconds",
		Help:    "编排任务耗时（秒）",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
	[]string{"kind"}, // enhance | edit
)

// TaskTotal 编排任务总数（按终态）
var TaskTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "prompt_enhance_task_total",
		Help: "编排任务总数（按状态）",
	},
	[]string{"kind", "status"}, // completed | failed | cancelled
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "prompt_enhance_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ModelCallTotal 模型调用次数（按后端与结果）
var ModelCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "prompt_enhance_model_call_total",
		Help: "模型调用次数",
	},
	[]string{"backend", "outcome"}, // ok | status_error | error
)

// FallbackTotal 切换到备用后端的次数
var FallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "prompt_enhance_fallback_total",
		Help: "切换备用后端次数",
	},
	[]string{"reason"}, // unhealthy | status_error
)

// RateLimitRejectTotal 被准入控制拒绝的请求数
var RateLimitRejectTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "prompt_enhance_rate_limit_reject_total",
		Help: "被限流拒绝的请求数",
	},
)

// AskWaitSeconds 等待用户回答的时长
var AskWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "prompt_enhance_ask_wait_seconds",
		Help:    "等待用户回答耗时（秒）",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	},
	[]string{"outcome"}, // answered | timeout | cancelled
)

// BackendThrottleSeconds 调用后端前因限速等待的时长
var BackendThrottleSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "prompt_enhance_backend_throttle_seconds",
		Help:    "后端限速等待耗时（秒）",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	},
	[]string{"backend"},
)

// ActiveSessions 当前打开的 WebSocket 会话数
var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "prompt_enhance_active_sessions",
		Help: "当前 WebSocket 会话数",
	},
)

// WritePrometheus 以 Prometheus 文本格式输出 DefaultRegistry
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
