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

// Package http 提供健康检查、增强任务受理与指标导出的 HTTP 接口
package http

import (
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/prometheus/common/expfmt"

	"prompt-enhance/internal/enhance"
	"prompt-enhance/internal/prompt"
	"prompt-enhance/pkg/errors"
	"prompt-enhance/pkg/log"
	"prompt-enhance/pkg/metrics"
)

// Admitter 受理增强任务前的准入检查
type Admitter interface {
	Admit(ctx context.Context, clientKey, taskID string) bool
}

// Handler HTTP 处理器
type Handler struct {
	admitter Admitter
	newID    func() string
	logger   *log.Logger
}

// NewHandler 创建 Handler；admitter 为 nil 时不做准入控制
func NewHandler(admitter Admitter, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Handler{admitter: admitter, newID: uuid.NewString, logger: logger}
}

// enhanceBody POST /api/enhance 请求体
type enhanceBody struct {
	TaskID                 string       `json:"task_id"`
	Task                   string       `json:"task"`
	LazyPrompt             string       `json:"lazy_prompt"`
	UseWebSearch           bool         `json:"use_web_search"`
	AdditionalContextQuery string       `json:"additional_context_query"`
	Model                  string       `json:"model"`
	TargetModel            string       `json:"target_model"`
	IsReasoningNative      bool         `json:"is_reasoning_native"`
	PromptStyle            prompt.Style `json:"prompt_style"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "prompt-enhance",
	})
}

// Enhance 校验并受理增强任务，返回客户端随后连接的 WebSocket 路径
func (h *Handler) Enhance(ctx context.Context, c *app.RequestContext) {
	var body enhanceBody
	if err := c.BindJSON(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": errors.ErrInvalidArg.Error() + ": " + err.Error()})
		return
	}
	req := enhance.Request{
		TaskID:                 body.TaskID,
		Task:                   body.Task,
		LazyPrompt:             body.LazyPrompt,
		UseWebSearch:           body.UseWebSearch,
		AdditionalContextQuery: body.AdditionalContextQuery,
		Model:                  body.Model,
		TargetModel:            body.TargetModel,
		ReasoningNative:        body.IsReasoningNative,
		Style:                  body.PromptStyle,
	}
	if err := req.Validate(); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.TaskID == "" {
		req.TaskID = h.newID()
	}

	if h.admitter != nil && !h.admitter.Admit(ctx, c.ClientIP(), req.TaskID) {
		metrics.RateLimitRejectTotal.Inc()
		h.logger.Info("enhance request rejected", "client", c.ClientIP())
		c.JSON(consts.StatusTooManyRequests, map[string]string{"error": errors.ErrRateLimited.Error()})
		return
	}

	h.logger.Info("enhance task accepted", "task_id", req.TaskID, "client", c.ClientIP())
	c.JSON(consts.StatusOK, map[string]string{
		"task_id":   req.TaskID,
		"status":    "processing",
		"websocket": "/ws/enhance/" + req.TaskID,
	})
}

// Metrics 导出 Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.logger.Error("gather metrics failed", "error", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	c.Data(consts.StatusOK, string(expfmt.FmtText), buf.Bytes())
}
