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

// Package router 选择模型后端并在后端故障时一次性切换到备用后端
package router

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"prompt-enhance/internal/model/llm"
	"prompt-enhance/pkg/config"
	"prompt-enhance/pkg/errors"
	"prompt-enhance/pkg/log"
	"prompt-enhance/pkg/metrics"
)

// Attempt 在给定后端上运行一次完整编排；出错时也应返回已构建的对话
type Attempt func(ctx context.Context, client llm.Client, transcript []*schema.Message) (string, []*schema.Message, error)

// ClientFactory 由后端配置构造客户端
type ClientFactory func(cfg config.BackendConfig) llm.Client

// Result 编排结果
type Result struct {
	Text         string
	Transcript   []*schema.Message
	UsedFallback bool
	Backend      string
}

// Router 持有主备两个长期客户端，所有任务共享同一连接池与限速
type Router struct {
	primary  llm.Client
	fallback llm.Client // nil 表示未配置备用后端
	logger   *log.Logger
}

// New 创建 Router 并为每个后端构造一次客户端；fallback 未配置凭据时视为无备用后端
func New(cfg config.ModelConfig, newClient ClientFactory, logger *log.Logger) *Router {
	if newClient == nil {
		newClient = llm.NewClient
	}
	if logger == nil {
		logger = log.NewNop()
	}
	r := &Router{
		primary: newClient(cfg.Primary),
		logger:  logger,
	}
	if cfg.Fallback.Configured() {
		r.fallback = newClient(cfg.Fallback)
	}
	return r
}

// WithPrimaryModel 返回主后端使用指定模型的副本；model 为空时返回自身
func (r *Router) WithPrimaryModel(model string) *Router {
	if model == "" || model == r.primary.Model() {
		return r
	}
	cp := *r
	cp.primary = llm.WithModel(r.primary, model)
	return &cp
}

// HasFallback 是否配置了备用后端
func (r *Router) HasFallback() bool {
	return r.fallback != nil
}

// Run 探测主后端健康后执行编排；主后端返回状态错误时在备用后端上重跑一次
func (r *Router) Run(ctx context.Context, transcript []*schema.Message, attempt Attempt) (Result, error) {
	primary := r.primary

	if !primary.Health(ctx) {
		if !r.HasFallback() {
			r.logger.Error("primary backend unhealthy and no fallback configured", "backend", primary.Name())
			return Result{Transcript: transcript}, errors.ErrServiceUnavailable
		}
		r.logger.Warn("primary backend unhealthy, using fallback", "backend", primary.Name())
		metrics.FallbackTotal.WithLabelValues("unhealthy").Inc()
		return r.runFallback(ctx, transcript, attempt)
	}

	text, built, err := attempt(ctx, primary, transcript)
	if err == nil {
		return Result{Text: text, Transcript: built, Backend: primary.Name()}, nil
	}

	var statusErr *llm.StatusError
	if !goerrors.As(err, &statusErr) {
		return Result{Transcript: built}, err
	}
	if !r.HasFallback() {
		r.logger.Error("primary backend failed and no fallback configured", "backend", primary.Name(), "status", statusErr.StatusCode)
		return Result{Transcript: built}, fmt.Errorf("%w: %w", errors.ErrServiceUnavailable, err)
	}

	r.logger.Warn("primary backend failed, retrying on fallback",
		"backend", primary.Name(), "status", statusErr.StatusCode, "error", statusErr.Message)
	metrics.FallbackTotal.WithLabelValues("status_error").Inc()
	return r.runFallback(ctx, built, attempt)
}

// runFallback 备用后端只尝试一次
func (r *Router) runFallback(ctx context.Context, transcript []*schema.Message, attempt Attempt) (Result, error) {
	fallback := r.fallback
	text, built, err := attempt(ctx, fallback, transcript)
	if err != nil {
		var statusErr *llm.StatusError
		if goerrors.As(err, &statusErr) {
			err = fmt.Errorf("%w: %w", errors.ErrServiceUnavailable, err)
		}
		return Result{Transcript: built, UsedFallback: true}, err
	}
	return Result{Text: text, Transcript: built, UsedFallback: true, Backend: fallback.Name()}, nil
}
