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

// Package conversation 驱动与模型后端的多轮工具调用对话
package conversation

import (
	"context"
	goerrors "errors"
	"strings"

	"github.com/cloudwego/eino/schema"

	"prompt-enhance/internal/model/llm"
	"prompt-enhance/pkg/config"
	"prompt-enhance/pkg/errors"
	"prompt-enhance/pkg/log"
	"prompt-enhance/pkg/metrics"
	"prompt-enhance/pkg/tracing"
)

// Dispatcher 执行一次工具调用，返回携带原调用 id 的 tool 消息
type Dispatcher interface {
	Dispatch(ctx context.Context, call schema.ToolCall) (*schema.Message, error)
}

// Driver 对话状态机：等待模型 → 分发工具调用 → 等待模型 … → 终态
type Driver struct {
	maxEmptyRetries int
	maxTurns        int
	logger          *log.Logger
}

// New 创建 Driver
func New(cfg config.OrchestratorConfig, logger *log.Logger) *Driver {
	if cfg.MaxEmptyRetries <= 0 {
		cfg.MaxEmptyRetries = config.DefaultMaxEmptyRetries
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = config.DefaultMaxTurns
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Driver{
		maxEmptyRetries: cfg.MaxEmptyRetries,
		maxTurns:        cfg.MaxTurns,
		logger:          logger,
	}
}

// Drive 从 transcript 继续对话直到得到不含工具调用的回复。
// 返回的 transcript 总是完整的：每个工具调用都有对应的结果，出错时也一样
func (d *Driver) Drive(ctx context.Context, client llm.Client, transcript []*schema.Message, tools Dispatcher, opts llm.ChatOptions) (string, []*schema.Message, error) {
	msgs := append(make([]*schema.Message, 0, len(transcript)+4), transcript...)
	empty := 0

	for turn := 1; turn <= d.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return "", msgs, err
		}

		reply, err := d.call(ctx, client, msgs, opts, turn)
		if err != nil {
			return "", msgs, err
		}

		if len(reply.ToolCalls) > 0 {
			next, err := d.dispatchAll(ctx, msgs, reply, tools)
			if err != nil {
				return "", msgs, err
			}
			msgs = next
			continue
		}

		if strings.TrimSpace(reply.Content) == "" && empty < d.maxEmptyRetries {
			empty++
			d.logger.Warn("empty reply from backend, retrying", "backend", client.Name(), "attempt", empty)
			continue
		}

		msgs = append(msgs, reply)
		return reply.Content, msgs, nil
	}

	return "", msgs, errors.ErrTurnBudgetExhausted
}

func (d *Driver) call(ctx context.Context, client llm.Client, msgs []*schema.Message, opts llm.ChatOptions, turn int) (*schema.Message, error) {
	ctx, span := tracing.StartModelSpan(ctx, client.Name(), client.Model(), turn)
	reply, err := client.Chat(ctx, msgs, opts)
	tracing.EndSpan(span, err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		var statusErr *llm.StatusError
		if goerrors.As(err, &statusErr) {
			outcome = "status_error"
		}
	}
	metrics.ModelCallTotal.WithLabelValues(client.Name(), outcome).Inc()
	return reply, err
}

// dispatchAll 按回复中的顺序逐个执行工具调用；失败时丢弃本轮的 assistant 消息与部分结果
func (d *Driver) dispatchAll(ctx context.Context, msgs []*schema.Message, reply *schema.Message, tools Dispatcher) ([]*schema.Message, error) {
	next := append(msgs, reply)
	for _, call := range reply.ToolCalls {
		d.logger.Info("dispatching tool call", "tool", call.Function.Name, "call_id", call.ID)
		result, err := tools.Dispatch(ctx, call)
		if err != nil {
			return nil, err
		}
		next = append(next, result)
	}
	return next, nil
}
