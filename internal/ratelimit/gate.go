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

package ratelimit

import (
	"context"
	goerrors "errors"
	"time"

	"prompt-enhance/internal/storage/cache"
	"prompt-enhance/pkg/errors"
	"prompt-enhance/pkg/log"
)

// TicketTTL HTTP 准入后等待 WebSocket 连接的时长
const TicketTTL = 5 * time.Minute

// Gate 把 HTTP 准入与随后的 WebSocket 启动关联起来，同一任务只计一次
type Gate struct {
	limiter Limiter
	tickets cache.Store
	ttl     time.Duration
	logger  *log.Logger
}

// NewGate 创建 Gate；tickets 为 nil 时每次启动都单独计数
func NewGate(limiter Limiter, tickets cache.Store, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gate{limiter: limiter, tickets: tickets, ttl: TicketTTL, logger: logger}
}

func ticketKey(taskID, clientKey string) string {
	return "admission:" + taskID + ":" + clientKey
}

// Admit 计数一次；通过时为 taskID 留下准入凭据
func (g *Gate) Admit(ctx context.Context, clientKey, taskID string) bool {
	if !g.limiter.Admit(ctx, clientKey) {
		return false
	}
	if g.tickets != nil && taskID != "" {
		if err := g.tickets.Set(ctx, ticketKey(taskID, clientKey), clientKey, g.ttl); err != nil {
			g.logger.Warn("store admission ticket failed", "task_id", taskID, "error", err)
		}
	}
	return true
}

// Claim 原子地消费同一客户端的准入凭据；没有凭据时按新请求计数
func (g *Gate) Claim(ctx context.Context, clientKey, taskID string) bool {
	if g.tickets != nil && taskID != "" {
		var owner string
		err := g.tickets.Take(ctx, ticketKey(taskID, clientKey), &owner)
		if err == nil {
			return true
		}
		if !goerrors.Is(err, errors.ErrNotFound) {
			g.logger.Warn("take admission ticket failed", "task_id", taskID, "error", err)
		}
	}
	return g.limiter.Admit(ctx, clientKey)
}
