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

package ws

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"

	"prompt-enhance/pkg/log"
)

// Handler 把 WebSocket 升级请求转为 Session
type Handler struct {
	upgrader websocket.HertzUpgrader
	runner   Runner
	admitter Admitter
	logger   *log.Logger
}

// NewHandler 创建 Handler；allowOrigin 为 nil 时接受任意来源
func NewHandler(runner Runner, admitter Admitter, allowOrigin func(origin string) bool, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Handler{
		upgrader: websocket.HertzUpgrader{
			CheckOrigin: func(c *app.RequestContext) bool {
				if allowOrigin == nil {
					return true
				}
				return allowOrigin(string(c.GetHeader("Origin")))
			},
		},
		runner:   runner,
		admitter: admitter,
		logger:   logger,
	}
}

// Serve 处理 /ws/enhance/:task_id 与 /ws/edit/:task_id
func (h *Handler) Serve(ctx context.Context, c *app.RequestContext) {
	taskID := c.Param("task_id")
	clientKey := c.ClientIP()
	err := h.upgrader.Upgrade(c, func(conn *websocket.Conn) {
		NewSession(conn, taskID, clientKey, h.runner, h.admitter, h.logger).Serve(context.WithoutCancel(ctx))
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "task_id", taskID, "error", err)
	}
}
