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

package http

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"prompt-enhance/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	websocket  map[string]app.HandlerFunc
	extra      []app.HandlerFunc
}

// NewRouter 创建路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw, websocket: map[string]app.HandlerFunc{}}
}

// SetWebSocket 注册 WebSocket 路由，path 形如 /ws/enhance/:task_id
func (r *Router) SetWebSocket(path string, h app.HandlerFunc) {
	r.websocket[path] = h
}

// Use 追加全局中间件，须在 Build 之前调用
func (r *Router) Use(mw ...app.HandlerFunc) {
	r.extra = append(r.extra, mw...)
}

// Build 创建 Hertz 服务并注册全部路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	r.Register(h)
	return h
}

// Register 在已有服务上注册路由
func (r *Router) Register(h *server.Hertz) {
	if len(r.extra) > 0 {
		h.Use(r.extra...)
	}
	h.Use(r.middleware.AccessLog())

	api := h.Group("/api", r.middleware.CORS())
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/enhance", r.handler.Enhance)
	api.OPTIONS("/enhance", noContent)

	h.GET("/metrics", r.handler.Metrics)

	for path, handler := range r.websocket {
		h.GET(path, handler)
	}
}

func noContent(ctx context.Context, c *app.RequestContext) {
	c.Status(consts.StatusNoContent)
}
