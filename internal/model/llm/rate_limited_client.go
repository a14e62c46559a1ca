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

package llm

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"prompt-enhance/pkg/metrics"
)

// ThrottledClient 在调用底层 Client 前后执行限速
type ThrottledClient struct {
	inner    Client
	throttle *Throttle
}

// NewThrottledClient 创建带限速的客户端；throttle 为 nil 时直接调用
func NewThrottledClient(inner Client, throttle *Throttle) *ThrottledClient {
	return &ThrottledClient{inner: inner, throttle: throttle}
}

// Chat 实现 Client.Chat
func (c *ThrottledClient) Chat(ctx context.Context, messages []*schema.Message, opts ChatOptions) (*schema.Message, error) {
	if c.throttle != nil {
		start := time.Now()
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}
		if waited := time.Since(start); waited > 100*time.Millisecond {
			metrics.BackendThrottleSeconds.WithLabelValues(c.inner.Name()).Observe(waited.Seconds())
		}
		defer c.throttle.Release()
	}
	return c.inner.Chat(ctx, messages, opts)
}

// Health 健康探测不受限速约束
func (c *ThrottledClient) Health(ctx context.Context) bool { return c.inner.Health(ctx) }

// Name 返回底层后端标识
func (c *ThrottledClient) Name() string { return c.inner.Name() }

// Model 返回底层模型名称
func (c *ThrottledClient) Model() string { return c.inner.Model() }
