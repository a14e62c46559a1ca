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

// Package ratelimit 按客户端标识做固定窗口准入控制
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"prompt-enhance/pkg/config"
	"prompt-enhance/pkg/log"
)

// Limiter 准入接口：窗口内第 1..ceiling 次返回 true，其后返回 false
type Limiter interface {
	Admit(ctx context.Context, clientKey string) bool
}

// New 按配置创建限流器；redis 类型需传入共享客户端
func New(cfg config.RateLimitConfig, client redis.UniversalClient, logger *log.Logger) (Limiter, error) {
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = config.DefaultCeiling
	}
	window := cfg.WindowDuration()
	switch cfg.Type {
	case "", "memory":
		return NewMemoryLimiter(ceiling, window), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis rate limiter requires a redis client")
		}
		return NewRedisLimiter(client, ceiling, window, logger), nil
	default:
		return nil, fmt.Errorf("unsupported rate limiter type: %s", cfg.Type)
	}
}

func bucketKey(clientKey string) string {
	return "rate_limit:" + clientKey
}

// cleanupInterval 内存桶的过期清理周期
const cleanupInterval = time.Minute
