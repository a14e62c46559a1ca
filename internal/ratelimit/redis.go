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
	"time"

	"github.com/redis/go-redis/v9"

	"prompt-enhance/pkg/log"
)

// admitScript 读取计数，未达上限时自增；首次自增设置窗口过期
var admitScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
  return 0
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// RedisLimiter 多实例共享计数的限流器
type RedisLimiter struct {
	client  redis.UniversalClient
	ceiling int
	window  time.Duration
	logger  *log.Logger
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(client redis.UniversalClient, ceiling int, window time.Duration, logger *log.Logger) *RedisLimiter {
	if logger == nil {
		logger = log.NewNop()
	}
	return &RedisLimiter{client: client, ceiling: ceiling, window: window, logger: logger}
}

// Admit 实现 Limiter；Redis 故障时放行
func (l *RedisLimiter) Admit(ctx context.Context, clientKey string) bool {
	n, err := admitScript.Run(ctx, l.client, []string{bucketKey(clientKey)}, l.ceiling, l.window.Milliseconds()).Int()
	if err != nil {
		l.logger.Warn("rate limiter store unavailable, admitting", "client", clientKey, "error", err)
		return true
	}
	return n == 1
}
