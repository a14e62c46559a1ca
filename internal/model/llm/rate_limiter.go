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
	"fmt"

	"golang.org/x/time/rate"
)

// Throttle 单个后端的请求速率与并发控制
type Throttle struct {
	limiter   *rate.Limiter // nil 表示不限速
	semaphore chan struct{} // nil 表示不限并发
}

// NewThrottle 创建限速器；requestsPerMinute 按秒折算，burst 为 2 秒配额
func NewThrottle(requestsPerMinute float64, maxConcurrent int) *Throttle {
	t := &Throttle{}
	if requestsPerMinute > 0 {
		rps := requestsPerMinute / 60.0
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if maxConcurrent > 0 {
		t.semaphore = make(chan struct{}, maxConcurrent)
	}
	return t
}

// Wait 阻塞直到获得执行许可，成功后必须调用 Release
func (t *Throttle) Wait(ctx context.Context) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("backend rate limit wait failed: %w", err)
		}
	}
	if t.semaphore != nil {
		select {
		case t.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot
func (t *Throttle) Release() {
	if t.semaphore == nil {
		return
	}
	select {
	case <-t.semaphore:
	default:
	}
}
