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
	"sync"
	"time"
)

type bucket struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter 单实例内存限流器
type MemoryLimiter struct {
	ceiling int
	window  time.Duration

	mu          sync.Mutex
	buckets     map[string]*bucket
	lastCleanup time.Time
	now         func() time.Time
}

// NewMemoryLimiter 创建内存限流器
func NewMemoryLimiter(ceiling int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		ceiling: ceiling,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Admit 实现 Limiter
func (l *MemoryLimiter) Admit(_ context.Context, clientKey string) bool {
	key := bucketKey(clientKey)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.expiresAt) {
		l.buckets[key] = &bucket{count: 1, expiresAt: now.Add(l.window)}
		return true
	}
	if b.count >= l.ceiling {
		return false
	}
	b.count++
	return true
}

// sweep 删除过期桶，调用方持有锁
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = now
	for k, b := range l.buckets {
		if !now.Before(b.expiresAt) {
			delete(l.buckets, k)
		}
	}
}
