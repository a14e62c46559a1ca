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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-enhance/pkg/config"
)

func newRedisLimiter(t *testing.T, ceiling int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, ceiling, time.Minute, nil), mr
}

func TestLimiters_CeilingPlusOneRejected(t *testing.T) {
	ctx := context.Background()
	for _, ceiling := range []int{1, 5, 9} {
		redisLimiter, _ := newRedisLimiter(t, ceiling)
		limiters := map[string]Limiter{
			"memory": NewMemoryLimiter(ceiling, time.Minute),
			"redis":  redisLimiter,
		}
		for name, l := range limiters {
			t.Run(fmt.Sprintf("%s/%d", name, ceiling), func(t *testing.T) {
				for i := 1; i <= ceiling; i++ {
					assert.True(t, l.Admit(ctx, "10.0.0.1"), "call %d", i)
				}
				assert.False(t, l.Admit(ctx, "10.0.0.1"))
				assert.False(t, l.Admit(ctx, "10.0.0.1"))
				assert.True(t, l.Admit(ctx, "10.0.0.2"), "other clients have their own bucket")
			})
		}
	}
}

func TestMemoryLimiter_WindowExpiry(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, l.Admit(ctx, "c"))
	assert.True(t, l.Admit(ctx, "c"))
	assert.False(t, l.Admit(ctx, "c"))

	now = now.Add(59 * time.Second)
	assert.False(t, l.Admit(ctx, "c"))

	now = now.Add(time.Second)
	assert.True(t, l.Admit(ctx, "c"))
	assert.Equal(t, 1, l.buckets[bucketKey("c")].count)
}

func TestRedisLimiter_WindowExpiryAndCounterUnchanged(t *testing.T) {
	l, mr := newRedisLimiter(t, 2)
	ctx := context.Background()

	assert.True(t, l.Admit(ctx, "c"))
	assert.True(t, l.Admit(ctx, "c"))
	assert.False(t, l.Admit(ctx, "c"))

	v, err := mr.Get(bucketKey("c"))
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	assert.Equal(t, time.Minute, mr.TTL(bucketKey("c")))

	mr.FastForward(time.Minute)
	assert.True(t, l.Admit(ctx, "c"))
}

func TestRedisLimiter_FailOpen(t *testing.T) {
	l, mr := newRedisLimiter(t, 1)
	mr.Close()
	assert.True(t, l.Admit(context.Background(), "c"))
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(5, time.Minute)
	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(context.Background(), "same") {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), admitted)
}

func TestNew(t *testing.T) {
	l, err := New(config.RateLimitConfig{}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)

	_, err = New(config.RateLimitConfig{Type: "redis"}, nil, nil)
	assert.Error(t, err)

	_, err = New(config.RateLimitConfig{Type: "token-bucket"}, nil, nil)
	assert.Error(t, err)
}
