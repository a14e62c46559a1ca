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

package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-enhance/internal/ratelimit"
	"prompt-enhance/internal/storage/cache"
)

func TestGate_ClaimConsumesTicket(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewMemoryLimiter(2, time.Minute)
	gate := ratelimit.NewGate(limiter, cache.NewMemoryStore(), nil)

	require.True(t, gate.Admit(ctx, "1.2.3.4", "task-1"))
	assert.True(t, gate.Claim(ctx, "1.2.3.4", "task-1"), "ticket should admit without counting")
	assert.True(t, limiter.Admit(ctx, "1.2.3.4"), "second slot still free")
	assert.False(t, limiter.Admit(ctx, "1.2.3.4"))

	assert.False(t, gate.Claim(ctx, "1.2.3.4", "task-1"), "ticket is single use")
}

func TestGate_ClaimIgnoresForeignTicket(t *testing.T) {
	ctx := context.Background()
	gate := ratelimit.NewGate(ratelimit.NewMemoryLimiter(1, time.Minute), cache.NewMemoryStore(), nil)

	require.True(t, gate.Admit(ctx, "a", "task-1"))
	assert.True(t, gate.Claim(ctx, "b", "task-1"), "b has its own bucket")
	assert.False(t, gate.Claim(ctx, "b", "task-1"))
	assert.True(t, gate.Claim(ctx, "a", "task-1"))
}

func TestGate_RejectedLeavesNoTicket(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	gate := ratelimit.NewGate(ratelimit.NewMemoryLimiter(1, time.Minute), store, nil)

	require.True(t, gate.Admit(ctx, "a", "task-1"))
	assert.False(t, gate.Admit(ctx, "a", "task-2"))
	ok, err := store.Exists(ctx, "admission:task-2:a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_WithoutTickets(t *testing.T) {
	ctx := context.Background()
	gate := ratelimit.NewGate(ratelimit.NewMemoryLimiter(1, time.Minute), nil, nil)
	assert.True(t, gate.Admit(ctx, "a", "task-1"))
	assert.False(t, gate.Claim(ctx, "a", "task-1"))
}

func TestGate_ConcurrentClaimsConsumeTicketOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	tickets := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	gate := ratelimit.NewGate(ratelimit.NewMemoryLimiter(1, time.Minute), tickets, nil)
	ctx := context.Background()

	require.True(t, gate.Admit(ctx, "ip", "task"))

	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if gate.Claim(ctx, "ip", "task") {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, admitted.Load(), "one admission must start exactly one run")
}
