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

// Package rendezvous 实现单槽位的人机问答同步点：对话挂起直到用户回答、超时或连接断开
package rendezvous

import (
	"context"
	"errors"
	"sync"
	"time"

	"prompt-enhance/pkg/metrics"
)

var (
	// ErrAskTimeout 超时未收到回答，对当前任务是终态错误
	ErrAskTimeout = errors.New("timed out waiting for user input")
	// ErrQuestionOutstanding 已有问题在等待回答
	ErrQuestionOutstanding = errors.New("a question is already awaiting an answer")
	// ErrNoPendingQuestion 当前没有等待中的问题
	ErrNoPendingQuestion = errors.New("no question is awaiting an answer")
)

// DefaultTimeout 默认等待时长
const DefaultTimeout = 300 * time.Second

// DeclineSentinel 客户端以该值表示拒绝回答
const DeclineSentinel = "CANCEL"

// Answer 一次回答；Declined 表示用户拒绝回答全部问题
type Answer struct {
	Values   []string
	Declined bool
}

// NewAnswer 由客户端原始回答构造 Answer，单个 CANCEL 视为拒绝
func NewAnswer(values ...string) Answer {
	if len(values) == 1 && values[0] == DeclineSentinel {
		return Answer{Declined: true}
	}
	return Answer{Values: values}
}

// Notifier 把问题发送给客户端（user_question 帧）
type Notifier interface {
	NotifyQuestion(ctx context.Context, questions []string) error
}

// NotifierFunc 函数适配 Notifier
type NotifierFunc func(ctx context.Context, questions []string) error

// NotifyQuestion 实现 Notifier
func (f NotifierFunc) NotifyQuestion(ctx context.Context, questions []string) error {
	return f(ctx, questions)
}

// Rendezvous 每个任务一个；同一时刻最多一个待回答的问题
type Rendezvous struct {
	notifier Notifier

	mu      sync.Mutex
	pending chan Answer
}

// New 创建 Rendezvous
func New(notifier Notifier) *Rendezvous {
	return &Rendezvous{notifier: notifier}
}

// Ask 发送问题并挂起，直到收到回答、超时或 ctx 取消
func (r *Rendezvous) Ask(ctx context.Context, questions []string, timeout time.Duration) (Answer, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	r.mu.Lock()
	if r.pending != nil {
		r.mu.Unlock()
		return Answer{}, ErrQuestionOutstanding
	}
	slot := make(chan Answer, 1)
	r.pending = slot
	r.mu.Unlock()
	defer r.clear(slot)

	if err := r.notifier.NotifyQuestion(ctx, questions); err != nil {
		return Answer{}, err
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-slot:
		metrics.AskWaitSeconds.WithLabelValues("answered").Observe(time.Since(start).Seconds())
		return a, nil
	case <-timer.C:
		metrics.AskWaitSeconds.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		return Answer{}, ErrAskTimeout
	case <-ctx.Done():
		metrics.AskWaitSeconds.WithLabelValues("cancelled").Observe(time.Since(start).Seconds())
		return Answer{}, ctx.Err()
	}
}

// Deliver 把回答交给等待中的 Ask；每个问题只接受第一个回答
func (r *Rendezvous) Deliver(a Answer) error {
	r.mu.Lock()
	slot := r.pending
	r.pending = nil
	r.mu.Unlock()

	if slot == nil {
		return ErrNoPendingQuestion
	}
	slot <- a
	return nil
}

// Pending 是否有问题在等待回答
func (r *Rendezvous) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

func (r *Rendezvous) clear(slot chan Answer) {
	r.mu.Lock()
	if r.pending == slot {
		r.pending = nil
	}
	r.mu.Unlock()
}
