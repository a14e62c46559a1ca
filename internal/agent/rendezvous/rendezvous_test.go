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

package rendezvous

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	asked [][]string
	ch    chan []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan []string, 8)}
}

func (n *recordingNotifier) NotifyQuestion(_ context.Context, questions []string) error {
	n.mu.Lock()
	n.asked = append(n.asked, questions)
	n.mu.Unlock()
	n.ch <- questions
	return nil
}

func TestAsk_TimeoutBounds(t *testing.T) {
	r := New(newRecordingNotifier())
	const timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := r.Ask(context.Background(), []string{"What tone?"}, timeout)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrAskTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
	assert.False(t, r.Pending())
}

func TestAsk_AnswerBeforeTimeout(t *testing.T) {
	n := newRecordingNotifier()
	r := New(n)

	go func() {
		<-n.ch
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, r.Deliver(NewAnswer("Formal")))
	}()

	start := time.Now()
	a, err := r.Ask(context.Background(), []string{"What tone?"}, 5*time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"Formal"}, a.Values)
	assert.False(t, a.Declined)
	assert.Equal(t, [][]string{{"What tone?"}}, n.asked)
}

func TestAsk_CancelReleasesImmediately(t *testing.T) {
	n := newRecordingNotifier()
	r := New(n)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-n.ch
		cancel()
	}()

	start := time.Now()
	_, err := r.Ask(ctx, []string{"q"}, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, r.Pending())
}

func TestAsk_SecondAskWhileOutstanding(t *testing.T) {
	n := newRecordingNotifier()
	r := New(n)

	done := make(chan error, 1)
	go func() {
		_, err := r.Ask(context.Background(), []string{"first"}, time.Second)
		done <- err
	}()
	<-n.ch

	_, err := r.Ask(context.Background(), []string{"second"}, time.Second)
	assert.ErrorIs(t, err, ErrQuestionOutstanding)

	require.NoError(t, r.Deliver(NewAnswer("a")))
	require.NoError(t, <-done)
}

func TestAsk_SequentialReuse(t *testing.T) {
	n := newRecordingNotifier()
	r := New(n)
	go func() {
		for range 2 {
			<-n.ch
			_ = r.Deliver(NewAnswer("x"))
		}
	}()
	for range 2 {
		a, err := r.Ask(context.Background(), []string{"q"}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, a.Values)
	}
}

func TestDeliver_NothingPending(t *testing.T) {
	r := New(newRecordingNotifier())
	assert.ErrorIs(t, r.Deliver(NewAnswer("early")), ErrNoPendingQuestion)
}

func TestDeliver_OnlyFirstAnswerCounts(t *testing.T) {
	n := newRecordingNotifier()
	r := New(n)
	go func() {
		<-n.ch
		_ = r.Deliver(NewAnswer("first"))
		assert.ErrorIs(t, r.Deliver(NewAnswer("second")), ErrNoPendingQuestion)
	}()
	a, err := r.Ask(context.Background(), []string{"q"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, a.Values)
}

func TestAsk_NotifyFailure(t *testing.T) {
	boom := errors.New("connection closed")
	r := New(NotifierFunc(func(context.Context, []string) error { return boom }))
	_, err := r.Ask(context.Background(), []string{"q"}, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.False(t, r.Pending())
}

func TestNewAnswer_Decline(t *testing.T) {
	assert.True(t, NewAnswer("CANCEL").Declined)
	assert.False(t, NewAnswer("CANCEL", "other").Declined)
	assert.Equal(t, []string{"a", "b"}, NewAnswer("a", "b").Values)
}
