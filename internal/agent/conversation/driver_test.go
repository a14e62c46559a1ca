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

package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-enhance/internal/model/llm"
	"prompt-enhance/pkg/config"
	perrors "prompt-enhance/pkg/errors"
)

// scriptedClient 依次返回预设回复，最后一条重复使用
type scriptedClient struct {
	replies []*schema.Message
	err     error
	calls   int
	seen    [][]*schema.Message
}

func (c *scriptedClient) Chat(_ context.Context, msgs []*schema.Message, _ llm.ChatOptions) (*schema.Message, error) {
	c.seen = append(c.seen, append([]*schema.Message(nil), msgs...))
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	i := c.calls - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}
func (c *scriptedClient) Health(context.Context) bool { return true }
func (c *scriptedClient) Name() string                { return "primary" }
func (c *scriptedClient) Model() string               { return "test-model" }

type echoDispatcher struct {
	order []string
	err   error
}

func (d *echoDispatcher) Dispatch(_ context.Context, call schema.ToolCall) (*schema.Message, error) {
	d.order = append(d.order, call.ID)
	if d.err != nil {
		return nil, d.err
	}
	return schema.ToolMessage("result for "+call.Function.Name, call.ID), nil
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func initial() []*schema.Message {
	return []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("user")}
}

func newDriver() *Driver {
	return New(config.OrchestratorConfig{}, nil)
}

// assertPaired 每个工具调用在下一次模型调用前都有对应 id 的结果
func assertPaired(t *testing.T, msgs []*schema.Message) {
	t.Helper()
	var issued, answered int
	for i := 0; i < len(msgs); i++ {
		m := msgs[i]
		if m.Role != schema.Assistant || len(m.ToolCalls) == 0 {
			continue
		}
		for j, call := range m.ToolCalls {
			require.Less(t, i+1+j, len(msgs))
			res := msgs[i+1+j]
			assert.Equal(t, schema.Tool, res.Role)
			assert.Equal(t, call.ID, res.ToolCallID)
			answered++
		}
		issued += len(m.ToolCalls)
	}
	assert.Equal(t, issued, answered)
}

func TestDrive_ImmediateTerminal(t *testing.T) {
	c := &scriptedClient{replies: []*schema.Message{
		schema.AssistantMessage("<improved-prompt>Dear Hiring Manager...</improved-prompt>", nil),
	}}
	text, msgs, err := newDriver().Drive(context.Background(), c, initial(), &echoDispatcher{}, llm.ChatOptions{})
	require.NoError(t, err)
	assert.Contains(t, text, "Dear Hiring Manager...")
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
}

func TestDrive_ToolCallsDispatchedInOrder(t *testing.T) {
	c := &scriptedClient{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("call_a", "web_search", `{"query":"x"}`),
			toolCall("call_b", "get_user_input", `{"questions":["q"]}`),
		}),
		schema.AssistantMessage("", []schema.ToolCall{toolCall("call_c", "web_search", `{"query":"y"}`)}),
		schema.AssistantMessage("done", nil),
	}}
	d := &echoDispatcher{}
	text, msgs, err := newDriver().Drive(context.Background(), c, initial(), d, llm.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, []string{"call_a", "call_b", "call_c"}, d.order)
	// system, user, assistant(2 calls), tool, tool, assistant(1 call), tool, assistant
	assert.Len(t, msgs, 8)
	assertPaired(t, msgs)

	require.Len(t, c.seen, 3)
	assertPaired(t, c.seen[1])
	assertPaired(t, c.seen[2])
	assert.Len(t, c.seen[1], 5)
}

func TestDrive_EmptyRepliesRetried(t *testing.T) {
	empty := schema.AssistantMessage("  ", nil)
	c := &scriptedClient{replies: []*schema.Message{empty, empty, empty, schema.AssistantMessage("text", nil)}}
	text, msgs, err := newDriver().Drive(context.Background(), c, initial(), &echoDispatcher{}, llm.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "text", text)
	assert.Equal(t, 4, c.calls)
	assert.Len(t, msgs, 3)
}

func TestDrive_EmptyRetriesExhausted(t *testing.T) {
	c := &scriptedClient{replies: []*schema.Message{schema.AssistantMessage("", nil)}}
	text, msgs, err := newDriver().Drive(context.Background(), c, initial(), &echoDispatcher{}, llm.ChatOptions{})
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, config.DefaultMaxEmptyRetries+1, c.calls)
	assert.Len(t, msgs, 3)
}

func TestDrive_TurnBudget(t *testing.T) {
	c := &scriptedClient{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{toolCall("loop", "web_search", `{}`)}),
	}}
	d := New(config.OrchestratorConfig{MaxTurns: 4}, nil)
	_, msgs, err := d.Drive(context.Background(), c, initial(), &echoDispatcher{}, llm.ChatOptions{})
	assert.ErrorIs(t, err, perrors.ErrTurnBudgetExhausted)
	assert.Equal(t, 4, c.calls)
	assertPaired(t, msgs)
}

func TestDrive_DispatchErrorKeepsTranscriptConsistent(t *testing.T) {
	c := &scriptedClient{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{toolCall("call_a", "get_user_input", `{}`)}),
	}}
	boom := errors.New("timed out waiting for user input")
	_, msgs, err := newDriver().Drive(context.Background(), c, initial(), &echoDispatcher{err: boom}, llm.ChatOptions{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, msgs, 2)
}

func TestDrive_BackendErrorReturnsTranscript(t *testing.T) {
	c := &scriptedClient{err: &llm.StatusError{Backend: "primary", StatusCode: 500}}
	_, msgs, err := newDriver().Drive(context.Background(), c, initial(), &echoDispatcher{}, llm.ChatOptions{})
	var se *llm.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Len(t, msgs, 2)
}

func TestDrive_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &scriptedClient{replies: []*schema.Message{schema.AssistantMessage("x", nil)}}
	_, _, err := newDriver().Drive(ctx, c, initial(), &echoDispatcher{}, llm.ChatOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.calls)
}

func TestDrive_DoesNotMutateInput(t *testing.T) {
	in := initial()
	c := &scriptedClient{replies: []*schema.Message{schema.AssistantMessage("done", nil)}}
	_, _, err := newDriver().Drive(context.Background(), c, in, &echoDispatcher{}, llm.ChatOptions{})
	require.NoError(t, err)
	assert.Len(t, in, 2, fmt.Sprintf("input transcript changed: %d", len(in)))
}
