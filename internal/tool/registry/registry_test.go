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

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-enhance/internal/tool"
)

type echoTool struct {
	name string
	err  error
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echo " + e.name }
func (e *echoTool) Schema() tool.Schema {
	return tool.Schema{Type: "object", Properties: map[string]tool.SchemaProperty{"text": {Type: "string"}}}
}
func (e *echoTool) Execute(_ context.Context, input map[string]any) (tool.ToolResult, error) {
	if e.err != nil {
		return tool.ToolResult{}, e.err
	}
	text, _ := input["text"].(string)
	return tool.ToolResult{Content: text}, nil
}

func call(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func TestRegistry_DefinitionsKeepOrder(t *testing.T) {
	r := New(&echoTool{name: "b"}, &echoTool{name: "a"})
	r.Register(&echoTool{name: "b"})
	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "b", defs[0].Name)
	assert.Equal(t, "a", defs[1].Name)

	raw, err := json.Marshal(defs[0].Parameters)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"text":{"type":"string"}}}`, string(raw))
}

func TestRegistry_Dispatch(t *testing.T) {
	r := New(&echoTool{name: "echo"})
	ctx := context.Background()

	msg, err := r.Dispatch(ctx, call("c1", "echo", `{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, schema.Tool, msg.Role)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.Equal(t, "hi", msg.Content)

	msg, err = r.Dispatch(ctx, call("c2", "missing", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "c2", msg.ToolCallID)
	assert.Contains(t, msg.Content, "unknown tool")

	msg, err = r.Dispatch(ctx, call("c3", "echo", `{"text":`))
	require.NoError(t, err)
	assert.Equal(t, "c3", msg.ToolCallID)
	assert.Contains(t, msg.Content, "invalid arguments")

	msg, err = r.Dispatch(ctx, call("c4", "echo", `["a"]`))
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "must be a JSON object")

	msg, err = r.Dispatch(ctx, call("c5", "echo", ""))
	require.NoError(t, err)
	assert.Equal(t, "", msg.Content)
}

func TestRegistry_DispatchFatalError(t *testing.T) {
	boom := errors.New("timed out")
	r := New(&echoTool{name: "ask", err: boom})
	msg, err := r.Dispatch(context.Background(), call("c1", "ask", `{}`))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, msg)
}
