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

// Package registry 维护单次对话可用的工具清单并按名称分发调用
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"

	"prompt-enhance/internal/model/llm"
	"prompt-enhance/internal/tool"
	"prompt-enhance/pkg/metrics"
	"prompt-enhance/pkg/tracing"
)

// Registry 工具注册表：注册、发现、供 LLM 使用的工具声明
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
	order []string
}

// New 创建新的 ToolRegistry
func New(tools ...tool.Tool) *Registry {
	r := &Registry{tools: make(map[string]tool.Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register 注册工具；同名工具覆盖但保留原顺序
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 按注册顺序返回所有工具
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Definitions 返回提供给后端的工具清单
func (r *Registry) Definitions() []llm.ToolDefinition {
	tools := r.List()
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// Dispatch 执行一次工具调用并返回携带原调用 id 的 tool 消息。
// 未知工具与非法参数返回错误文本结果；只有工具返回的 error 会中断对话
func (r *Registry) Dispatch(ctx context.Context, call schema.ToolCall) (*schema.Message, error) {
	name := call.Function.Name
	t, ok := r.Get(name)
	if !ok {
		return schema.ToolMessage(tool.ToolResult{Err: fmt.Sprintf("unknown tool %q", name)}.Text(), call.ID), nil
	}

	input, err := parseArguments(call.Function.Arguments)
	if err != nil {
		return schema.ToolMessage(tool.ToolResult{Err: fmt.Sprintf("invalid arguments for %s: %v", name, err)}.Text(), call.ID), nil
	}

	ctx, span := tracing.StartToolSpan(ctx, name, call.ID)
	start := time.Now()
	result, err := t.Execute(ctx, input)
	metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return schema.ToolMessage(result.Text(), call.ID), nil
}

// parseArguments 解析函数参数 JSON；空参数视为空对象
func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("arguments are not valid JSON")
	}
	obj, ok := gjson.Parse(raw).Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return obj, nil
}
