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

// Package llm 提供 OpenAI 兼容的对话补全客户端（支持工具调用）
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// Client 模型后端客户端
type Client interface {
	// Chat 发送完整对话，返回一条 assistant 消息（可能包含 tool calls）
	Chat(ctx context.Context, messages []*schema.Message, opts ChatOptions) (*schema.Message, error)
	// Health 探测后端存活
	Health(ctx context.Context) bool
	// Name 返回后端标识（primary / fallback）
	Name() string
	// Model 返回模型名称
	Model() string
}

// ChatOptions 单次调用选项
type ChatOptions struct {
	Model          string // 非空时覆盖后端配置的模型
	Tools          []ToolDefinition
	ResponseFormat *ResponseFormat // 仅在后端开启 structured_output 时发送
	Temperature    *float64
}

// ToolDefinition 提供给后端的函数工具声明
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  any // JSON Schema，按 JSON 序列化
}

// ResponseFormat json_schema 结构化输出声明
type ResponseFormat struct {
	Name   string
	Schema map[string]any
}

// StatusError 后端返回非 2xx 状态
type StatusError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned status %d: %s", e.Backend, e.StatusCode, e.Message)
}
