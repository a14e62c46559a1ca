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

// Package builtin 提供对话内置工具：web_search 与 get_user_input
package builtin

import (
	"context"
	"strings"

	"prompt-enhance/internal/tool"
)

// WebSearchName 工具名
const WebSearchName = "web_search"

// Searcher 外部搜索服务，返回清洗后的文本摘要
type Searcher interface {
	Search(ctx context.Context, query string, n int) (string, error)
}

// WebSearchTool 实现 web_search
type WebSearchTool struct {
	searcher Searcher
	results  int
}

// NewWebSearchTool 创建 web_search 工具；results 为每次返回的结果条数
func NewWebSearchTool(searcher Searcher, results int) *WebSearchTool {
	if results <= 0 {
		results = 10
	}
	return &WebSearchTool{searcher: searcher, results: results}
}

// Name 实现 tool.Tool
func (t *WebSearchTool) Name() string { return WebSearchName }

// Description 实现 tool.Tool
func (t *WebSearchTool) Description() string {
	return "Search the web for up-to-date information relevant to the user's prompt."
}

// Schema 实现 tool.Tool
func (t *WebSearchTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string", Description: "The search query"},
		},
		Required: []string{"query"},
	}
}

// Execute 实现 tool.Tool；搜索失败以错误文本回填，只有 ctx 取消会中断对话
func (t *WebSearchTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	query, _ := input["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return tool.ToolResult{Err: "query is required"}, nil
	}
	digest, err := t.searcher.Search(ctx, query, t.results)
	if err != nil {
		if ctx.Err() != nil {
			return tool.ToolResult{}, ctx.Err()
		}
		return tool.ToolResult{Err: "web search failed: " + err.Error()}, nil
	}
	if digest == "" {
		return tool.ToolResult{Content: "No results found."}, nil
	}
	return tool.ToolResult{Content: digest}, nil
}
