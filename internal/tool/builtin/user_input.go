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

package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prompt-enhance/internal/agent/rendezvous"
	"prompt-enhance/internal/tool"
)

// UserInputName 工具名
const UserInputName = "get_user_input"

const (
	noAnswer     = "no answer provided"
	declinedNote = "The user declined to answer the questions."
)

// Asker 向用户提问并等待回答
type Asker interface {
	Ask(ctx context.Context, questions []string, timeout time.Duration) (rendezvous.Answer, error)
}

// UserInputTool 实现 get_user_input
type UserInputTool struct {
	asker   Asker
	timeout time.Duration
}

// NewUserInputTool 创建 get_user_input 工具
func NewUserInputTool(asker Asker, timeout time.Duration) *UserInputTool {
	return &UserInputTool{asker: asker, timeout: timeout}
}

// Name 实现 tool.Tool
func (t *UserInputTool) Name() string { return UserInputName }

// Description 实现 tool.Tool
func (t *UserInputTool) Description() string {
	return "Ask the user for input to clarify the prompt."
}

// Schema 实现 tool.Tool
func (t *UserInputTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"questions": {
				Type:        "array",
				Description: "The question(s) to ask the user",
				Items:       &tool.SchemaProperty{Type: "string"},
			},
		},
		Required: []string{"questions"},
	}
}

// Execute 实现 tool.Tool；超时与取消作为 error 返回
func (t *UserInputTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	questions, err := questionList(input["questions"])
	if err != nil {
		return tool.ToolResult{Err: err.Error()}, nil
	}
	answer, err := t.asker.Ask(ctx, questions, t.timeout)
	if err != nil {
		return tool.ToolResult{}, err
	}
	return tool.ToolResult{Content: FormatAnswers(questions, answer)}, nil
}

func questionList(v any) ([]string, error) {
	var out []string
	switch q := v.(type) {
	case string:
		out = append(out, q)
	case []any:
		for _, item := range q {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("questions must be strings")
			}
			out = append(out, s)
		}
	default:
		return nil, fmt.Errorf("questions is required")
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one question is required")
	}
	return cleaned, nil
}

// FormatAnswers 把回答渲染成回填给模型的文本
func FormatAnswers(questions []string, a rendezvous.Answer) string {
	if a.Declined {
		return declinedNote
	}
	if len(questions) == 1 {
		if len(a.Values) == 0 {
			return noAnswer
		}
		return strings.Join(a.Values, "\n")
	}
	lines := make([]string, 0, len(questions))
	for i, q := range questions {
		ans := ""
		if i < len(a.Values) {
			ans = strings.TrimSpace(a.Values[i])
		}
		if ans == "" {
			ans = noAnswer
		}
		lines = append(lines, fmt.Sprintf("Q: %s\nA: %s", q, ans))
	}
	return strings.Join(lines, "\n")
}
