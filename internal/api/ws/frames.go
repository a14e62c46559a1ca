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

package ws

import (
	"encoding/json"
	"fmt"

	"prompt-enhance/internal/agent/rendezvous"
	"prompt-enhance/internal/enhance"
	"prompt-enhance/internal/prompt"
	"prompt-enhance/pkg/errors"
)

// 帧类型
const (
	TypeEnhance        = "enhance"
	TypeEditRequest    = "edit_request"
	TypeUserAnswer     = "user_answer"
	TypeProcessing     = "processing"
	TypeUserQuestion   = "user_question"
	TypeTaskComplete   = "task_complete"
	TypeTaskError      = "task_error"
	TypeAnswerReceived = "answer_received"
)

// InboundFrame 客户端发来的帧
type InboundFrame struct {
	Type                   string          `json:"type"`
	Task                   string          `json:"task"`
	LazyPrompt             string          `json:"lazy_prompt"`
	UseWebSearch           bool            `json:"use_web_search"`
	AdditionalContextQuery string          `json:"additional_context_query"`
	Model                  string          `json:"model"`
	TargetModel            string          `json:"target_model"`
	IsReasoningNative      bool            `json:"is_reasoning_native"`
	PromptStyle            prompt.Style    `json:"prompt_style"`
	EditInstructions       string          `json:"edit_instructions"`
	CurrentPrompt          string          `json:"current_prompt"`
	Answers                json.RawMessage `json:"answers"`
	Answer                 json.RawMessage `json:"answer"` // 旧版客户端
}

// OutboundFrame 服务端发出的帧
type OutboundFrame struct {
	Type       string   `json:"type"`
	TaskID     string   `json:"task_id,omitempty"`
	Questions  []string `json:"questions,omitempty"`
	Result     string   `json:"result,omitempty"`
	IsFallback *bool    `json:"is_fallback,omitempty"`
	Error      string   `json:"error,omitempty"`
	Status     string   `json:"status,omitempty"`
}

// ParseFrame 解析客户端帧
func ParseFrame(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("%w: malformed frame: %v", errors.ErrInvalidArg, err)
	}
	if f.Type == "" {
		return f, fmt.Errorf("%w: frame type is required", errors.ErrInvalidArg)
	}
	return f, nil
}

// EnhanceRequest 转换为增强请求
func (f InboundFrame) EnhanceRequest(taskID string) enhance.Request {
	return enhance.Request{
		TaskID:                 taskID,
		Task:                   f.Task,
		LazyPrompt:             f.LazyPrompt,
		UseWebSearch:           f.UseWebSearch,
		AdditionalContextQuery: f.AdditionalContextQuery,
		Model:                  f.Model,
		TargetModel:            f.TargetModel,
		ReasoningNative:        f.IsReasoningNative,
		Style:                  f.PromptStyle,
	}
}

// EditRequest 转换为编辑请求
func (f InboundFrame) EditRequest(taskID string) enhance.EditRequest {
	return enhance.EditRequest{
		TaskID:          taskID,
		Instructions:    f.EditInstructions,
		CurrentPrompt:   f.CurrentPrompt,
		UseWebSearch:    f.UseWebSearch,
		Model:           f.Model,
		ReasoningNative: f.IsReasoningNative,
	}
}

// UserAnswer 解析 answers（字符串或字符串数组），兼容旧版 answer 字段
func (f InboundFrame) UserAnswer() (rendezvous.Answer, error) {
	raw := f.Answers
	if len(raw) == 0 || string(raw) == "null" {
		raw = f.Answer
	}
	if len(raw) == 0 || string(raw) == "null" {
		return rendezvous.Answer{}, fmt.Errorf("%w: answers is required", errors.ErrInvalidArg)
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return rendezvous.NewAnswer(one), nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return rendezvous.Answer{}, fmt.Errorf("%w: answers must be a string or a list of strings", errors.ErrInvalidArg)
	}
	return rendezvous.NewAnswer(many...), nil
}
