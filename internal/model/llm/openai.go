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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"prompt-enhance/pkg/config"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultChatTimeout = 120 * time.Second
	healthTimeout      = 5 * time.Second
	maxErrorBody       = 512
)

// OpenAIClient OpenAI 兼容后端客户端
type OpenAIClient struct {
	name             string
	model            string
	apiKey           string
	baseURL          string
	healthURL        string
	structuredOutput bool
	reasoningEffort  string
	client           *resty.Client
}

// NewOpenAIClient 按后端配置创建客户端
func NewOpenAIClient(cfg config.BackendConfig) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New()
	client.SetTimeout(config.ParseDuration(cfg.Timeout, defaultChatTimeout))
	client.SetHeader("Content-Type", "application/json")

	return &OpenAIClient{
		name:             cfg.Name,
		model:            cfg.Model,
		apiKey:           cfg.APIKey,
		baseURL:          baseURL,
		healthURL:        cfg.HealthURL,
		structuredOutput: cfg.StructuredOutput,
		reasoningEffort:  cfg.ReasoningEffort,
		client:           client,
	}
}

// NewClient 创建客户端；配置了 requests_per_minute 或 max_concurrent 时包装限速
func NewClient(cfg config.BackendConfig) Client {
	c := NewOpenAIClient(cfg)
	if cfg.RequestsPerMinute <= 0 && cfg.MaxConcurrent <= 0 {
		return c
	}
	return NewThrottledClient(c, NewThrottle(cfg.RequestsPerMinute, cfg.MaxConcurrent))
}

// Name 返回后端标识
func (c *OpenAIClient) Name() string { return c.name }

// Model 返回模型名称
func (c *OpenAIClient) Model() string { return c.model }

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat 调用 /chat/completions
func (c *OpenAIClient) Chat(ctx context.Context, messages []*schema.Message, opts ChatOptions) (*schema.Message, error) {
	body := c.buildRequest(messages, opts)

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("call backend %s: %w", c.name, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &StatusError{Backend: c.name, StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode backend %s response: %w", c.name, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("backend %s returned no choices", c.name)
	}
	return fromWire(out.Choices[0].Message), nil
}

func (c *OpenAIClient) buildRequest(messages []*schema.Message, opts ChatOptions) map[string]any {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, toWire(m))
	}
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	body := map[string]any{
		"model":    model,
		"messages": wire,
	}
	if c.reasoningEffort != "" {
		body["reasoning_effort"] = c.reasoningEffort
	}
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if len(opts.Tools) > 0 {
		tools := make([]map[string]any, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		body["tools"] = tools
	}
	if c.structuredOutput && opts.ResponseFormat != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   opts.ResponseFormat.Name,
				"schema": opts.ResponseFormat.Schema,
				"strict": true,
			},
		}
	}
	return body
}

func toWire(m *schema.Message) wireMessage {
	w := wireMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		typ := tc.Type
		if typ == "" {
			typ = "function"
		}
		w.ToolCalls = append(w.ToolCalls, wireToolCall{
			ID:       tc.ID,
			Type:     typ,
			Function: wireFunction{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}
	return w
}

func fromWire(w wireMessage) *schema.Message {
	var calls []schema.ToolCall
	for _, tc := range w.ToolCalls {
		calls = append(calls, schema.ToolCall{
			ID:       tc.ID,
			Type:     tc.Type,
			Function: schema.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}
	return schema.AssistantMessage(w.Content, calls)
}

// errorMessage 提取 {"error":{"message":...}}，否则截断原始 body
func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

// Health GET health_url，响应 {"status":"up"} 视为健康；未配置 health_url 视为健康
func (c *OpenAIClient) Health(ctx context.Context) bool {
	if c.healthURL == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := c.client.R().SetContext(ctx).Get(c.healthURL)
	if err != nil || resp.StatusCode() != http.StatusOK {
		return false
	}
	return gjson.GetBytes(resp.Body(), "status").String() == "up"
}
