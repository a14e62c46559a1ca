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

// Package extract 从模型输出中解析改进后的提示词，按顺序尝试多种格式
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// FieldName 结构化输出中承载结果的字段
const FieldName = "improved_prompt"

// Strategy 单一解析策略
type Strategy interface {
	Name() string
	// TryParse 成功时返回非空结果与 true
	TryParse(raw string) (string, bool)
}

// Extractor 按顺序尝试策略
type Extractor struct {
	strategies []Strategy
}

// New 使用给定策略顺序创建 Extractor；为空时使用默认顺序
func New(strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Extractor{strategies: strategies}
}

// DefaultStrategies 结构化 JSON → 宽松 JSON → 标签区段 → Markdown 标题
func DefaultStrategies() []Strategy {
	return []Strategy{Structured{}, LooseJSON{}, Tagged{}, MarkdownHeading{}}
}

// Extract 返回第一个成功策略的结果及策略名
func (e *Extractor) Extract(raw string) (artifact string, strategy string, ok bool) {
	for _, s := range e.strategies {
		if v, ok := s.TryParse(raw); ok {
			return v, s.Name(), true
		}
	}
	return "", "", false
}

// Extract 使用默认策略
func Extract(raw string) (string, bool) {
	v, _, ok := New().Extract(raw)
	return v, ok
}

// Structured 整段输出是符合 schema 的 JSON 对象
type Structured struct{}

// Name 实现 Strategy
func (Structured) Name() string { return "structured" }

// TryParse 实现 Strategy
func (Structured) TryParse(raw string) (string, bool) {
	var out struct {
		Analysis       string `json:"analysis"`
		ImprovedPrompt string `json:"improved_prompt"`
	}
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return "", false
	}
	if dec.More() {
		return "", false
	}
	v := strings.TrimSpace(out.ImprovedPrompt)
	return v, v != ""
}

// LooseJSON 容忍代码围栏、前后说明文字与尾逗号
type LooseJSON struct{}

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	looseKeys       = []string{FieldName, "improvedPrompt", "improved-prompt"}
)

// Name 实现 Strategy
func (LooseJSON) Name() string { return "loose_json" }

// TryParse 实现 Strategy
func (LooseJSON) TryParse(raw string) (string, bool) {
	text := raw
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := trailingCommaRe.ReplaceAllString(text[start:end+1], "$1")
	for _, key := range looseKeys {
		r := gjson.Get(candidate, key)
		if r.Type != gjson.String {
			continue
		}
		if v := strings.TrimSpace(r.String()); v != "" {
			return v, true
		}
	}
	return "", false
}

// Tagged <improved-prompt>X</improved-prompt>
type Tagged struct{}

var taggedRe = regexp.MustCompile(`(?s)<improved-prompt>(.*?)</improved-prompt>`)

// Name 实现 Strategy
func (Tagged) Name() string { return "tagged" }

// TryParse 实现 Strategy
func (Tagged) TryParse(raw string) (string, bool) {
	m := taggedRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

// MarkdownHeading 取最后一个 "Improved Prompt" 标题之后到下一个 ## 标题之间的文本
type MarkdownHeading struct{}

var headingRe = regexp.MustCompile(`(?is)\*{0,2}Improved Prompt\*{0,2}:?\*{0,2}\s*(.*?)\s*(?:##|\z)`)

const promptLabel = "**Prompt:**"

// Name 实现 Strategy
func (MarkdownHeading) Name() string { return "markdown" }

// TryParse 实现 Strategy
func (MarkdownHeading) TryParse(raw string) (string, bool) {
	matches := headingRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return "", false
	}
	v := strings.TrimSpace(matches[len(matches)-1][1])
	v = strings.TrimSpace(strings.TrimPrefix(v, promptLabel))
	return v, v != ""
}
