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

// Package enhance 组装一次提示词增强/编辑任务：构造对话、经路由执行、解析结果并缓存对话记录
package enhance

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"prompt-enhance/internal/agent/conversation"
	"prompt-enhance/internal/agent/extract"
	"prompt-enhance/internal/model/llm"
	"prompt-enhance/internal/model/router"
	"prompt-enhance/internal/prompt"
	"prompt-enhance/internal/storage/cache"
	"prompt-enhance/internal/tool/builtin"
	"prompt-enhance/internal/tool/registry"
	"prompt-enhance/pkg/config"
	"prompt-enhance/pkg/errors"
	"prompt-enhance/pkg/log"
	"prompt-enhance/pkg/metrics"
	"prompt-enhance/pkg/tracing"
)

// additionalContextResults 预搜索附加上下文时取的结果条数
const additionalContextResults = 3

// Request 增强任务参数
type Request struct {
	TaskID                 string
	Task                   string
	LazyPrompt             string
	UseWebSearch           bool
	AdditionalContextQuery string
	Model                  string // 覆盖主后端模型，空表示使用配置
	TargetModel            string
	ReasoningNative        bool
	Style                  prompt.Style
}

// EditRequest 编辑任务参数
type EditRequest struct {
	TaskID          string
	Instructions    string
	CurrentPrompt   string
	UseWebSearch    bool
	Model           string
	ReasoningNative bool
}

// Outcome 任务结果
type Outcome struct {
	Result     string
	IsFallback bool
	Transcript []*schema.Message
}

// Service 编排服务，跨任务共享且无可变状态
type Service struct {
	router     *router.Router
	driver     *conversation.Driver
	searcher   builtin.Searcher // nil 表示未配置搜索服务
	results    int
	cache      cache.Store
	extractor  *extract.Extractor
	askTimeout time.Duration
	ttl        time.Duration
	defaultTgt string
	logger     *log.Logger
	now        func() time.Time
}

// Deps Service 依赖
type Deps struct {
	Router   *router.Router
	Driver   *conversation.Driver
	Searcher builtin.Searcher
	Cache    cache.Store
	Config   *config.Config
	Logger   *log.Logger
}

// NewService 创建 Service
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}
	return &Service{
		router:     d.Router,
		driver:     d.Driver,
		searcher:   d.Searcher,
		results:    cfg.Search.Results,
		cache:      d.Cache,
		extractor:  extract.New(),
		askTimeout: cfg.Orchestrator.AskTimeoutDuration(),
		ttl:        cfg.Orchestrator.TranscriptTTLDuration(),
		defaultTgt: cfg.Model.DefaultTargetModel,
		logger:     logger,
		now:        time.Now,
	}
}

// TranscriptKey 对话记录缓存键
func TranscriptKey(taskID string) string {
	return "transcript:" + taskID
}

// Enhance 执行增强任务
func (s *Service) Enhance(ctx context.Context, req Request, asker builtin.Asker) (out Outcome, err error) {
	ctx, finish := s.begin(ctx, req.TaskID, "enhance")
	defer func() { finish(err) }()

	var additional string
	if req.AdditionalContextQuery != "" && s.searcher != nil {
		additional, err = s.searcher.Search(ctx, req.AdditionalContextQuery, additionalContextResults)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			s.logger.Warn("additional context search failed", "task_id", req.TaskID, "error", err)
			additional, err = "", nil
		}
	}

	target := req.TargetModel
	if target == "" {
		target = s.defaultTgt
	}
	transcript := []*schema.Message{
		schema.SystemMessage(prompt.System(prompt.SystemOptions{
			UseWebSearch:         req.UseWebSearch,
			ReasoningNative:      req.ReasoningNative,
			HasAdditionalContext: additional != "",
		})),
		schema.UserMessage(prompt.User(prompt.Input{
			Task:              req.Task,
			LazyPrompt:        req.LazyPrompt,
			AdditionalContext: additional,
			TargetModel:       target,
			Style:             req.Style,
			Now:               s.now(),
		})),
	}

	return s.run(ctx, req.TaskID, req.Model, req.UseWebSearch, transcript, asker)
}

// Edit 执行编辑任务；有缓存的增强对话时在其后继续，否则重建对话
func (s *Service) Edit(ctx context.Context, req EditRequest, asker builtin.Asker) (out Outcome, err error) {
	ctx, finish := s.begin(ctx, req.TaskID, "edit")
	defer func() { finish(err) }()

	edit := schema.UserMessage(prompt.EditUser(req.Instructions, req.CurrentPrompt))

	transcript := s.loadTranscript(ctx, req.TaskID)
	if len(transcript) == 0 {
		transcript = []*schema.Message{
			schema.SystemMessage(prompt.System(prompt.SystemOptions{
				UseWebSearch:    req.UseWebSearch,
				ReasoningNative: req.ReasoningNative,
			})),
		}
	}
	transcript = append(transcript, edit)

	return s.run(ctx, req.TaskID, req.Model, req.UseWebSearch, transcript, asker)
}

func (s *Service) run(ctx context.Context, taskID, model string, useWebSearch bool, transcript []*schema.Message, asker builtin.Asker) (Outcome, error) {
	tools := registry.New(builtin.NewUserInputTool(asker, s.askTimeout))
	if useWebSearch && s.searcher != nil {
		tools.Register(builtin.NewWebSearchTool(s.searcher, s.results))
	}
	opts := llm.ChatOptions{
		Tools:          tools.Definitions(),
		ResponseFormat: ResponseFormat(),
	}

	attempt := func(ctx context.Context, client llm.Client, transcript []*schema.Message) (string, []*schema.Message, error) {
		s.logger.Info("running conversation", "task_id", taskID, "backend", client.Name(), "model", client.Model())
		return s.driver.Drive(ctx, client, transcript, tools, opts)
	}

	res, err := s.router.WithPrimaryModel(model).Run(ctx, transcript, attempt)
	if err != nil {
		return Outcome{IsFallback: res.UsedFallback, Transcript: res.Transcript}, err
	}

	artifact, strategy, ok := s.extractor.Extract(res.Text)
	if !ok {
		s.logger.Warn("could not extract result", "task_id", taskID, "backend", res.Backend)
		return Outcome{IsFallback: res.UsedFallback, Transcript: res.Transcript}, errors.ErrExtractionFailed
	}
	s.logger.Info("task completed", "task_id", taskID, "backend", res.Backend, "fallback", res.UsedFallback, "strategy", strategy)

	s.storeTranscript(ctx, taskID, res.Transcript)
	return Outcome{Result: artifact, IsFallback: res.UsedFallback, Transcript: res.Transcript}, nil
}

// begin 开始任务 span 并返回记录指标的收尾函数
func (s *Service) begin(ctx context.Context, taskID, kind string) (context.Context, func(error)) {
	ctx, span := tracing.StartTaskSpan(ctx, taskID, kind)
	start := time.Now()
	return ctx, func(err error) {
		status := "completed"
		switch {
		case err == nil:
		case goerrors.Is(err, context.Canceled):
			status = "cancelled"
		default:
			status = "failed"
		}
		metrics.TaskTotal.WithLabelValues(kind, status).Inc()
		metrics.TaskDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}
}

func (s *Service) loadTranscript(ctx context.Context, taskID string) []*schema.Message {
	if s.cache == nil || taskID == "" {
		return nil
	}
	var msgs []*schema.Message
	if err := s.cache.Get(ctx, TranscriptKey(taskID), &msgs); err != nil {
		if !goerrors.Is(err, errors.ErrNotFound) {
			s.logger.Warn("load transcript failed, rebuilding conversation", "task_id", taskID, "error", err)
		}
		return nil
	}
	return msgs
}

func (s *Service) storeTranscript(ctx context.Context, taskID string, msgs []*schema.Message) {
	if s.cache == nil || taskID == "" {
		return
	}
	if err := s.cache.Set(ctx, TranscriptKey(taskID), msgs, s.ttl); err != nil {
		s.logger.Warn("store transcript failed", "task_id", taskID, "error", err)
	}
}

// ResponseFormat 结构化输出 schema：analysis + improved_prompt
func ResponseFormat() *llm.ResponseFormat {
	return &llm.ResponseFormat{
		Name: "enhanced_prompt",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"analysis":        map[string]any{"type": "string"},
				extract.FieldName: map[string]any{"type": "string"},
			},
			"required":             []string{"analysis", extract.FieldName},
			"additionalProperties": false,
		},
	}
}

// Validate 校验增强请求
func (r Request) Validate() error {
	if r.LazyPrompt == "" {
		return fmt.Errorf("%w: lazy_prompt is required", errors.ErrInvalidArg)
	}
	return nil
}

// Validate 校验编辑请求
func (r EditRequest) Validate() error {
	if r.Instructions == "" {
		return fmt.Errorf("%w: edit_instructions is required", errors.ErrInvalidArg)
	}
	if r.CurrentPrompt == "" {
		return fmt.Errorf("%w: current_prompt is required", errors.ErrInvalidArg)
	}
	return nil
}
