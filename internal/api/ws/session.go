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

// Package ws 实现提示词增强的 WebSocket 会话：每个连接一个会话，会话内同一时刻最多一个任务
package ws

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"sync"

	"github.com/hertz-contrib/websocket"

	"prompt-enhance/internal/agent/rendezvous"
	"prompt-enhance/internal/enhance"
	"prompt-enhance/internal/tool/builtin"
	"prompt-enhance/pkg/errors"
	"prompt-enhance/pkg/log"
	"prompt-enhance/pkg/metrics"
)

// Conn 会话所需的连接能力；*websocket.Conn 满足该接口
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Runner 执行增强/编辑任务
type Runner interface {
	Enhance(ctx context.Context, req enhance.Request, asker builtin.Asker) (enhance.Outcome, error)
	Edit(ctx context.Context, req enhance.EditRequest, asker builtin.Asker) (enhance.Outcome, error)
}

// Admitter 任务启动前的准入检查
type Admitter interface {
	Claim(ctx context.Context, clientKey, taskID string) bool
}

var errConnClosed = goerrors.New("connection closed")

// Session 单个 WebSocket 连接上的会话
type Session struct {
	conn      Conn
	taskID    string
	clientKey string
	runner    Runner
	admitter  Admitter
	logger    *log.Logger

	writeMu sync.Mutex
	closed  bool

	mu      sync.Mutex
	running bool
	rv      *rendezvous.Rendezvous
	tasks   sync.WaitGroup
}

// NewSession 创建会话；admitter 为 nil 时不做准入控制
func NewSession(conn Conn, taskID, clientKey string, runner Runner, admitter Admitter, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Session{
		conn:      conn,
		taskID:    taskID,
		clientKey: clientKey,
		runner:    runner,
		admitter:  admitter,
		logger:    logger.With("task_id", taskID, "client", clientKey),
	}
}

// Serve 读循环；连接关闭后取消进行中的任务并等待其退出，之后不再写入
func (s *Session) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	metrics.ActiveSessions.Inc()
	defer func() {
		s.markClosed()
		cancel()
		s.tasks.Wait()
		_ = s.conn.Close()
		metrics.ActiveSessions.Dec()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Info("websocket closed", "error", err)
			return
		}
		s.handle(ctx, data)
	}
}

func (s *Session) handle(ctx context.Context, data []byte) {
	frame, err := ParseFrame(data)
	if err != nil {
		s.logger.Warn("invalid frame", "error", err)
		if !s.isRunning() {
			s.send(OutboundFrame{Type: TypeTaskError, Error: err.Error()})
		}
		return
	}

	switch frame.Type {
	case TypeEnhance, TypeEditRequest:
		s.start(ctx, frame)
	case TypeUserAnswer:
		s.answer(frame)
	default:
		s.logger.Warn("unknown frame type", "type", frame.Type)
	}
}

func (s *Session) start(ctx context.Context, frame InboundFrame) {
	if s.isRunning() {
		s.logger.Warn("task already running, ignoring start frame", "type", frame.Type)
		return
	}

	var run func(ctx context.Context, asker builtin.Asker) (enhance.Outcome, error)
	switch frame.Type {
	case TypeEnhance:
		req := frame.EnhanceRequest(s.taskID)
		if err := req.Validate(); err != nil {
			s.send(OutboundFrame{Type: TypeTaskError, Error: err.Error()})
			return
		}
		run = func(ctx context.Context, asker builtin.Asker) (enhance.Outcome, error) {
			return s.runner.Enhance(ctx, req, asker)
		}
	default:
		req := frame.EditRequest(s.taskID)
		if err := req.Validate(); err != nil {
			s.send(OutboundFrame{Type: TypeTaskError, Error: err.Error()})
			return
		}
		run = func(ctx context.Context, asker builtin.Asker) (enhance.Outcome, error) {
			return s.runner.Edit(ctx, req, asker)
		}
	}

	if s.admitter != nil && !s.admitter.Claim(ctx, s.clientKey, s.taskID) {
		metrics.RateLimitRejectTotal.Inc()
		s.send(OutboundFrame{Type: TypeTaskError, Error: errors.ErrRateLimited.Error()})
		return
	}

	rv := rendezvous.New(rendezvous.NotifierFunc(s.notifyQuestion))
	s.mu.Lock()
	s.running = true
	s.rv = rv
	s.mu.Unlock()

	s.send(OutboundFrame{Type: TypeProcessing, TaskID: s.taskID})
	s.logger.Info("task started", "type", frame.Type)

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		out, err := run(ctx, rv)

		// 终态帧写出后才允许下一次启动
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.logger.Warn("task failed", "error", err)
			s.send(OutboundFrame{Type: TypeTaskError, Error: ErrorMessage(err)})
		} else {
			fallback := out.IsFallback
			s.send(OutboundFrame{Type: TypeTaskComplete, Result: out.Result, IsFallback: &fallback})
		}
		s.running = false
		s.rv = nil
	}()
}

func (s *Session) answer(frame InboundFrame) {
	defer s.send(OutboundFrame{Type: TypeAnswerReceived, Status: "ok"})

	a, err := frame.UserAnswer()
	if err != nil {
		s.logger.Warn("invalid answer frame", "error", err)
		return
	}
	s.mu.Lock()
	rv := s.rv
	s.mu.Unlock()
	if rv == nil {
		s.logger.Info("answer received with no running task")
		return
	}
	if err := rv.Deliver(a); err != nil {
		s.logger.Info("answer dropped", "error", err)
	}
}

func (s *Session) notifyQuestion(_ context.Context, questions []string) error {
	if !s.send(OutboundFrame{Type: TypeUserQuestion, Questions: questions}) {
		return errConnClosed
	}
	return nil
}

// send 写一帧；连接已关闭或写失败时返回 false
func (s *Session) send(f OutboundFrame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("marshal frame failed", "type", f.Type, "error", err)
		return false
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return false
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("write frame failed", "type", f.Type, "error", err)
		return false
	}
	return true
}

func (s *Session) markClosed() {
	s.writeMu.Lock()
	s.closed = true
	s.writeMu.Unlock()
}

func (s *Session) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ErrorMessage 把任务错误转换为客户端可见的文本
func ErrorMessage(err error) string {
	for _, known := range []error{
		rendezvous.ErrAskTimeout,
		errors.ErrServiceUnavailable,
		errors.ErrExtractionFailed,
		errors.ErrTurnBudgetExhausted,
		errors.ErrRateLimited,
	} {
		if goerrors.Is(err, known) {
			return known.Error()
		}
	}
	if goerrors.Is(err, context.Canceled) {
		return "task cancelled"
	}
	return "internal error: " + err.Error()
}
