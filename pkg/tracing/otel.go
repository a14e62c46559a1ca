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

// Package tracing 编排链路的 OpenTelemetry span 辅助；TracerProvider 由 API 启动时按配置安装，未安装时为 no-op
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "prompt-enhance"

// StartTaskSpan 开始一次编排任务 span
func StartTaskSpan(ctx context.Context, taskID string, kind string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "task.run",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.kind", kind),
		),
	)
	return ctx, span
}

// StartModelSpan 开始一次模型调用 span
func StartModelSpan(ctx context.Context, backend string, model string, turn int) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "model.call",
		trace.WithAttributes(
			attribute.String("model.backend", backend),
			attribute.String("model.name", model),
			attribute.Int("conversation.turn", turn),
		),
	)
	return ctx, span
}

// StartToolSpan 开始一次工具调用 span
func StartToolSpan(ctx context.Context, toolName string, callID string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "tool.invoke",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("tool.call_id", callID),
		),
	)
	return ctx, span
}

// EndSpan 结束 span，err 非 nil 时记录错误状态
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
