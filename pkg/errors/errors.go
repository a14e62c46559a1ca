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

// Package errors 提供统一错误辅助与编排层错误分类，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误（可按需扩展错误码）
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// 编排层错误分类：每类错误在任务边界统一转为一条 task_error
var (
	// ErrRateLimited 准入失败，不创建任务
	ErrRateLimited = errors.New("rate limit exceeded, please wait a minute before trying again")
	// ErrServiceUnavailable 主后端不可用且无法切换到备用后端
	ErrServiceUnavailable = errors.New("service unavailable, please try again later")
	// ErrExtractionFailed 后端输出无法被任何解析策略识别
	ErrExtractionFailed = errors.New("could not parse result from model output")
	// ErrTurnBudgetExhausted 对话轮数超过上限仍未得到终态回复
	ErrTurnBudgetExhausted = errors.New("conversation turn budget exhausted")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
