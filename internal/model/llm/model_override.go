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

	"github.com/cloudwego/eino/schema"
)

type modelOverride struct {
	Client
	model string
}

// WithModel 返回使用指定模型的客户端视图，与 inner 共享连接池与限速
func WithModel(inner Client, model string) Client {
	if model == "" || model == inner.Model() {
		return inner
	}
	return &modelOverride{Client: inner, model: model}
}

func (m *modelOverride) Chat(ctx context.Context, messages []*schema.Message, opts ChatOptions) (*schema.Message, error) {
	opts.Model = m.model
	return m.Client.Chat(ctx, messages, opts)
}

func (m *modelOverride) Model() string { return m.model }
