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

// Package secrets 解析模型后端与搜索服务的凭据
package secrets

import (
	"context"
	"fmt"

	"prompt-enhance/pkg/config"
)

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值，不存在时返回错误
	Get(ctx context.Context, key string) (string, error)
	// Set 写入 secret 值
	Set(ctx context.Context, key string, value string) error
}

// NewStore 按 provider 创建 Secret Store
func NewStore(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(cfg.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Provider)
	}
}

// ResolveBackendKeys 为配置了 api_key_secret 的后端填充 APIKey
func ResolveBackendKeys(ctx context.Context, store Store, backends ...*config.BackendConfig) error {
	for _, b := range backends {
		if b == nil || b.APIKeySecret == "" || b.APIKey != "" {
			continue
		}
		key, err := store.Get(ctx, b.APIKeySecret)
		if err != nil {
			return fmt.Errorf("resolve api key for backend %s: %w", b.Name, err)
		}
		b.APIKey = key
	}
	return nil
}
