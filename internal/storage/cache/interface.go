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

// Package cache 提供带 TTL 的键值缓存，用于保存对话记录
package cache

import (
	"context"
	"time"
)

// Store 缓存存储接口；值以 JSON 编码保存
type Store interface {
	// Set 写入缓存，expiration<=0 表示不过期
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 读取缓存到 dest；不存在或已过期时返回 errors.ErrNotFound
	Get(ctx context.Context, key string, dest interface{}) error
	// Take 原子地读取并删除缓存；并发调用时只有一个调用方拿到值，其余返回 errors.ErrNotFound
	Take(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Exists 检查缓存是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Close 关闭缓存连接
	Close() error
}
