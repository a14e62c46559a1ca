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

// Package app 组装编排服务的依赖
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"prompt-enhance/internal/agent/conversation"
	"prompt-enhance/internal/enhance"
	"prompt-enhance/internal/model/llm"
	"prompt-enhance/internal/model/router"
	"prompt-enhance/internal/ratelimit"
	"prompt-enhance/internal/search"
	"prompt-enhance/internal/storage/cache"
	"prompt-enhance/pkg/config"
	"prompt-enhance/pkg/log"
	"prompt-enhance/pkg/secrets"
)

// Bootstrap 统一初始化：config → logger → secrets → cache → limiter → backends → search → service
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Cache   cache.Store
	Limiter ratelimit.Limiter
	Gate    *ratelimit.Gate
	Router  *router.Router
	Service *enhance.Service

	redis *redis.Client
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	store, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store failed: %w", err)
	}
	if err := secrets.ResolveBackendKeys(ctx, store, &cfg.Model.Primary, &cfg.Model.Fallback); err != nil {
		return nil, fmt.Errorf("解析后端密钥failed: %w", err)
	}

	b := &Bootstrap{Config: cfg, Logger: logger}

	// 缓存与 redis 限流器共用同一客户端
	if cfg.Storage.Cache.Type == "redis" || cfg.RateLimit.Type == "redis" {
		b.redis = cache.NewRedisClient(cfg.Storage.Cache)
	}
	if cfg.Storage.Cache.Type == "redis" {
		b.Cache = cache.NewRedisStore(b.redis)
	} else {
		b.Cache, err = cache.NewCache(cfg.Storage.Cache)
		if err != nil {
			return nil, fmt.Errorf("初始化缓存failed: %w", err)
		}
	}

	var rc redis.UniversalClient
	if b.redis != nil {
		rc = b.redis
	}
	b.Limiter, err = ratelimit.New(cfg.RateLimit, rc, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化限流器failed: %w", err)
	}
	b.Gate = ratelimit.NewGate(b.Limiter, b.Cache, logger)

	b.Router = router.New(cfg.Model, llm.NewClient, logger)
	if !b.Router.HasFallback() {
		logger.Warn("备用后端未配置，主后端失败时任务直接报错")
	}

	var searcher *search.Client
	if cfg.Search.BaseURL != "" {
		searcher = search.NewClient(cfg.Search)
	} else {
		logger.Info("搜索服务未配置，web_search 工具不可用")
	}

	deps := enhance.Deps{
		Router: b.Router,
		Driver: conversation.New(cfg.Orchestrator, logger),
		Cache:  b.Cache,
		Config: cfg,
		Logger: logger,
	}
	if searcher != nil {
		deps.Searcher = searcher
	}
	b.Service = enhance.NewService(deps)

	logger.Info("bootstrap 完成",
		"primary", cfg.Model.Primary.Model,
		"fallback", b.Router.HasFallback(),
		"cache", cfg.Storage.Cache.Type,
		"rate_limit", cfg.RateLimit.Type,
	)
	return b, nil
}

// Close 释放缓存与 Redis 连接
func (b *Bootstrap) Close() error {
	var firstErr error
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			firstErr = err
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil && firstErr == nil && !errors.Is(err, redis.ErrClosed) {
			firstErr = err
		}
	}
	return firstErr
}
