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

// Package search 调用外部 Web 搜索服务并把结果整理成适合模型阅读的文本
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"prompt-enhance/pkg/config"
)

const (
	defaultTimeout = 15 * time.Second
	separator      = "----------"
)

// Result 单条搜索结果
type Result struct {
	Title    string
	Snippets string
}

// Client 搜索服务客户端（Brave 兼容响应格式）
type Client struct {
	baseURL string
	apiKey  string
	client  *resty.Client
	limiter *rate.Limiter // nil 表示不限速
}

// NewClient 按配置创建搜索客户端
func NewClient(cfg config.SearchConfig) *Client {
	client := resty.New()
	client.SetTimeout(config.ParseDuration(cfg.Timeout, defaultTimeout))
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)

	c := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
	}
	if cfg.QPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}
	return c
}

type searchResponse struct {
	Web struct {
		Results []struct {
			Title         string   `json:"title"`
			Description   string   `json:"description"`
			ExtraSnippets []string `json:"extra_snippets"`
		} `json:"results"`
	} `json:"web"`
}

// Results 返回前 n 条清洗后的结果
func (c *Client) Results(ctx context.Context, query string, n int) ([]Result, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("search service is not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetQueryParam("q", query).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search service returned status %d", resp.StatusCode())
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := body.Web.Results
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	out := make([]Result, 0, len(items))
	for _, item := range items {
		snippets := item.Description
		if len(item.ExtraSnippets) > 0 {
			snippets = strings.Join(item.ExtraSnippets, "\n")
		}
		out = append(out, Result{Title: CleanText(item.Title), Snippets: CleanText(snippets)})
	}
	return out, nil
}

// Search 返回前 n 条结果的文本摘要
func (c *Client) Search(ctx context.Context, query string, n int) (string, error) {
	results, err := c.Results(ctx, query, n)
	if err != nil {
		return "", err
	}
	return Format(results), nil
}

// Format 每条结果渲染为 "- 标题\n摘要\n----------"，以换行连接
func Format(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("- %s\n%s\n%s", r.Title, r.Snippets, separator))
	}
	return strings.Join(parts, "\n")
}
