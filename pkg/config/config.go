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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Model        ModelConfig        `mapstructure:"model"`
	Search       SearchConfig       `mapstructure:"search"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// ModelConfig 模型后端配置：primary 必填，fallback 可选（api_key 为空视为未配置）
type ModelConfig struct {
	Primary            BackendConfig `mapstructure:"primary"`
	Fallback           BackendConfig `mapstructure:"fallback"`
	DefaultTargetModel string        `mapstructure:"default_target_model"`
}

// BackendConfig 单个 OpenAI 兼容后端
type BackendConfig struct {
	Name             string `mapstructure:"name"`
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	APIKeySecret     string `mapstructure:"api_key_secret"` // 非空时启动阶段从 secrets store 解析 APIKey
	Model            string `mapstructure:"model"`
	HealthURL        string `mapstructure:"health_url"`        // 返回 {"status":"up"} 视为健康；空表示不探测
	StructuredOutput bool   `mapstructure:"structured_output"` // 是否请求 json_schema response_format
	ReasoningEffort  string `mapstructure:"reasoning_effort"`  // low | medium | high，空表示不发送
	Timeout          string `mapstructure:"timeout"`

	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // 0 表示不限速
	MaxConcurrent     int     `mapstructure:"max_concurrent"`      // 0 表示不限并发
}

// Configured 后端是否具备可用凭据
func (b BackendConfig) Configured() bool {
	return b.APIKey != "" || b.APIKeySecret != ""
}

// SearchConfig 外部搜索服务配置
type SearchConfig struct {
	BaseURL string  `mapstructure:"base_url"`
	APIKey  string  `mapstructure:"api_key"`
	Results int     `mapstructure:"results"`
	QPS     float64 `mapstructure:"qps"`
	Timeout string  `mapstructure:"timeout"`
}

// OrchestratorConfig 对话驱动与人机交互参数
type OrchestratorConfig struct {
	MaxEmptyRetries int    `mapstructure:"max_empty_retries"` // 空回复重试上限，默认 6
	MaxTurns        int    `mapstructure:"max_turns"`         // 单次编排最多调用模型次数，默认 16
	AskTimeout      string `mapstructure:"ask_timeout"`       // 等待用户回答的时长，默认 300s
	TranscriptTTL   string `mapstructure:"transcript_ttl"`    // 对话记录缓存时长，默认 1h
}

// RateLimitConfig 按客户端的固定窗口准入配置
type RateLimitConfig struct {
	Type    string `mapstructure:"type"`    // memory | redis
	Ceiling int    `mapstructure:"ceiling"` // 窗口内允许的最大请求数，默认 5
	Window  string `mapstructure:"window"`  // 默认 60s
}

// StorageConfig 存储配置
type StorageConfig struct {
	Cache CacheConfig `mapstructure:"cache"`
}

// CacheConfig 缓存配置（对话记录缓存；rate_limit.type=redis 时复用同一 Redis）
type CacheConfig struct {
	Type     string `mapstructure:"type"`
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// 默认值
const (
	DefaultCeiling         = 5
	DefaultWindow          = 60 * time.Second
	DefaultMaxEmptyRetries = 6
	DefaultMaxTurns        = 16
	DefaultAskTimeout      = 300 * time.Second
	DefaultTranscriptTTL   = time.Hour
	DefaultSearchResults   = 10
	DefaultTargetModel     = "gpt-5.1"
	DefaultFallbackModel   = "gpt-5-mini"
)

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.ApplyDefaults()
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml，可被 PROMPT_ENHANCE_CONFIG 覆盖）
func LoadAPIConfig() (*Config, error) {
	path := "configs/api.yaml"
	if p := os.Getenv("PROMPT_ENHANCE_CONFIG"); p != "" {
		path = p
	}
	return LoadConfig(path)
}

// replaceEnvVars 替换配置中 ${VAR} 形式的密钥
func replaceEnvVars(config *Config) {
	config.Model.Primary.APIKey = expandEnv(config.Model.Primary.APIKey)
	config.Model.Fallback.APIKey = expandEnv(config.Model.Fallback.APIKey)
	config.Search.APIKey = expandEnv(config.Search.APIKey)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	return os.Getenv(envVar)
}

// ApplyDefaults 填充未配置项
func (c *Config) ApplyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = 8080
	}
	if c.Model.Primary.Name == "" {
		c.Model.Primary.Name = "primary"
	}
	if c.Model.Primary.Model == "" {
		c.Model.Primary.Model = DefaultTargetModel
	}
	if c.Model.Fallback.Name == "" {
		c.Model.Fallback.Name = "fallback"
	}
	if c.Model.Fallback.Model == "" {
		c.Model.Fallback.Model = DefaultFallbackModel
	}
	if c.Model.DefaultTargetModel == "" {
		c.Model.DefaultTargetModel = DefaultTargetModel
	}
	if c.Search.Results <= 0 {
		c.Search.Results = DefaultSearchResults
	}
	if c.Orchestrator.MaxEmptyRetries <= 0 {
		c.Orchestrator.MaxEmptyRetries = DefaultMaxEmptyRetries
	}
	if c.Orchestrator.MaxTurns <= 0 {
		c.Orchestrator.MaxTurns = DefaultMaxTurns
	}
	if c.RateLimit.Type == "" {
		c.RateLimit.Type = "memory"
	}
	if c.RateLimit.Ceiling <= 0 {
		c.RateLimit.Ceiling = DefaultCeiling
	}
	if c.Storage.Cache.Type == "" {
		c.Storage.Cache.Type = "memory"
	}
	if c.Secrets.Provider == "" {
		c.Secrets.Provider = "env"
	}
}

// AskTimeoutDuration 解析后的用户回答超时
func (o OrchestratorConfig) AskTimeoutDuration() time.Duration {
	return ParseDuration(o.AskTimeout, DefaultAskTimeout)
}

// TranscriptTTLDuration 解析后的对话记录缓存时长
func (o OrchestratorConfig) TranscriptTTLDuration() time.Duration {
	return ParseDuration(o.TranscriptTTL, DefaultTranscriptTTL)
}

// WindowDuration 解析后的限流窗口
func (r RateLimitConfig) WindowDuration() time.Duration {
	return ParseDuration(r.Window, DefaultWindow)
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
