// Package settings 加载 reclite 进程的配置。
//
// 配置分三层，后者覆盖前者：
//  1. 内置默认值
//  2. YAML 配置文件（可选，路径取 RECLITE_CONFIG，否则依次查找 DefaultConfigPaths）
//  3. RECLITE_ 前缀的环境变量
//
// 环境变量用双下划线分隔层级，例如 RECLITE_RECOMMEND__USER_CF__MAX_NEIGHBORS
// 对应 recommend.user_cf.max_neighbors。常用项另有简写，见 envAliases。
package settings

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/reclite/logging"
	"github.com/rushteam/reclite/recommend"
)

const (
	// EnvPrefix 是所有环境变量的前缀。
	EnvPrefix = "RECLITE_"

	// ConfigPathEnvVar 指定配置文件路径。
	ConfigPathEnvVar = "RECLITE_CONFIG"
)

// DefaultConfigPaths 是未指定 RECLITE_CONFIG 时依次查找的配置文件。
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reclite/config.yaml",
}

// Settings 是进程级配置。
type Settings struct {
	Logging   logging.Config   `koanf:"logging"`
	Server    ServerConfig     `koanf:"server"`
	Recommend recommend.Config `koanf:"recommend"`
	Redis     RedisConfig      `koanf:"redis"`
	Stream    StreamConfig     `koanf:"stream"`
}

// ServerConfig 是 HTTP 服务配置。
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// 每个客户端 IP 在 RateLimitWindow 内最多 RateLimitRequests 个请求
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// PipelinesDir 下的 *.yaml 会被加载为自定义 Pipeline，可为空
	PipelinesDir string `koanf:"pipelines_dir"`
}

// RedisConfig 是黑名单集合所在的 Redis。Enabled 为 false 时使用内存集合。
type RedisConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	DB      int    `koanf:"db"`
}

// StreamConfig 是行为事件消费配置。
type StreamConfig struct {
	Enabled bool   `koanf:"enabled"`
	Topic   string `koanf:"topic"`

	// BufferSize 是进程内 pub/sub 每个订阅者的缓冲区大小
	BufferSize int64 `koanf:"buffer_size"`
}

// Default 返回默认配置。
func Default() *Settings {
	return &Settings{
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:              ":3000",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Recommend: recommend.DefaultConfig(),
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6379",
		},
		Stream: StreamConfig{
			Enabled:    true,
			Topic:      "behaviors",
			BufferSize: 1024,
		},
	}
}

// Load 按 默认值 → 配置文件 → 环境变量 的顺序加载并校验配置。
func Load() (*Settings, error) {
	return load(findConfigFile())
}

// LoadFile 从指定文件加载；path 为空时只使用默认值与环境变量。
func LoadFile(path string) (*Settings, error) {
	return load(path)
}

func load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

// Validate 校验配置。
func (s *Settings) Validate() error {
	if s.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !s.Server.RateLimitDisabled {
		if s.Server.RateLimitRequests < 1 {
			return fmt.Errorf("server.rate_limit_requests must be positive, got %d", s.Server.RateLimitRequests)
		}
		if s.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("server.rate_limit_window must be positive, got %s", s.Server.RateLimitWindow)
		}
	}
	if s.Redis.Enabled && s.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if s.Stream.Enabled && s.Stream.Topic == "" {
		return fmt.Errorf("stream.topic is required when stream is enabled")
	}
	if err := s.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envAliases 是常用配置项的环境变量简写（已去掉前缀、转为小写）。
var envAliases = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"addr":       "server.addr",
	"redis_addr": "redis.addr",
	"topic":      "stream.topic",
}

// envTransform 把环境变量名转换为 koanf 路径：
//
//	RECLITE_LOG_LEVEL                     -> logging.level
//	RECLITE_SERVER__ADDR                  -> server.addr
//	RECLITE_RECOMMEND__HYBRID__OVER_FETCH -> recommend.hybrid.over_fetch
//
// 无法识别的变量返回空字符串，koanf 会忽略它。RECLITE_CONFIG 本身不是配置项。
func envTransform(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if path, ok := envAliases[key]; ok {
		return path
	}
	if !strings.Contains(key, "__") {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}

// sliceConfigPaths 是环境变量中以逗号分隔的列表项。
var sliceConfigPaths = []string{
	"recommend.filter.blacklist",
	"recommend.filter.rules",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
