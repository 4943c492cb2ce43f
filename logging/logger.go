// Package logging 基于 zerolog 构建进程日志。
//
// 日志器按值传递；组件通过 .With().Str("component", ...) 派生自己的日志器：
//
//	logger := logging.New(logging.Config{Level: "info", Format: "json"})
//	trackerLog := logger.With().Str("component", "tracker").Logger()
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 是日志配置。
type Config struct {
	// Level 最低日志级别：trace / debug / info / warn / error / disabled，默认 info
	Level string `koanf:"level"`

	// Format 输出格式：json 或 console，默认 json
	Format string `koanf:"format"`

	// Caller 是否输出调用位置
	Caller bool `koanf:"caller"`

	// Output 输出目标，默认 os.Stderr
	Output io.Writer `koanf:"-"`
}

func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

// New 按配置创建日志器。
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.Caller {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Nop 返回丢弃所有输出的日志器，测试与默认构造使用。
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel 把字符串级别转换为 zerolog.Level，无法识别时取 info。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
