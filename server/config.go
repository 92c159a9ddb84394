package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，如 BOTARENA_ADDR、BOTARENA_LOG_FILE
const EnvPrefix = "BOTARENA_"

// Config 服务配置：默认值 → YAML 文件 → 环境变量，逐层覆盖
type Config struct {
	Addr              string        `yaml:"addr" env:"ADDR"`
	UploadDir         string        `yaml:"upload_dir" env:"UPLOAD_DIR"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	MaxConcurrentRuns int64         `yaml:"max_concurrent_runs" env:"MAX_CONCURRENT_RUNS"`
	Ticks             int           `yaml:"ticks" env:"TICKS"`
	MaxTicks          int           `yaml:"max_ticks" env:"MAX_TICKS"`
	Interpreter       string        `yaml:"interpreter" env:"INTERPRETER"`
	Entrypoint        string        `yaml:"entrypoint" env:"ENTRYPOINT"`
	InvokeTimeout     time.Duration `yaml:"invoke_timeout" env:"INVOKE_TIMEOUT"`
	MaxOutputBytes    int           `yaml:"max_output_bytes" env:"MAX_OUTPUT_BYTES"`

	Log LogConfig `yaml:"log" envPrefix:"LOG_"`
}

// LogConfig 日志输出与滚动策略
type LogConfig struct {
	File       string `yaml:"file" env:"FILE"`
	Level      string `yaml:"level" env:"LEVEL"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Console    bool   `yaml:"console" env:"CONSOLE"`
}

// DefaultConfig 开箱即用的默认配置
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		UploadDir:         filepath.Join(os.TempDir(), "botarena"),
		MaxUploadBytes:    1 << 20,
		MaxConcurrentRuns: 4,
		Ticks:             DefaultTicks,
		MaxTicks:          1000,
		Interpreter:       DefaultInterpreter,
		Entrypoint:        DefaultEntrypoint,
		InvokeTimeout:     DefaultInvokeTimeout,
		MaxOutputBytes:    DefaultMaxOutputBytes,
		Log: LogConfig{
			File:       "app.log",
			Level:      "debug",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// LoadConfig path 为空时只使用默认值与环境变量
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 检查配置的取值范围
func (c Config) Validate() error {
	var errs []error
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload_dir must be set"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if c.MaxConcurrentRuns <= 0 {
		errs = append(errs, errors.New("max_concurrent_runs must be positive"))
	}
	if c.MaxTicks <= 0 {
		errs = append(errs, errors.New("max_ticks must be positive"))
	}
	if c.Interpreter == "" {
		errs = append(errs, errors.New("interpreter must be set"))
	}
	if !isIdentifier(c.Entrypoint) {
		errs = append(errs, fmt.Errorf("entrypoint %q is not a valid function name", c.Entrypoint))
	}
	if err := c.settings().validate(c.MaxTicks); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) settings() RunSettings {
	return RunSettings{
		Ticks:          c.Ticks,
		InvokeTimeout:  c.InvokeTimeout,
		MaxOutputBytes: c.MaxOutputBytes,
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
