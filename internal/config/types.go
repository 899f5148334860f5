package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有挂载共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFormat     string `mapstructure:"LogFormat"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	// StoragePath 为空时不启用磁盘层。
	StoragePath      string   `mapstructure:"StoragePath"`
	MaxMemoryEntries int      `mapstructure:"MaxMemoryEntries"`
	GzipLevel        int      `mapstructure:"GzipLevel"`
	Mode             string   `mapstructure:"Mode"`
	StaticRoot       string   `mapstructure:"StaticRoot"`
	BuildTimeout     Duration `mapstructure:"BuildTimeout"`
}

// MountConfig 描述一个挂载点：路由前缀、源以及构建开关。
// 布尔开关使用指针，未填写时由 Mode 预设补齐。
type MountConfig struct {
	Name       string   `mapstructure:"Name"`
	Route      string   `mapstructure:"Route"`
	Kind       string   `mapstructure:"Kind"`
	Source     string   `mapstructure:"Source"`
	Modules    []string `mapstructure:"Modules"`
	Cache      *bool    `mapstructure:"Cache"`
	Gzip       *bool    `mapstructure:"Gzip"`
	Minify     *bool    `mapstructure:"Minify"`
	Debug      *bool    `mapstructure:"Debug"`
	External   []string `mapstructure:"External"`
	Extensions []string `mapstructure:"Extensions"`
	Ignore     []string `mapstructure:"Ignore"`
	MaxAge     Duration `mapstructure:"MaxAge"`
	Watch      bool     `mapstructure:"Watch"`
	Precompile bool     `mapstructure:"Precompile"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig  `mapstructure:",squash"`
	Mounts []MountConfig `mapstructure:"Mount"`
}

// MountSummaries 返回所有挂载的 route:kind 摘要，供启动日志使用。
func MountSummaries(mounts []MountConfig) []string {
	if len(mounts) == 0 {
		return nil
	}
	result := make([]string, len(mounts))
	for i, m := range mounts {
		result[i] = fmt.Sprintf("%s:%s", m.Route, m.Kind)
	}
	return result
}

func boolValue(p *bool) bool {
	return p != nil && *p
}
