package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/any-hub/bundle-hub/internal/resolve"
	"github.com/any-hub/bundle-hub/internal/target"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// 挂载的相对 Source 以配置文件所在目录为基准。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectMountLevelPorts(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("无法解析配置目录: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Mounts {
		applyMountDefaults(&cfg.Mounts[i], baseDir)
	}
	if mode, err := parseMode(cfg.Global.Mode); err == nil {
		cfg.Global.Mode = mode
		for i := range cfg.Mounts {
			applyModePreset(mode, &cfg.Mounts[i])
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Global.StoragePath != "" {
		absStorage, err := filepath.Abs(cfg.Global.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Global.StoragePath = absStorage
	}
	if cfg.Global.StaticRoot != "" {
		cfg.Global.StaticRoot = resolvePath(baseDir, cfg.Global.StaticRoot)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "")
	v.SetDefault("MaxMemoryEntries", 512)
	v.SetDefault("GzipLevel", 6)
	v.SetDefault("Mode", "")
	v.SetDefault("StaticRoot", "")
	v.SetDefault("BuildTimeout", "60s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.MaxMemoryEntries == 0 {
		g.MaxMemoryEntries = 512
	}
	if g.GzipLevel == 0 {
		g.GzipLevel = 6
	}
	if g.BuildTimeout.DurationValue() == 0 {
		g.BuildTimeout = Duration(60 * time.Second)
	}
}

// applyMountDefaults 标准化路由、补齐名称与扩展名，并在 Kind 留空时推断源类型：
// 填写了 Modules 视为模块列表，Source 为目录视为目录挂载，否则视为单文件。
func applyMountDefaults(m *MountConfig, baseDir string) {
	if strings.TrimSpace(m.Route) != "" {
		m.Route = resolve.NormalizePrefix(m.Route)
	}
	if m.Name == "" {
		m.Name = m.Route
	}
	if m.MaxAge.DurationValue() < 0 {
		m.MaxAge = Duration(0)
	}
	if len(m.Extensions) == 0 {
		m.Extensions = append([]string(nil), resolve.DefaultExtensions...)
	}

	if m.Source != "" {
		m.Source = resolvePath(baseDir, m.Source)
	} else if len(m.Modules) > 0 {
		m.Source = baseDir
	}

	if kind := strings.TrimSpace(m.Kind); kind != "" {
		if parsed, err := target.ParseKind(kind); err == nil {
			m.Kind = string(parsed)
		}
		return
	}
	switch {
	case len(m.Modules) > 0:
		m.Kind = string(target.KindModuleList)
	case m.Source != "":
		if info, err := os.Stat(m.Source); err == nil && info.IsDir() {
			m.Kind = string(target.KindDirectory)
		} else {
			m.Kind = string(target.KindFile)
		}
	}
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectMountLevelPorts 所有挂载共享全局 ListenPort，挂载级 Port 视为配置错误。
func rejectMountLevelPorts(v *viper.Viper) error {
	raw := v.Get("Mount")
	mounts, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range mounts {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if _, exists := lookupFold(m, "Port"); exists {
			route := fmt.Sprintf("#%d", idx)
			if rawRoute, ok := lookupFold(m, "Route"); ok {
				if s, ok := rawRoute.(string); ok && s != "" {
					route = s
				}
			}
			return newFieldError(mountField(route, "Port"), "不支持挂载级端口，请使用全局 ListenPort")
		}
	}

	return nil
}

// lookupFold 忽略大小写查找键，viper 对数组内的表不做键名标准化。
func lookupFold(m map[string]interface{}, key string) (interface{}, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
