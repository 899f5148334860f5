package config

import (
	"fmt"
	"strings"
)

// Mode 字段说明（全局构建预设）：
// - production：开启缓存、gzip 与压缩，关闭 source map。
// - development：开启缓存与 source map，关闭 gzip 与压缩，便于调试。
// - 留空：开启缓存，其余关闭。
// 挂载上显式填写的开关总是优先于预设。
const (
	ModeDefault     = ""
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type modePreset struct {
	cache, gzip, minify, debug bool
}

// parseMode 将配置中的 Mode 标准化。
func parseMode(raw string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case ModeDefault, ModeDevelopment, ModeProduction:
		return normalized, nil
	case "dev":
		return ModeDevelopment, nil
	case "prod":
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("不支持的 Mode 值: %s", raw)
	}
}

func presetFor(mode string) modePreset {
	switch mode {
	case ModeProduction:
		return modePreset{cache: true, gzip: true, minify: true}
	case ModeDevelopment:
		return modePreset{cache: true, debug: true}
	default:
		return modePreset{cache: true}
	}
}

// applyModePreset 仅填充挂载上未显式设置的开关。
func applyModePreset(mode string, m *MountConfig) {
	preset := presetFor(mode)
	fill := func(field **bool, value bool) {
		if *field == nil {
			v := value
			*field = &v
		}
	}
	fill(&m.Cache, preset.cache)
	fill(&m.Gzip, preset.gzip)
	fill(&m.Minify, preset.minify)
	fill(&m.Debug, preset.debug)
}
