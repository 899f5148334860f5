package config

import (
	"github.com/any-hub/bundle-hub/internal/target"
)

// BuildConfig 将挂载的开关折算为构建参数（假定 Mode 预设已经补齐）。
func (m MountConfig) BuildConfig() target.BuildConfig {
	return target.BuildConfig{
		CacheEnabled:    boolValue(m.Cache),
		CompressEnabled: boolValue(m.Gzip),
		MinifyEnabled:   boolValue(m.Minify),
		DebugEnabled:    boolValue(m.Debug),
	}
}

// TargetKind 返回标准化后的源类型（假定 Validate 已经通过）。
func (m MountConfig) TargetKind() target.Kind {
	kind, err := target.ParseKind(m.Kind)
	if err != nil {
		return ""
	}
	return kind
}

// NewTarget 根据挂载配置构造 SourceTarget。
func (m MountConfig) NewTarget() (*target.SourceTarget, error) {
	kind, err := target.ParseKind(m.Kind)
	if err != nil {
		return nil, newFieldError(mountField(m.Route, "Kind"), err.Error())
	}
	return target.New(kind, m.Source, m.Modules, m.External)
}
