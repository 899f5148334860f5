package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/any-hub/bundle-hub/internal/target"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.ListenPort != 5100 {
		t.Fatalf("ListenPort 应当被解析")
	}
	if cfg.Global.Mode != ModeProduction {
		t.Fatalf("Mode 应被标准化, got %q", cfg.Global.Mode)
	}
	if cfg.BuildTimeout() != 30*time.Second {
		t.Fatalf("纯数字 BuildTimeout 应按秒解析, got %s", cfg.BuildTimeout())
	}
	if len(cfg.Mounts) != 3 {
		t.Fatalf("应解析出 3 个挂载, got %d", len(cfg.Mounts))
	}

	file := cfg.Mounts[0]
	if file.TargetKind() != target.KindFile || !filepath.IsAbs(file.Source) {
		t.Fatalf("单文件挂载解析错误: %+v", file)
	}
	if file.MaxAge.DurationValue() != 10*time.Minute {
		t.Fatalf("MaxAge 解析错误: %s", file.MaxAge.DurationValue())
	}
	if got := file.BuildConfig(); got != (target.BuildConfig{CacheEnabled: true, CompressEnabled: true, MinifyEnabled: true}) {
		t.Fatalf("production 预设未生效: %+v", got)
	}

	dir := cfg.Mounts[1]
	if dir.Name != "scripts" || dir.Route != "/js" || dir.TargetKind() != target.KindDirectory {
		t.Fatalf("目录挂载解析错误: %+v", dir)
	}
	if dir.BuildConfig().MinifyEnabled {
		t.Fatalf("显式 Minify=false 应覆盖预设")
	}

	modules := cfg.Mounts[2]
	if modules.TargetKind() != target.KindModuleList || len(modules.Modules) != 2 {
		t.Fatalf("模块列表挂载解析错误: %+v", modules)
	}
	if summaries := MountSummaries(cfg.Mounts); summaries[2] != "/vendor.js:modules" {
		t.Fatalf("unexpected summaries: %v", summaries)
	}
}

func TestModePresets(t *testing.T) {
	testCases := []struct {
		mode string
		want target.BuildConfig
	}{
		{ModeDefault, target.BuildConfig{CacheEnabled: true}},
		{ModeDevelopment, target.BuildConfig{CacheEnabled: true, DebugEnabled: true}},
		{ModeProduction, target.BuildConfig{CacheEnabled: true, CompressEnabled: true, MinifyEnabled: true}},
	}
	for _, tc := range testCases {
		t.Run("mode="+tc.mode, func(t *testing.T) {
			m := MountConfig{}
			applyModePreset(tc.mode, &m)
			if got := m.BuildConfig(); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}

	off := false
	m := MountConfig{Cache: &off}
	applyModePreset(ModeProduction, &m)
	if m.BuildConfig().CacheEnabled {
		t.Fatalf("显式关闭的缓存不应被预设覆盖")
	}
}

func TestParseModeAliases(t *testing.T) {
	if mode, err := parseMode(" Prod "); err != nil || mode != ModeProduction {
		t.Fatalf("prod 应映射为 production, got %q %v", mode, err)
	}
	if _, err := parseMode("staging"); err == nil {
		t.Fatalf("未知 Mode 应报错")
	}
}

func TestValidateEnforcesGlobalRanges(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port", func(c *Config) { c.Global.ListenPort = 70000 }, "Global.ListenPort"},
		{"gzip level", func(c *Config) { c.Global.GzipLevel = 10 }, "Global.GzipLevel"},
		{"memory entries", func(c *Config) { c.Global.MaxMemoryEntries = 0 }, "Global.MaxMemoryEntries"},
		{"mode", func(c *Config) { c.Global.Mode = "staging" }, "Global.Mode"},
		{"timeout", func(c *Config) { c.Global.BuildTimeout = 0 }, "Global.BuildTimeout"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			var fieldErr FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != tc.field {
				t.Fatalf("expected error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestValidateMounts(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		shouldErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no mounts", func(c *Config) { c.Mounts = nil }, true},
		{"missing route", func(c *Config) { c.Mounts[0].Route = "" }, true},
		{"reserved route", func(c *Config) { c.Mounts[0].Route = "/-/mounts" }, true},
		{"duplicate route", func(c *Config) { c.Mounts[1].Route = c.Mounts[0].Route }, true},
		{"duplicate name", func(c *Config) { c.Mounts[1].Name = c.Mounts[0].Name }, true},
		{"unknown kind", func(c *Config) { c.Mounts[0].Kind = "wasm" }, true},
		{"file is a directory", func(c *Config) { c.Mounts[0].Source = c.Mounts[1].Source }, true},
		{"directory is a file", func(c *Config) { c.Mounts[1].Source = c.Mounts[0].Source }, true},
		{"empty modules", func(c *Config) { c.Mounts[2].Modules = nil }, true},
		{"blank module", func(c *Config) { c.Mounts[2].Modules = []string{" "} }, true},
		{"watch module list", func(c *Config) { c.Mounts[2].Watch = true }, true},
		{"precompile directory", func(c *Config) { c.Mounts[1].Precompile = true }, true},
		{"precompile without cache", func(c *Config) {
			off := false
			c.Mounts[0].Precompile = true
			c.Mounts[0].Cache = &off
		}, true},
		{"ignore on file", func(c *Config) { c.Mounts[0].Ignore = []string{"*.js"} }, true},
		{"bad glob", func(c *Config) { c.Mounts[1].Ignore = []string{"[oops"} }, true},
		{"bad extension", func(c *Config) { c.Mounts[1].Extensions = []string{"*.js"} }, true},
		{"kind alias", func(c *Config) { c.Mounts[1].Kind = "dir" }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMountConfigNewTarget(t *testing.T) {
	cfg := validConfig(t)
	tgt, err := cfg.Mounts[2].NewTarget()
	if err != nil {
		t.Fatalf("NewTarget 返回错误: %v", err)
	}
	if tgt.Kind() != target.KindModuleList || len(tgt.Modules()) != 1 {
		t.Fatalf("unexpected target: kind=%s modules=%v", tgt.Kind(), tgt.Modules())
	}
	bad := MountConfig{Route: "/x", Kind: "wasm"}
	if _, err := bad.NewTarget(); err == nil {
		t.Fatalf("未知 Kind 应报错")
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	entry := filepath.Join(dir, "app.js")
	if err := os.WriteFile(entry, []byte("console.log(1);\n"), 0o644); err != nil {
		t.Fatalf("写入脚本失败: %v", err)
	}
	on := true
	return &Config{
		Global: GlobalConfig{
			ListenPort:       5000,
			MaxMemoryEntries: 16,
			GzipLevel:        6,
			BuildTimeout:     Duration(time.Minute),
		},
		Mounts: []MountConfig{
			{Name: "app", Route: "/app.js", Kind: "file", Source: entry, Cache: &on},
			{Name: "dir", Route: "/dir", Kind: "directory", Source: dir, Cache: &on, Extensions: []string{".js"}},
			{Name: "vendor", Route: "/vendor.js", Kind: "modules", Source: dir, Modules: []string{"left-pad"}, Cache: &on},
		},
	}
}
