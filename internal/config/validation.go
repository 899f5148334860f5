package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/any-hub/bundle-hub/internal/target"
)

// reservedPrefix 留给 /-/mounts、/-/metrics 等诊断接口。
const reservedPrefix = "/-/"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.MaxMemoryEntries <= 0 {
		return newFieldError("Global.MaxMemoryEntries", "必须大于 0")
	}
	if g.GzipLevel < 1 || g.GzipLevel > 9 {
		return newFieldError("Global.GzipLevel", "必须在 1-9")
	}
	if _, err := parseMode(g.Mode); err != nil {
		return newFieldError("Global.Mode", "仅支持 development/production 或留空")
	}
	if g.BuildTimeout.DurationValue() <= 0 {
		return newFieldError("Global.BuildTimeout", "必须大于 0")
	}
	if g.StaticRoot != "" {
		if err := requireDirectory(g.StaticRoot); err != nil {
			return fmt.Errorf("Global.StaticRoot: %w", err)
		}
	}

	if len(c.Mounts) == 0 {
		return errors.New("至少需要配置一个 Mount")
	}

	seenRoutes := map[string]struct{}{}
	seenNames := map[string]struct{}{}
	for i := range c.Mounts {
		mount := &c.Mounts[i]
		if err := validateRoute(mount.Route); err != nil {
			return fmt.Errorf("%s: %w", mountField(mount.Route, "Route"), err)
		}
		if _, exists := seenRoutes[mount.Route]; exists {
			return newFieldError(mountField(mount.Route, "Route"), "重复")
		}
		seenRoutes[mount.Route] = struct{}{}

		if mount.Name == "" {
			return newFieldError(mountField(mount.Route, "Name"), "不能为空")
		}
		if _, exists := seenNames[mount.Name]; exists {
			return newFieldError(mountField(mount.Route, "Name"), "重复")
		}
		seenNames[mount.Name] = struct{}{}

		if err := validateMount(mount); err != nil {
			return err
		}
	}

	return nil
}

func validateMount(mount *MountConfig) error {
	if strings.TrimSpace(mount.Kind) == "" {
		return newFieldError(mountField(mount.Route, "Kind"), "无法推断，请填写 Source 或 Modules")
	}
	kind, err := target.ParseKind(mount.Kind)
	if err != nil {
		return newFieldError(mountField(mount.Route, "Kind"), "仅支持 file|directory|modules")
	}
	mount.Kind = string(kind)

	switch kind {
	case target.KindFile:
		if mount.Source == "" {
			return newFieldError(mountField(mount.Route, "Source"), "不能为空")
		}
		if err := requireFile(mount.Source); err != nil {
			return fmt.Errorf("%s: %w", mountField(mount.Route, "Source"), err)
		}
	case target.KindDirectory:
		if mount.Source == "" {
			return newFieldError(mountField(mount.Route, "Source"), "不能为空")
		}
		if err := requireDirectory(mount.Source); err != nil {
			return fmt.Errorf("%s: %w", mountField(mount.Route, "Source"), err)
		}
		if mount.Precompile {
			return newFieldError(mountField(mount.Route, "Precompile"), "目录挂载不支持预编译")
		}
	case target.KindModuleList:
		if len(mount.Modules) == 0 {
			return newFieldError(mountField(mount.Route, "Modules"), "不能为空")
		}
		for _, name := range mount.Modules {
			if strings.TrimSpace(name) == "" {
				return newFieldError(mountField(mount.Route, "Modules"), "不能包含空模块名")
			}
		}
		if mount.Watch {
			return newFieldError(mountField(mount.Route, "Watch"), "模块列表挂载不支持监听")
		}
	}

	if len(mount.Ignore) > 0 && kind != target.KindDirectory {
		return newFieldError(mountField(mount.Route, "Ignore"), "仅目录挂载支持")
	}
	for _, pattern := range mount.Ignore {
		if _, err := glob.Compile(strings.TrimPrefix(pattern, "/"), '/'); err != nil {
			return newFieldError(mountField(mount.Route, "Ignore"), fmt.Sprintf("非法 glob: %s", pattern))
		}
	}
	for _, ext := range mount.Extensions {
		if strings.TrimSpace(ext) == "" || strings.ContainsAny(ext, "/*") {
			return newFieldError(mountField(mount.Route, "Extensions"), fmt.Sprintf("非法扩展名: %q", ext))
		}
	}
	if mount.Precompile && !boolValue(mount.Cache) {
		return newFieldError(mountField(mount.Route, "Precompile"), "需要开启 Cache")
	}
	return nil
}

func validateRoute(route string) error {
	if route == "" {
		return errors.New("Route 不能为空")
	}
	if !strings.HasPrefix(route, "/") {
		return errors.New("Route 必须以 / 开头")
	}
	if strings.ContainsAny(route, " ?#") {
		return errors.New("Route 不允许包含空格、查询或片段")
	}
	if route+"/" == reservedPrefix || strings.HasPrefix(route, reservedPrefix) {
		return fmt.Errorf("Route 不能使用保留前缀 %s", reservedPrefix)
	}
	return nil
}

func requireFile(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("无法访问源文件: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s 是目录，请使用 Kind = \"directory\"", p)
	}
	return nil
}

func requireDirectory(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("无法访问目录: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s 不是目录", p)
	}
	return nil
}

// BuildTimeout 返回单次构建的超时时间。
func (c *Config) BuildTimeout() time.Duration {
	return c.Global.BuildTimeout.DurationValue()
}
