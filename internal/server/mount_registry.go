package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/bundle-hub/internal/builder"
	"github.com/any-hub/bundle-hub/internal/cache"
	"github.com/any-hub/bundle-hub/internal/config"
	"github.com/any-hub/bundle-hub/internal/mount"
)

// MountRoute 把挂载配置与运行时实例聚合在一起，供路由、诊断与监听复用。
type MountRoute struct {
	// Config 是用户在 config.toml 中声明的挂载字段副本（已补齐默认值）。
	Config config.MountConfig
	// Mount 是处理请求的运行时实例。
	Mount *mount.Mount
}

// RegistryDeps 是构建挂载所需的共享依赖。Store 为空时不启用磁盘层。
type RegistryDeps struct {
	Builder builder.Builder
	Store   cache.Store
	Logger  *logrus.Logger
}

// MountRegistry 按配置顺序保存全部挂载，启动阶段创建一次后只读。
type MountRegistry struct {
	routes  map[string]*MountRoute
	ordered []*MountRoute
}

// NewMountRegistry 根据配置构建所有挂载。调用方应在启动阶段创建一次并复用。
func NewMountRegistry(cfg *config.Config, deps RegistryDeps) (*MountRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if deps.Builder == nil {
		return nil, errors.New("builder is required")
	}

	registry := &MountRegistry{
		routes: make(map[string]*MountRoute, len(cfg.Mounts)),
	}

	for _, mc := range cfg.Mounts {
		if _, exists := registry.routes[mc.Route]; exists {
			return nil, fmt.Errorf("duplicate mount route detected for %s", mc.Route)
		}
		route, err := buildMountRoute(cfg, mc, deps)
		if err != nil {
			return nil, err
		}
		registry.routes[mc.Route] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

func buildMountRoute(cfg *config.Config, mc config.MountConfig, deps RegistryDeps) (*MountRoute, error) {
	tgt, err := mc.NewTarget()
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", mc.Route, err)
	}
	m, err := mount.New(mount.Options{
		Name:         mc.Name,
		Route:        mc.Route,
		Target:       tgt,
		Config:       mc.BuildConfig(),
		Builder:      deps.Builder,
		Store:        deps.Store,
		MaxEntries:   cfg.Global.MaxMemoryEntries,
		GzipLevel:    cfg.Global.GzipLevel,
		Extensions:   mc.Extensions,
		Ignore:       mc.Ignore,
		MaxAge:       mc.MaxAge.DurationValue(),
		BuildTimeout: cfg.BuildTimeout(),
		Logger:       deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &MountRoute{Config: mc, Mount: m}, nil
}

// Lookup 根据标准化后的路由前缀查找挂载。
func (r *MountRegistry) Lookup(route string) (*MountRoute, bool) {
	if r == nil {
		return nil, false
	}
	m, ok := r.routes[route]
	return m, ok
}

// List 返回当前注册的挂载（按配置定义的顺序），用于路由注册与 /-/mounts 输出。
func (r *MountRegistry) List() []*MountRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	return append([]*MountRoute(nil), r.ordered...)
}

// Precompile 并行预构建所有开启 Precompile 的挂载，返回失败的数量。
func (r *MountRegistry) Precompile(ctx context.Context) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, route := range r.List() {
		if !route.Config.Precompile {
			continue
		}
		wg.Add(1)
		go func(m *mount.Mount) {
			defer wg.Done()
			if err := m.Warm(ctx); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(route.Mount)
	}
	wg.Wait()
	return failed
}
