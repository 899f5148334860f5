package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/bundle-hub/internal/builder"
	"github.com/any-hub/bundle-hub/internal/cache"
	"github.com/any-hub/bundle-hub/internal/config"
	"github.com/any-hub/bundle-hub/internal/target"
	"github.com/any-hub/bundle-hub/internal/watch"
)

// Runtime 汇总启动阶段构建的长期对象，Close 负责释放监听器。
type Runtime struct {
	Registry *MountRegistry
	Store    cache.Store
	Watcher  *watch.Watcher
}

// Bootstrap 遵循“磁盘缓存 → 挂载注册表 → 文件监听 → 预编译”的顺序构建运行时。
// 磁盘层在启动时按挂载清空，避免上一个进程留下的旧产物被返回。
// 预编译在后台进行，失败只记录日志。
func Bootstrap(ctx context.Context, cfg *config.Config, b builder.Builder, logger *logrus.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rt := &Runtime{}

	if cfg.Global.StoragePath != "" {
		store, err := cache.NewStore(cfg.Global.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
		}
		for _, mc := range cfg.Mounts {
			if err := store.Purge(ctx, mc.Name); err != nil {
				return nil, fmt.Errorf("清理缓存目录失败: %w", err)
			}
		}
		rt.Store = store
	}

	registry, err := NewMountRegistry(cfg, RegistryDeps{Builder: b, Store: rt.Store, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("构建挂载注册表失败: %w", err)
	}
	rt.Registry = registry

	if err := rt.startWatcher(ctx, logger); err != nil {
		return nil, err
	}

	go func() {
		if failed := registry.Precompile(ctx); failed > 0 {
			logger.WithFields(logrus.Fields{"action": "precompile", "failed": failed}).Warn("precompile_incomplete")
		}
	}()

	return rt, nil
}

func (rt *Runtime) startWatcher(ctx context.Context, logger *logrus.Logger) error {
	var watched []*MountRoute
	for _, route := range rt.Registry.List() {
		if route.Config.Watch {
			watched = append(watched, route)
		}
	}
	if len(watched) == 0 {
		return nil
	}

	w, err := watch.New(logger, watch.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("初始化文件监听失败: %w", err)
	}
	for _, route := range watched {
		m := route.Mount
		root := m.Target().Root()
		base := root
		if m.Target().Kind() == target.KindFile {
			base = filepath.Dir(root)
		}
		err := w.Add(root, func(paths []string) {
			fields := logrus.Fields{"action": "watch", "mount": m.Name(), "changed": relativePaths(base, paths)}
			logger.WithFields(fields).Info("watch_invalidate")
			m.Invalidate(context.Background())
		})
		if err != nil {
			_ = w.Close()
			return fmt.Errorf("监听挂载 %s 失败: %w", m.Route(), err)
		}
	}
	w.Start(ctx)
	rt.Watcher = w
	return nil
}

// Close 停止文件监听。
func (rt *Runtime) Close() error {
	if rt == nil || rt.Watcher == nil {
		return nil
	}
	return rt.Watcher.Close()
}

func relativePaths(base string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(base, p); err == nil {
			out = append(out, filepath.ToSlash(rel))
			continue
		}
		out = append(out, p)
	}
	return out
}
