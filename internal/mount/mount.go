// Package mount 把一个 SourceTarget 挂到路由前缀下：解析请求路径，经缓存取得产物，
// 再决定输出 200/304/500 还是交给下一个 handler。
package mount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/bundle-hub/internal/builder"
	"github.com/any-hub/bundle-hub/internal/cache"
	"github.com/any-hub/bundle-hub/internal/logging"
	"github.com/any-hub/bundle-hub/internal/metrics"
	"github.com/any-hub/bundle-hub/internal/resolve"
	"github.com/any-hub/bundle-hub/internal/target"
	"github.com/any-hub/bundle-hub/internal/transform"
)

// DefaultBuildTimeout 限制单次构建的耗时。
const DefaultBuildTimeout = 60 * time.Second

// Options 描述一个挂载点。除 Target 与 Builder 外均有默认值。
type Options struct {
	Name   string
	Route  string
	Target *target.SourceTarget
	Config target.BuildConfig

	Builder builder.Builder
	// Store 为可选磁盘层，仅在 Config.CacheEnabled 时使用。
	Store      cache.Store
	MaxEntries int
	GzipLevel  int

	Extensions []string
	Ignore     []string

	MaxAge       time.Duration
	BuildTimeout time.Duration
	Logger       *logrus.Logger
}

// Mount 是挂载点的运行时实例，构造后只读，可被任意多个请求并发使用。
type Mount struct {
	name         string
	route        string
	target       *target.SourceTarget
	cfg          target.BuildConfig
	builder      builder.Builder
	pipeline     transform.Pipeline
	resolver     *resolve.Resolver
	cache        *cache.Cache
	maxAge       time.Duration
	buildTimeout time.Duration
	logger       *logrus.Logger
}

// New 校验 Options 并构造 Mount。
func New(opts Options) (*Mount, error) {
	if opts.Target == nil {
		return nil, errors.New("mount target is required")
	}
	if opts.Builder == nil {
		return nil, errors.New("mount builder is required")
	}
	route := resolve.NormalizePrefix(opts.Route)
	name := opts.Name
	if name == "" {
		name = route
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	resolver, err := resolve.New(opts.Target.Kind(), route, opts.Extensions, opts.Ignore)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", name, err)
	}

	pipeline := transform.FromConfig(opts.Config, opts.GzipLevel)
	var store cache.Store
	if opts.Config.CacheEnabled {
		store = opts.Store
	}
	artifacts, err := cache.New(cache.Options{
		Name:            name,
		Enabled:         opts.Config.CacheEnabled,
		MaxEntries:      opts.MaxEntries,
		Store:           store,
		ContentEncoding: pipeline.Encoding(),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", name, err)
	}

	timeout := opts.BuildTimeout
	if timeout <= 0 {
		timeout = DefaultBuildTimeout
	}

	return &Mount{
		name:         name,
		route:        route,
		target:       opts.Target,
		cfg:          opts.Config,
		builder:      opts.Builder,
		pipeline:     pipeline,
		resolver:     resolver,
		cache:        artifacts,
		maxAge:       opts.MaxAge,
		buildTimeout: timeout,
		logger:       logger,
	}, nil
}

// Name 返回挂载名。
func (m *Mount) Name() string { return m.name }

// Route 返回标准化后的路由前缀。
func (m *Mount) Route() string { return m.route }

// Target 返回挂载的源描述。
func (m *Mount) Target() *target.SourceTarget { return m.target }

// Config 返回挂载时确定的构建参数。
func (m *Mount) Config() target.BuildConfig { return m.cfg }

// MaxAge 返回 Cache-Control 使用的 max-age。
func (m *Mount) MaxAge() time.Duration { return m.maxAge }

// CachedEntries 返回内存中的 Ready 产物数量。
func (m *Mount) CachedEntries() int { return m.cache.Len() }

// Builds 返回累计构建次数。
func (m *Mount) Builds() int64 { return m.cache.Builds() }

// Warm 预先构建 File/ModuleList 挂载的唯一产物，缓存关闭时直接返回。
func (m *Mount) Warm(ctx context.Context) error {
	if !m.cfg.CacheEnabled || m.target.Kind() == target.KindDirectory {
		return nil
	}
	started := time.Now()
	_, outcome, err := m.acquire(ctx, "")
	fields := m.fields()
	fields["action"] = "precompile"
	fields["cache_result"] = string(outcome)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error_kind"] = string(builder.KindOf(err))
		m.logger.WithError(err).WithFields(fields).Warn("precompile_failed")
		return err
	}
	m.logger.WithFields(fields).Info("precompile_complete")
	return nil
}

// Invalidate 丢弃该挂载的全部产物，后续请求会重新构建。
func (m *Mount) Invalidate(ctx context.Context) {
	m.cache.Purge(ctx)
	fields := m.fields()
	fields["action"] = "invalidate"
	m.logger.WithFields(fields).Info("mount_invalidated")
}

func (m *Mount) acquire(ctx context.Context, subPath string) (*cache.Artifact, cache.Outcome, error) {
	key := m.target.Key(subPath, m.cfg)
	artifact, outcome, err := m.cache.Acquire(ctx, key, m.buildFunc(subPath))
	metrics.ObserveLookup(m.name, string(outcome))
	return artifact, outcome, err
}

// buildFunc 返回交给缓存的构建闭包：builder 输出经 Pipeline 变换后成为产物。
func (m *Mount) buildFunc(subPath string) cache.BuildFunc {
	return func(ctx context.Context) (*cache.Artifact, error) {
		ctx, cancel := context.WithTimeout(ctx, m.buildTimeout)
		defer cancel()

		started := time.Now()
		artifact, err := m.build(ctx, subPath)
		elapsed := time.Since(started)

		failure := ""
		if err != nil && !builder.IsNotFound(err) {
			failure = string(builder.KindOf(err))
		}
		metrics.ObserveBuild(m.name, elapsed, failure)

		fields := m.fields()
		fields["action"] = "build"
		fields["sub_path"] = subPath
		fields["elapsed_ms"] = elapsed.Milliseconds()
		if err == nil {
			fields["bytes"] = artifact.Size()
			m.logger.WithFields(fields).Debug("bundle_built")
		}
		return artifact, err
	}
}

func (m *Mount) build(ctx context.Context, subPath string) (*cache.Artifact, error) {
	src, err := m.builder.Build(ctx, m.target, subPath, m.cfg)
	if err != nil {
		return nil, err
	}
	return m.pipeline.Apply(src)
}

func (m *Mount) fields() logrus.Fields {
	return logging.MountFields(m.name, m.route, string(m.target.Kind()))
}
