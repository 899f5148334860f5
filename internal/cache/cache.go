package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/bundle-hub/internal/builder"
)

// DefaultMaxEntries 是内存层默认可保留的产物数量。
const DefaultMaxEntries = 512

// Outcome 描述一次 Acquire 的结果来源，供日志与指标使用。
type Outcome string

const (
	// OutcomeHit 直接命中内存中的 Ready 条目。
	OutcomeHit Outcome = "hit"
	// OutcomeShared 加入了其他请求发起的构建。
	OutcomeShared Outcome = "shared"
	// OutcomeBuilt 由本请求触发构建。
	OutcomeBuilt Outcome = "built"
	// OutcomeDisk 从磁盘层恢复，未重新构建。
	OutcomeDisk Outcome = "disk"
	// OutcomeBypass 缓存关闭，独立构建。
	OutcomeBypass Outcome = "bypass"
)

// BuildFunc 产出一个产物。它只会在没有 Ready/Pending 条目时被调用。
type BuildFunc func(ctx context.Context) (*Artifact, error)

// Options 配置单个挂载的缓存实例。
type Options struct {
	// Name 是挂载名，用作磁盘层子目录。
	Name string
	// Enabled 为 false 时不读不写，每次调用都独立构建。
	Enabled bool
	// MaxEntries 限制内存层条目数，<=0 时使用 DefaultMaxEntries。
	MaxEntries int
	// Store 为可选磁盘层。
	Store Store
	// ContentEncoding 用于从磁盘恢复产物时还原编码头。
	ContentEncoding string
	Logger          *logrus.Logger
}

// Cache 是每个挂载独占的产物缓存。同一个键任意时刻至多有一个构建在进行，
// 失败结果不会被缓存。
type Cache struct {
	opts   Options
	logger *logrus.Logger

	group  singleflight.Group
	memory *lru.Cache[string, *Artifact]

	// mu 让“检查代数并写入”与 Purge 互斥；不同键的写入可以并行持有读锁。
	mu         sync.RWMutex
	generation atomic.Uint64
	builds     atomic.Int64
}

type flightResult struct {
	artifact *Artifact
	outcome  Outcome
}

// New 构造缓存实例。
func New(opts Options) (*Cache, error) {
	size := opts.MaxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}
	memory, err := lru.New[string, *Artifact](size)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cache{
		opts:   opts,
		logger: logger,
		memory: memory,
	}, nil
}

// Enabled 报告缓存是否开启。
func (c *Cache) Enabled() bool {
	return c.opts.Enabled
}

// Acquire 返回 key 对应的产物。缓存开启时，并发调用同一 key 只会触发一次 build；
// 所有等待者得到同一个 *Artifact 或同一个错误。构建在脱离调用方取消信号的上下文中运行，
// 等待者的 ctx 结束只会让它自己提前返回。
func (c *Cache) Acquire(ctx context.Context, key string, build BuildFunc) (*Artifact, Outcome, error) {
	if !c.opts.Enabled {
		c.builds.Add(1)
		artifact, err := safeBuild(ctx, build)
		return artifact, OutcomeBypass, err
	}

	if artifact, ok := c.memory.Get(key); ok {
		return artifact, OutcomeHit, nil
	}

	gen := c.generation.Load()
	leader := false
	ch := c.group.DoChan(flightKey(key, gen), func() (interface{}, error) {
		leader = true
		// 未命中与 DoChan 之间，上一次构建可能刚好完成，需要再次检查。
		if artifact, ok := c.memory.Get(key); ok {
			return flightResult{artifact: artifact, outcome: OutcomeHit}, nil
		}
		buildCtx := context.WithoutCancel(ctx)
		if artifact := c.loadFromDisk(buildCtx, key); artifact != nil {
			c.remember(buildCtx, key, gen, artifact, false)
			return flightResult{artifact: artifact, outcome: OutcomeDisk}, nil
		}

		c.builds.Add(1)
		artifact, err := safeBuild(buildCtx, build)
		if err != nil {
			return nil, err
		}
		c.remember(buildCtx, key, gen, artifact, true)
		return flightResult{artifact: artifact, outcome: OutcomeBuilt}, nil
	})

	select {
	case res := <-ch:
		outcome := OutcomeShared
		if res.Err != nil {
			if leader {
				outcome = OutcomeBuilt
			}
			return nil, outcome, res.Err
		}
		fr := res.Val.(flightResult)
		if leader {
			outcome = fr.outcome
		}
		return fr.artifact, outcome, nil
	case <-ctx.Done():
		return nil, OutcomeShared, ctx.Err()
	}
}

// Purge 丢弃全部产物。进行中的构建完成后不会再写入（代数已变化）。
func (c *Cache) Purge(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation.Add(1)
	c.memory.Purge()
	if c.opts.Store != nil {
		if err := c.opts.Store.Purge(ctx, c.opts.Name); err != nil {
			c.logger.WithError(err).
				WithFields(logrus.Fields{"action": "cache_purge", "mount": c.opts.Name}).
				Warn("cache_purge_failed")
		}
	}
}

// Len 返回内存层中的 Ready 条目数。
func (c *Cache) Len() int {
	return c.memory.Len()
}

// Builds 返回累计调用 BuildFunc 的次数。
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

func (c *Cache) remember(ctx context.Context, key string, gen uint64, artifact *Artifact, persist bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.generation.Load() != gen {
		return
	}
	c.memory.Add(key, artifact)
	if persist && c.opts.Store != nil {
		_, err := c.opts.Store.Put(ctx, c.locator(key), bytes.NewReader(artifact.Body), PutOptions{ModTime: artifact.BuiltAt})
		if err != nil {
			c.logger.WithError(err).
				WithFields(logrus.Fields{"action": "cache_store", "mount": c.opts.Name, "key": key}).
				Warn("cache_store_failed")
		}
	}
}

func (c *Cache) loadFromDisk(ctx context.Context, key string) *Artifact {
	if c.opts.Store == nil {
		return nil
	}
	result, err := c.opts.Store.Get(ctx, c.locator(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.WithError(err).
				WithFields(logrus.Fields{"action": "cache_load", "mount": c.opts.Name, "key": key}).
				Warn("cache_get_failed")
		}
		return nil
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		c.logger.WithError(err).
			WithFields(logrus.Fields{"action": "cache_load", "mount": c.opts.Name, "key": key}).
			Warn("cache_read_failed")
		// 读不出的条目删掉，下次直接重建而不是反复命中坏文件。
		if rmErr := c.opts.Store.Remove(ctx, c.locator(key)); rmErr != nil {
			c.logger.WithError(rmErr).
				WithFields(logrus.Fields{"action": "cache_load", "mount": c.opts.Name, "key": key}).
				Warn("cache_remove_failed")
		}
		return nil
	}
	artifact := NewArtifact(body, c.opts.ContentEncoding)
	artifact.BuiltAt = result.Entry.ModTime.UTC()
	return artifact
}

func (c *Cache) locator(key string) Locator {
	return Locator{Mount: c.opts.Name, Key: key}
}

func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

// safeBuild 把构建中的 panic 转成 BuildError，避免单个键的故障拖垮进程或其他键。
func safeBuild(ctx context.Context, build BuildFunc) (artifact *Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = builder.NewError(builder.KindUnknown, fmt.Sprintf("build panic: %v", r),
				fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()
	artifact, err = build(ctx)
	if err == nil && artifact == nil {
		err = builder.NewError(builder.KindUnknown, "build produced no artifact", nil)
	}
	return artifact, err
}
