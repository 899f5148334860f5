package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责产物的磁盘层读写。磁盘布局遵循：
//
//	<StoragePath>/<mount>-<hash>/<Key>.bundle    # 变换后的正文
//
// 每个条目仅由正文文件组成，编码等元数据由所属挂载的配置决定。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 写入正文并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除单个条目。
	Remove(ctx context.Context, locator Locator) error

	// Purge 删除某个挂载下的全部条目，启动时与源变更失效时使用。
	Purge(ctx context.Context, mount string) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个磁盘条目（挂载名 + 缓存键）。
type Locator struct {
	Mount string
	Key   string
}

// Entry 表示一次命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator `json:"locator"`
	FilePath  string  `json:"file_path"`
	SizeBytes int64   `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")
