// Package watch 监听挂载源目录的变化，合并短时间内的多次事件后回调失效函数。
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce 是合并事件的时间窗口。
const DefaultDebounce = 100 * time.Millisecond

// skipDirectories 不会被递归监听。
var skipDirectories = map[string]bool{
	".git":         true,
	".hg":          true,
	"node_modules": true,
}

// Watcher 基于 fsnotify 递归监听多个源目录，每个目录对应一个回调。
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    *logrus.Logger
	debounce  time.Duration

	mu    sync.Mutex
	roots []*watchRoot

	stopOnce sync.Once
}

type watchRoot struct {
	dir       string
	debouncer *Debouncer
}

// New 创建 Watcher；debounce <= 0 时使用 DefaultDebounce。
func New(logger *logrus.Logger, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		logger:    logger,
		debounce:  debounce,
	}, nil
}

// Add 递归监听 root。root 为文件时监听其所在目录（入口文件引用的相对模块通常在同一棵树下）。
// fn 在一个防抖窗口内至多被调用一次，参数为该窗口内变化的路径。
func (w *Watcher) Add(root string, fn func(paths []string)) error {
	if fn == nil {
		return errors.New("watch callback is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	for dir := range walkDirectories(abs) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.mu.Lock()
	w.roots = append(w.roots, &watchRoot{dir: abs, debouncer: NewDebouncer(w.debounce, fn)})
	w.mu.Unlock()
	return nil
}

// Start 在后台处理事件，ctx 结束或 Close 后退出。
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

// Close 停止监听并释放 fsnotify 资源，可重复调用。尚在防抖窗口内的变化会被立即回调。
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fsWatcher.Close()

		w.mu.Lock()
		roots := append([]*watchRoot(nil), w.roots...)
		w.mu.Unlock()
		for _, root := range roots {
			root.debouncer.Flush()
		}
	})
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).WithField("action", "watch").Warn("watch_error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if skipDirectories[info.Name()] {
				return
			}
			for dir := range walkDirectories(event.Name) {
				_ = w.fsWatcher.Add(dir)
			}
		}
	}

	w.mu.Lock()
	roots := append([]*watchRoot(nil), w.roots...)
	w.mu.Unlock()

	for _, root := range roots {
		if within(root.dir, event.Name) {
			root.debouncer.Add(event.Name)
		}
	}
}

func within(root, p string) bool {
	if p == root {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}

// walkDirectories 遍历 root 下所有需要监听的目录，无法访问的目录直接跳过。
func walkDirectories(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr
			}
			if !d.IsDir() {
				return nil
			}
			if p != root && skipDirectories[d.Name()] {
				return fs.SkipDir
			}
			if !yield(p) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}
