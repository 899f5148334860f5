// Package builder 定义“从源描述构建单个 bundle”的能力，并提供基于 esbuild 的实现。
package builder

import (
	"context"

	"github.com/any-hub/bundle-hub/internal/target"
)

// Builder 把 SourceTarget（及目录挂载下的子路径）构建为可执行的 JavaScript。
// 失败时返回 *BuildError；源文件不存在必须返回 Kind 为 KindNotFound 的错误。
type Builder interface {
	Build(ctx context.Context, t *target.SourceTarget, subPath string, cfg target.BuildConfig) ([]byte, error)
}

// Func 让普通函数满足 Builder 接口，便于测试注入。
type Func func(ctx context.Context, t *target.SourceTarget, subPath string, cfg target.BuildConfig) ([]byte, error)

// Build makes Func satisfy Builder.
func (f Func) Build(ctx context.Context, t *target.SourceTarget, subPath string, cfg target.BuildConfig) ([]byte, error) {
	return f(ctx, t, subPath, cfg)
}
