package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/any-hub/bundle-hub/internal/target"
)

// ESBuildOptions 控制 esbuild 的全局行为，对所有挂载生效。
type ESBuildOptions struct {
	// Platform 默认为 browser；产物以 IIFE 形式输出。
	Platform api.Platform
	// Target 为空时使用 esbuild 默认（esnext）。
	Target api.Target
}

// ESBuild 使用 esbuild 的 Go API 打包，调用之间没有共享状态。
type ESBuild struct {
	opts ESBuildOptions
}

// NewESBuild 构造 esbuild 打包器。
func NewESBuild(opts ESBuildOptions) *ESBuild {
	if opts.Platform == api.PlatformDefault {
		opts.Platform = api.PlatformBrowser
	}
	return &ESBuild{opts: opts}
}

// Build 实现 Builder。esbuild 本身不支持取消，ctx 结束时立即返回，
// 后台构建完成后结果被丢弃。
func (b *ESBuild) Build(ctx context.Context, t *target.SourceTarget, subPath string, cfg target.BuildConfig) ([]byte, error) {
	options, err := b.buildOptions(t, subPath, cfg)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		code []byte
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		code, err := runBuild(options)
		done <- outcome{code: code, err: err}
	}()

	select {
	case out := <-done:
		return out.code, out.err
	case <-ctx.Done():
		return nil, NewError(KindUnknown, fmt.Sprintf("build aborted: %v", ctx.Err()), ctx.Err())
	}
}

func (b *ESBuild) buildOptions(t *target.SourceTarget, subPath string, cfg target.BuildConfig) (api.BuildOptions, error) {
	options := api.BuildOptions{
		Bundle:   true,
		Write:    false,
		Format:   api.FormatIIFE,
		Platform: b.opts.Platform,
		Target:   b.opts.Target,
		LogLevel: api.LogLevelSilent,
	}
	if cfg.DebugEnabled {
		options.Sourcemap = api.SourceMapInline
		options.SourcesContent = api.SourcesContentInclude
	}

	switch t.Kind() {
	case target.KindFile:
		entry, err := existingFile(t.Root())
		if err != nil {
			return options, err
		}
		options.EntryPoints = []string{entry}
		options.Outfile = filepath.Join(filepath.Dir(entry), "__bundle.js")
		options.External = t.External()
	case target.KindDirectory:
		entry, err := directoryEntry(t.Root(), subPath)
		if err != nil {
			return options, err
		}
		options.EntryPoints = []string{entry}
		options.Outfile = filepath.Join(filepath.Dir(entry), "__bundle.js")
		options.External = t.External()
	case target.KindModuleList:
		exposed := t.Modules()
		options.Stdin = &api.StdinOptions{
			Contents:   moduleListEntry(exposed),
			ResolveDir: t.Root(),
			Sourcefile: "modules.js",
			Loader:     api.LoaderJS,
		}
		options.Outfile = filepath.Join(t.Root(), "__bundle.js")
		options.External = externalsExcept(t.External(), exposed)
	default:
		return options, NewError(KindUnknown, fmt.Sprintf("unsupported target kind %q", t.Kind()), nil)
	}
	return options, nil
}

func runBuild(options api.BuildOptions) ([]byte, error) {
	result := api.Build(options)
	if len(result.Errors) > 0 {
		return nil, classifyMessages(result.Errors)
	}
	if len(result.OutputFiles) == 0 {
		return nil, NewError(KindUnknown, "esbuild produced no output", nil)
	}
	for _, file := range result.OutputFiles {
		if strings.HasSuffix(file.Path, ".js") {
			return file.Contents, nil
		}
	}
	return result.OutputFiles[0].Contents, nil
}

// classifyMessages 将 esbuild 的错误列表折叠为单个 BuildError，类型取第一条错误。
func classifyMessages(messages []api.Message) *BuildError {
	lines := make([]string, 0, len(messages))
	kind := KindUnknown
	for i, msg := range messages {
		lines = append(lines, formatMessage(msg))
		if i > 0 {
			continue
		}
		switch {
		case strings.HasPrefix(msg.Text, "Could not resolve"):
			kind = KindResolution
		case msg.Location != nil:
			kind = KindSyntax
		}
	}
	text := strings.Join(lines, "\n")
	return NewError(kind, text, errors.New(messages[0].Text))
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	loc := msg.Location
	return fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, msg.Text)
}

func existingFile(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", NotFound(p)
		}
		return "", NewError(KindUnknown, fmt.Sprintf("stat source: %v", err), err)
	}
	if info.IsDir() {
		return "", NotFound(p)
	}
	return p, nil
}

// directoryEntry 把 URL 风格的子路径映射到 root 下的文件，拒绝逃逸出 root 的路径。
func directoryEntry(root, subPath string) (string, error) {
	clean := path.Clean("/" + subPath)
	if clean == "/" {
		return "", NotFound(root)
	}
	full := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NotFound(subPath)
	}
	return existingFile(full)
}

// moduleListEntry 生成模块列表的入口：每个模块包在函数里，只有 require(name) 时才初始化。
func moduleListEntry(modules []string) string {
	var b strings.Builder
	b.WriteString("var __exposed = {\n")
	for _, name := range modules {
		quoted, _ := json.Marshal(name)
		fmt.Fprintf(&b, "  %s: function () { return require(%s); },\n", quoted, quoted)
	}
	b.WriteString("};\n")
	b.WriteString(`var __scope = typeof globalThis !== "undefined" ? globalThis : (typeof self !== "undefined" ? self : this);
var __previous = typeof __scope.require === "function" ? __scope.require : null;
__scope.require = function (name) {
  if (Object.prototype.hasOwnProperty.call(__exposed, name)) {
    return __exposed[name]();
  }
  if (__previous) {
    return __previous(name);
  }
  throw new Error("Cannot find module '" + name + "'");
};
`)
	return b.String()
}

func externalsExcept(external, exposed []string) []string {
	if len(external) == 0 {
		return nil
	}
	skip := make(map[string]struct{}, len(exposed))
	for _, name := range exposed {
		skip[name] = struct{}{}
	}
	out := make([]string, 0, len(external))
	for _, name := range external {
		if _, ok := skip[name]; ok {
			continue
		}
		out = append(out, name)
	}
	return out
}
