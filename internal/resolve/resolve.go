// Package resolve 把入站请求路径映射为构建目标，或判定请求不属于当前挂载。
package resolve

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"

	"github.com/any-hub/bundle-hub/internal/target"
)

// Decision 是路径解析的三种结论。
type Decision int

const (
	// NotMine 路径不在挂载前缀下，交给下一个 handler，不产生副作用。
	NotMine Decision = iota
	// ExactBuild 路径对应一个可构建的脚本。
	ExactBuild
	// PassThrough 路径在挂载下但不是脚本请求，交给下一个 handler 提供静态资源或 404。
	PassThrough
)

func (d Decision) String() string {
	switch d {
	case ExactBuild:
		return "exact_build"
	case PassThrough:
		return "pass_through"
	default:
		return "not_mine"
	}
}

// DefaultExtensions 是目录挂载默认视为脚本的扩展名。
var DefaultExtensions = []string{".js"}

// Resolution 是一次解析的结果；SubPath 仅在目录挂载下非空，形如 /lib/a.js。
type Resolution struct {
	Decision Decision
	SubPath  string
}

// Resolver 在挂载时构造，之后只读。
type Resolver struct {
	kind       target.Kind
	prefix     string
	extensions map[string]struct{}
	ignore     []glob.Glob
}

// New 构造 Resolver。ignore 为相对目录根的 glob（以 / 分隔），仅对目录挂载生效。
func New(kind target.Kind, prefix string, extensions, ignore []string) (*Resolver, error) {
	r := &Resolver{
		kind:       kind,
		prefix:     NormalizePrefix(prefix),
		extensions: make(map[string]struct{}),
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extensions[ext] = struct{}{}
	}
	for _, pattern := range ignore {
		g, err := glob.Compile(strings.TrimPrefix(pattern, "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		r.ignore = append(r.ignore, g)
	}
	return r, nil
}

// Prefix 返回标准化后的挂载前缀。
func (r *Resolver) Prefix() string {
	return r.prefix
}

// Resolve 按以下优先级判定：
//  1. File/ModuleList 只匹配挂载路径本身；
//  2. Directory 下扩展名为脚本扩展名的路径一律 ExactBuild，是否存在由构建阶段发现；
//  3. Directory 下其它路径直接 PassThrough，不触发构建。
func (r *Resolver) Resolve(requestPath string) Resolution {
	if requestPath == "" {
		requestPath = "/"
	}

	switch r.kind {
	case target.KindFile, target.KindModuleList:
		if requestPath == r.prefix || requestPath == r.prefix+"/" {
			return Resolution{Decision: ExactBuild}
		}
		return Resolution{Decision: NotMine}
	case target.KindDirectory:
		return r.resolveDirectory(requestPath)
	default:
		return Resolution{Decision: NotMine}
	}
}

func (r *Resolver) resolveDirectory(requestPath string) Resolution {
	var rel string
	switch {
	case r.prefix == "/":
		rel = requestPath
	case requestPath == r.prefix:
		return Resolution{Decision: PassThrough, SubPath: "/"}
	case strings.HasPrefix(requestPath, r.prefix+"/"):
		rel = requestPath[len(r.prefix):]
	default:
		return Resolution{Decision: NotMine}
	}

	clean := path.Clean("/" + rel)
	if clean == "/" || strings.HasSuffix(rel, "/") {
		return Resolution{Decision: PassThrough, SubPath: clean}
	}
	if _, ok := r.extensions[strings.ToLower(path.Ext(clean))]; !ok {
		return Resolution{Decision: PassThrough, SubPath: clean}
	}
	trimmed := strings.TrimPrefix(clean, "/")
	for _, g := range r.ignore {
		if g.Match(trimmed) {
			return Resolution{Decision: PassThrough, SubPath: clean}
		}
	}
	return Resolution{Decision: ExactBuild, SubPath: clean}
}

// NormalizePrefix 保证前缀以 / 开头且不以 / 结尾（根路径除外）。
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if len(prefix) > 1 {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			prefix = "/"
		}
	}
	return prefix
}
