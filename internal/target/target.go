// Package target 描述一个挂载点要构建的源：单文件、目录或模块列表，以及挂载时确定的构建参数。
package target

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kind 区分三种源描述。
type Kind string

const (
	KindFile       Kind = "file"
	KindDirectory  Kind = "directory"
	KindModuleList Kind = "modules"
)

// ParseKind 将配置中的字符串标准化为 Kind。
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindFile:
		return KindFile, nil
	case KindDirectory, "dir":
		return KindDirectory, nil
	case KindModuleList, "module", "package":
		return KindModuleList, nil
	default:
		return "", fmt.Errorf("unsupported target kind: %q", raw)
	}
}

// BuildConfig 在挂载时确定，之后不随请求变化。
type BuildConfig struct {
	CacheEnabled    bool
	CompressEnabled bool
	MinifyEnabled   bool
	DebugEnabled    bool
}

// SourceTarget 构造后只读，一个挂载点对应一个实例。
type SourceTarget struct {
	kind     Kind
	root     string
	modules  []string
	external []string
	identity string
}

// New 校验并构造 SourceTarget。File/Directory 的 root 会被转换为绝对路径；
// ModuleList 的 root 是解析模块时使用的目录，可为空（默认当前目录）。
func New(kind Kind, root string, modules, external []string) (*SourceTarget, error) {
	t := &SourceTarget{kind: kind}

	switch kind {
	case KindFile, KindDirectory:
		if strings.TrimSpace(root) == "" {
			return nil, errors.New("source path required")
		}
	case KindModuleList:
		if len(modules) == 0 {
			return nil, errors.New("module list target requires at least one module")
		}
		if strings.TrimSpace(root) == "" {
			root = "."
		}
	default:
		return nil, fmt.Errorf("unsupported target kind: %q", kind)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	t.root = abs
	t.modules = dedupe(modules)
	t.external = dedupe(external)
	t.identity = t.computeIdentity()
	return t, nil
}

func (t *SourceTarget) Kind() Kind { return t.kind }

// Root 返回文件路径、目录根或模块解析目录。
func (t *SourceTarget) Root() string { return t.root }

// Modules 返回模块列表的副本。
func (t *SourceTarget) Modules() []string { return append([]string(nil), t.modules...) }

// External 返回由宿主环境解析、不打入 bundle 的模块名。
func (t *SourceTarget) External() []string { return append([]string(nil), t.external...) }

// IsExternal 判断模块名是否在 external 集合中。
func (t *SourceTarget) IsExternal(name string) bool {
	idx := sort.SearchStrings(t.external, name)
	return idx < len(t.external) && t.external[idx] == name
}

// Identity 是目标的稳定描述，用于缓存键与日志。
func (t *SourceTarget) Identity() string { return t.identity }

// Key 由目标身份、子路径与构建参数确定性地派生缓存键。
func (t *SourceTarget) Key(subPath string, cfg BuildConfig) string {
	h := xxhash.New()
	_, _ = h.WriteString(t.identity)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(subPath)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(cfg.flags())
	return fmt.Sprintf("%016x", h.Sum64())
}

func (t *SourceTarget) computeIdentity() string {
	var b strings.Builder
	b.WriteString(string(t.kind))
	b.WriteString(":")
	b.WriteString(t.root)
	if len(t.modules) > 0 {
		b.WriteString("|modules=")
		b.WriteString(strings.Join(t.modules, ","))
	}
	if len(t.external) > 0 {
		b.WriteString("|external=")
		b.WriteString(strings.Join(t.external, ","))
	}
	return b.String()
}

func (c BuildConfig) flags() string {
	return strconv.FormatBool(c.CacheEnabled) + "," +
		strconv.FormatBool(c.CompressEnabled) + "," +
		strconv.FormatBool(c.MinifyEnabled) + "," +
		strconv.FormatBool(c.DebugEnabled)
}

// dedupe 返回去重并排序后的副本，保证 identity 与输入顺序无关。
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
