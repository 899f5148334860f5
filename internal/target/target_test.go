package target

import (
	"path/filepath"
	"testing"
)

func TestNewValidatesKind(t *testing.T) {
	testCases := []struct {
		name      string
		kind      Kind
		root      string
		modules   []string
		shouldErr bool
	}{
		{"file ok", KindFile, "./beep.js", nil, false},
		{"directory ok", KindDirectory, "./directory", nil, false},
		{"modules ok", KindModuleList, "", []string{"require-test"}, false},
		{"file missing path", KindFile, "", nil, true},
		{"modules empty", KindModuleList, "", nil, true},
		{"unknown kind", Kind("zip"), "./x", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.kind, tc.root, tc.modules, nil)
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for %s: %v", tc.name, err)
			}
		})
	}
}

func TestRootIsAbsolute(t *testing.T) {
	tgt, err := New(KindDirectory, "./directory", nil, nil)
	if err != nil {
		t.Fatalf("构造失败: %v", err)
	}
	if !filepath.IsAbs(tgt.Root()) {
		t.Fatalf("root 应为绝对路径，得到 %s", tgt.Root())
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a, _ := New(KindModuleList, "", []string{"b", "a", "a"}, []string{"x"})
	b, _ := New(KindModuleList, "", []string{"a", "b"}, []string{"x", ""})
	cfg := BuildConfig{CacheEnabled: true, MinifyEnabled: true}

	if a.Key("/mod.js", cfg) != b.Key("/mod.js", cfg) {
		t.Fatalf("相同目标与配置应得到相同的缓存键")
	}
	if a.Key("/mod.js", cfg) == a.Key("/mod.js", BuildConfig{CacheEnabled: true}) {
		t.Fatalf("不同配置不应共享缓存键")
	}
	if a.Key("/a.js", cfg) == a.Key("/b.js", cfg) {
		t.Fatalf("不同子路径不应共享缓存键")
	}
}

func TestIsExternal(t *testing.T) {
	tgt, _ := New(KindModuleList, "", []string{"require-test"}, []string{"react", "require-test"})
	if !tgt.IsExternal("react") || !tgt.IsExternal("require-test") {
		t.Fatalf("external 集合应包含配置的模块")
	}
	if tgt.IsExternal("lodash") {
		t.Fatalf("未配置的模块不应被视为 external")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Dir "); err != nil || k != KindDirectory {
		t.Fatalf("dir 应解析为 directory，得到 %q/%v", k, err)
	}
	if _, err := ParseKind("tarball"); err == nil {
		t.Fatalf("未知类型应报错")
	}
}
