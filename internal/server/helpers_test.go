package server

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/bundle-hub/internal/builder"
	"github.com/any-hub/bundle-hub/internal/config"
	"github.com/any-hub/bundle-hub/internal/target"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture failed: %v", err)
	}
	return full
}

// countingBuilder 返回固定内容并记录调用次数；子路径 /missing.js 视为不存在。
type countingBuilder struct {
	calls atomic.Int32
}

func (b *countingBuilder) Build(_ context.Context, tgt *target.SourceTarget, subPath string, _ target.BuildConfig) ([]byte, error) {
	b.calls.Add(1)
	if subPath == "/missing.js" {
		return nil, builder.NotFound(subPath)
	}
	return []byte("/* " + string(tgt.Kind()) + subPath + " */"), nil
}

func boolPtr(v bool) *bool { return &v }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	entry := writeFixture(t, dir, "app.js", "console.log('app');\n")
	writeFixture(t, dir, "src/page.js", "console.log('page');\n")
	return &config.Config{
		Global: config.GlobalConfig{
			ListenPort:       5000,
			MaxMemoryEntries: 16,
			GzipLevel:        6,
			BuildTimeout:     config.Duration(time.Minute),
		},
		Mounts: []config.MountConfig{
			{Name: "app", Route: "/app.js", Kind: "file", Source: entry, Cache: boolPtr(true), Precompile: true},
			{Name: "src", Route: "/src", Kind: "directory", Source: filepath.Join(dir, "src"), Cache: boolPtr(true), Extensions: []string{".js"}},
		},
	}
}
