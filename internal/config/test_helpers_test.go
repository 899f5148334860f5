package config

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// writeSource 在配置文件同目录下写入一个脚本，返回其绝对路径。
func writeSource(t *testing.T, configPath, name string) string {
	t.Helper()
	full := filepath.Join(filepath.Dir(configPath), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(full, []byte("console.log(1);\n"), 0o644); err != nil {
		t.Fatalf("写入脚本失败: %v", err)
	}
	return full
}
