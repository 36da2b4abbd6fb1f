package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("缺少配置样例 %s: %v", name, err)
	}
	return path
}

// writeRootedConfig 在临时目录写出 file-hub.toml，RootDir 指向同一临时目录，
// body 只需要给出被测字段。
func writeRootedConfig(t *testing.T, body string) (path, root string) {
	t.Helper()
	root = t.TempDir()
	path = filepath.Join(root, DefaultPath)
	content := fmt.Sprintf("RootDir = %q\n%s", root, body)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path, root
}
