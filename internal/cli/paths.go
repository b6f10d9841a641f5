package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("build dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("build dir %s is not a directory", abs)
	}
	return abs, nil
}

func joinPath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(base, rel)
}
