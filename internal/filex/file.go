// Package filex contains filesystem helpers used when preparing local state.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path (mode 0700) and
// returns the cleaned absolute path. In-memory sqlite DSNs are returned
// unchanged.
func EnsureParentDir(path string) (string, error) {
	if IsMemoryDSN(path) {
		return path, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", path, err)
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return abs, nil
}

// IsMemoryDSN reports whether dsn names an in-memory sqlite database.
func IsMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || (len(dsn) >= 5 && dsn[:5] == "file:")
}
