package internal

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveRoot resolves the corpus root to an absolute, symlink-free path.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}

	absPath, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	return absPath, nil
}

// DefaultDBPath derives a per-corpus database path under ~/.semdex/data.
func DefaultDBPath(root string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dataDir := filepath.Join(homeDir, ".semdex", "data")
	corpusName := sanitizeName(filepath.Base(root))
	hash := sha1.Sum([]byte(root))
	suffix := hex.EncodeToString(hash[:])[:12]
	filename := fmt.Sprintf("%s-%s.db", corpusName, suffix)
	return filepath.Join(dataDir, filename), nil
}

// sanitizeName replaces characters that are unsafe in file names.
func sanitizeName(name string) string {
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "corpus"
	}
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "corpus"
	}
	return b.String()
}
