// Package loader reads the authored topic tree configuration and topic
// snapshot files from disk.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/topictree/pkg/logging"
)

// SourceDirEnvVar overrides the directory searched for topic snapshots.
const SourceDirEnvVar = "TT_SOURCE_DIR"

// DefaultSourceDirName is the directory searched when no override is set.
const DefaultSourceDirName = ".topictree"

// PreferredSnapshotNames defines the lookup priority of snapshot files.
var PreferredSnapshotNames = []string{"topics.jsonl", "snapshot.jsonl"}

// GetSourceDir returns the snapshot directory, respecting TT_SOURCE_DIR.
// Otherwise it is .topictree under repoPath (or the working directory).
func GetSourceDir(repoPath string) (string, error) {
	if envDir := os.Getenv(SourceDirEnvVar); envDir != "" {
		return envDir, nil
	}
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}
	return filepath.Join(repoPath, DefaultSourceDirName), nil
}

// IsSnapshotCandidate reports whether name looks like a snapshot file rather
// than a backup or editor artifact.
func IsSnapshotCandidate(name string) bool {
	if !strings.HasSuffix(name, ".jsonl") {
		return false
	}
	for _, marker := range []string{".backup", ".orig", ".tmp", ".swp", "~"} {
		if strings.Contains(name, marker) {
			return false
		}
	}
	return !strings.HasPrefix(name, ".")
}

// FindSnapshotPath locates the topic snapshot in dir. Preferred names win;
// then the first non-empty candidate; then the first candidate.
func FindSnapshotPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read source directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() || !IsSnapshotCandidate(e.Name()) {
			continue
		}
		candidates = append(candidates, e.Name())
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no topic snapshot found in %s", dir)
	}

	nonEmpty := func(name string) (string, bool) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		return path, err == nil && info.Size() > 0
	}
	for _, preferred := range PreferredSnapshotNames {
		for _, name := range candidates {
			if name != preferred {
				continue
			}
			if path, ok := nonEmpty(name); ok {
				return path, nil
			}
		}
	}
	for _, name := range candidates {
		if path, ok := nonEmpty(name); ok {
			return path, nil
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

// defaultWarn logs parse warnings through the loader component logger.
func defaultWarn(msg string) {
	l := logging.Component("loader")
	l.Warn().Msg(msg)
}

// stripBOM removes a UTF-8 byte order mark.
func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}
