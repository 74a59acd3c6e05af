// Package datasource discovers, validates and loads topic sources: JSONL
// snapshot files and SQLite topic databases. When several exist the freshest
// valid one wins.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/topictree/pkg/loader"
)

// SourceType identifies the type of topic source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite topic database (topics.db)
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a JSONL topic snapshot
	SourceTypeJSONL SourceType = "jsonl"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSONL  = 50
)

// DatabaseNames are the SQLite files looked for in a source directory.
var DatabaseNames = []string{"topics.db", "topics.sqlite"}

// DataSource represents a potential source of topic data
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the absolute path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// TopicCount is the number of topics in the source (set during validation)
	TopicCount int `json:"topic_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, topics=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.TopicCount, status)
}

// TypeForPath guesses the source type of a file by extension.
func TypeForPath(path string) SourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return SourceTypeSQLite
	}
	return SourceTypeJSONL
}

// SourceForPath describes a single file as a DataSource without validating it.
func SourceForPath(path string) (DataSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return DataSource{}, fmt.Errorf("topic source: %w", err)
	}
	typ := TypeForPath(abs)
	priority := PriorityJSONL
	if typ == SourceTypeSQLite {
		priority = PrioritySQLite
	}
	return DataSource{
		Type:     typ,
		Path:     abs,
		Priority: priority,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}, nil
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// SourceDir is the directory searched (optional, see loader.GetSourceDir)
	SourceDir string
	// RepoPath is the project root used when SourceDir is empty
	RepoPath string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
}

// DiscoverSources finds all potential topic sources, newest first.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	sourceDir := opts.SourceDir
	if sourceDir == "" {
		var err error
		sourceDir, err = loader.GetSourceDir(opts.RepoPath)
		if err != nil {
			return nil, err
		}
	}
	logger().Debug().Str("dir", sourceDir).Msg("discovering topic sources")

	var sources []DataSource
	sources = append(sources, discoverSQLiteSources(sourceDir)...)

	jsonlSources, err := discoverJSONLSources(sourceDir)
	if err != nil {
		logger().Debug().Err(err).Msg("JSONL discovery")
	}
	sources = append(sources, jsonlSources...)

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logger().Debug().Err(err).Str("path", sources[i].Path).Msg("validation failed")
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sortSources(sources)
	logger().Debug().Int("count", len(sources)).Msg("discovered topic sources")
	return sources, nil
}

// sortSources orders newest first; equal times prefer higher priority.
func sortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}

func discoverSQLiteSources(sourceDir string) []DataSource {
	var sources []DataSource
	for _, name := range DatabaseNames {
		dbPath := filepath.Join(sourceDir, name)
		info, err := os.Stat(dbPath)
		if err != nil || info.IsDir() {
			continue
		}
		sources = append(sources, DataSource{
			Type:     SourceTypeSQLite,
			Path:     dbPath,
			Priority: PrioritySQLite,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		logger().Debug().Str("path", dbPath).Time("mod", info.ModTime()).Msg("found SQLite source")
	}
	return sources
}

func discoverJSONLSources(sourceDir string) ([]DataSource, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() || !loader.IsSnapshotCandidate(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(sourceDir, e.Name())
		sources = append(sources, DataSource{
			Type:     SourceTypeJSONL,
			Path:     path,
			Priority: PriorityJSONL,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		logger().Debug().Str("path", path).Time("mod", info.ModTime()).Msg("found JSONL source")
	}
	return sources, nil
}
