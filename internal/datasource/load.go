package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/topictree/pkg/loader"
	"github.com/vanderheijden86/topictree/pkg/model"
)

// LoadSnapshot performs smart multi-source detection and loading: it
// discovers every source under the project's source directory, validates
// them and loads the freshest valid one. SQLite wins ties with JSONL.
//
// Falls back to the preferred JSONL file when smart detection finds no
// valid source.
func LoadSnapshot(ctx context.Context, repoPath string) (*model.SourceSnapshot, DataSource, error) {
	sourceDir, err := loader.GetSourceDir(repoPath)
	if err != nil {
		return nil, DataSource{}, err
	}
	return LoadSnapshotFromDir(ctx, sourceDir)
}

// LoadSnapshotFromDir performs smart source detection within a known
// source directory.
func LoadSnapshotFromDir(ctx context.Context, sourceDir string) (*model.SourceSnapshot, DataSource, error) {
	snap, source, smartErr := loadSmart(ctx, sourceDir)
	if smartErr == nil {
		return snap, source, nil
	}
	logger().Debug().Err(smartErr).Str("dir", sourceDir).Msg("smart detection failed, falling back to JSONL")

	path, err := loader.FindSnapshotPath(sourceDir)
	if err != nil {
		return nil, DataSource{}, err
	}
	source, err = SourceForPath(path)
	if err != nil {
		return nil, DataSource{}, err
	}
	snap, err = loader.LoadSnapshotFromFile(path)
	if err != nil {
		return nil, DataSource{}, err
	}
	return snap, source, nil
}

// LoadPath loads the topic source file at path, picking the reader by
// extension.
func LoadPath(ctx context.Context, path string) (*model.SourceSnapshot, DataSource, error) {
	source, err := SourceForPath(path)
	if err != nil {
		return nil, DataSource{}, err
	}
	snap, err := LoadFromSource(ctx, source)
	if err != nil {
		return nil, DataSource{}, err
	}
	return snap, source, nil
}

func loadSmart(ctx context.Context, sourceDir string) (*model.SourceSnapshot, DataSource, error) {
	sources, err := DiscoverSources(DiscoveryOptions{
		SourceDir:              sourceDir,
		ValidateAfterDiscovery: true,
	})
	if err != nil {
		return nil, DataSource{}, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, err
	}
	snap, err := LoadFromSource(ctx, best)
	if err != nil {
		return nil, DataSource{}, err
	}
	return snap, best, nil
}

// LoadFromSource loads a snapshot from a specific DataSource, dispatching
// to the appropriate reader based on source type.
func LoadFromSource(ctx context.Context, source DataSource) (*model.SourceSnapshot, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadSnapshot(ctx)

	case SourceTypeJSONL:
		return loader.LoadSnapshotFromFile(source.Path)

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
