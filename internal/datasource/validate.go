package datasource

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vanderheijden86/topictree/pkg/loader"
	"github.com/vanderheijden86/topictree/pkg/logging"
)

// logger returns the datasource logger derived from the current global logger.
func logger() *zerolog.Logger {
	l := logging.Component("datasource")
	return &l
}

// ErrNoValidSource is returned when no discovered source passed validation.
var ErrNoValidSource = errors.New("no valid topic source")

// maxInvalidRatio is the share of skipped lines above which a JSONL source
// is rejected.
const maxInvalidRatio = 0.5

// ValidateSource checks that a source can be read and sets Valid,
// ValidationError and TopicCount.
func ValidateSource(source *DataSource) error {
	err := validate(source)
	source.Valid = err == nil
	source.ValidationError = ""
	if err != nil {
		source.ValidationError = err.Error()
	}
	return err
}

func validate(source *DataSource) error {
	if source.Size == 0 {
		return errors.New("empty file")
	}
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(*source)
		if err != nil {
			return err
		}
		defer reader.Close()
		n, err := reader.CountTopics()
		if err != nil {
			return err
		}
		source.TopicCount = n
		return nil

	case SourceTypeJSONL:
		warnings := 0
		snap, err := loader.LoadSnapshotFromFileWithOptions(source.Path, loader.ParseOptions{
			WarningHandler: func(string) { warnings++ },
		})
		if err != nil {
			return err
		}
		source.TopicCount = snap.TopicCount()
		records := source.TopicCount + warnings
		if records > 0 && float64(warnings)/float64(records) > maxInvalidRatio {
			return fmt.Errorf("%d of %d lines unreadable", warnings, records)
		}
		if source.TopicCount == 0 && warnings > 0 {
			return errors.New("no readable topics")
		}
		return nil
	}
	return fmt.Errorf("unknown source type: %s", source.Type)
}

// SelectBestSource returns the freshest valid source; equal modification
// times prefer the higher priority.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var valid []DataSource
	for _, s := range sources {
		if s.Valid {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return DataSource{}, ErrNoValidSource
	}
	sortSources(valid)
	return valid[0], nil
}
