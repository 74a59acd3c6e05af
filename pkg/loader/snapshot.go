package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/topictree/pkg/metrics"
	"github.com/vanderheijden86/topictree/pkg/model"
	"github.com/vanderheijden86/topictree/pkg/nodekey"
)

// DefaultMaxBufferSize is the longest snapshot line read (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// Record kinds of a snapshot line. A line without kind is a topic.
const (
	RecordTopic      = "topic"
	RecordNamespace  = "namespace"
	RecordSceneError = "scene_error"
)

// Record is one line of a topic snapshot.
//
//	{"kind":"topic","name":"/foo","datatype":"visualization_msgs/MarkerArray","namespaces":["cars"]}
//	{"kind":"namespace","topic":"/source_2/foo","namespace":"trucks"}
//	{"kind":"scene_error","topic":"/foo","message":"missing transform"}
type Record struct {
	Kind       string   `json:"kind,omitempty"`
	Name       string   `json:"name,omitempty"`
	Datatype   string   `json:"datatype,omitempty"`
	Namespaces []string `json:"namespaces,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Namespace  string   `json:"namespace,omitempty"`
	Key        string   `json:"key,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// ParseOptions configures ParseSnapshot.
type ParseOptions struct {
	// WarningHandler receives messages about skipped lines. Nil logs them
	// through the loader component logger.
	WarningHandler func(string)

	// BufferSize is the longest line read; longer lines are skipped with a
	// warning. Zero means DefaultMaxBufferSize.
	BufferSize int
}

// LoadSnapshotFromFile reads a JSONL topic snapshot.
func LoadSnapshotFromFile(path string) (*model.SourceSnapshot, error) {
	return LoadSnapshotFromFileWithOptions(path, ParseOptions{})
}

// LoadSnapshotFromFileWithOptions reads a JSONL topic snapshot with options.
func LoadSnapshotFromFileWithOptions(path string, opts ParseOptions) (*model.SourceSnapshot, error) {
	defer metrics.Timer(metrics.TopicSourceLoad)()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no topic snapshot at %s", path)
		}
		return nil, fmt.Errorf("failed to open topic snapshot: %w", err)
	}
	defer file.Close()
	return ParseSnapshot(file, opts)
}

// SnapshotBuilder accumulates records into a snapshot. Topics keep first-seen
// order; a repeated topic updates its datatype. Namespaces are deduplicated.
type SnapshotBuilder struct {
	snap       *model.SourceSnapshot
	topicIndex map[string]int
	nsSeen     map[string]map[string]struct{}
}

// NewSnapshotBuilder returns an empty builder.
func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{
		snap: &model.SourceSnapshot{
			NamespacesByTopic:     make(map[string][]string),
			SceneErrorsByTopicKey: make(map[string][]string),
		},
		topicIndex: make(map[string]int),
		nsSeen:     make(map[string]map[string]struct{}),
	}
}

// AddTopic records a live topic.
func (b *SnapshotBuilder) AddTopic(name, datatype string) {
	if i, ok := b.topicIndex[name]; ok {
		if datatype != "" {
			b.snap.Topics[i].Datatype = datatype
		}
		return
	}
	b.topicIndex[name] = len(b.snap.Topics)
	b.snap.Topics = append(b.snap.Topics, model.Topic{Name: name, Datatype: datatype})
}

// AddNamespace records an available namespace of a column topic.
func (b *SnapshotBuilder) AddNamespace(topic, namespace string) {
	seen := b.nsSeen[topic]
	if seen == nil {
		seen = make(map[string]struct{})
		b.nsSeen[topic] = seen
	}
	if _, dup := seen[namespace]; dup {
		return
	}
	seen[namespace] = struct{}{}
	b.snap.NamespacesByTopic[topic] = append(b.snap.NamespacesByTopic[topic], namespace)
}

// AddSceneError records a scene builder error for a topic key.
func (b *SnapshotBuilder) AddSceneError(key, message string) {
	b.snap.SceneErrorsByTopicKey[key] = append(b.snap.SceneErrorsByTopicKey[key], message)
}

// Add applies one record.
func (b *SnapshotBuilder) Add(r Record) error {
	switch r.Kind {
	case "", RecordTopic:
		if r.Name == "" {
			return errors.New("topic record without name")
		}
		b.AddTopic(r.Name, r.Datatype)
		for _, ns := range r.Namespaces {
			if ns != "" {
				b.AddNamespace(r.Name, ns)
			}
		}
	case RecordNamespace:
		if r.Topic == "" || r.Namespace == "" {
			return errors.New("namespace record needs topic and namespace")
		}
		b.AddNamespace(r.Topic, r.Namespace)
	case RecordSceneError:
		key := r.Key
		if key == "" && r.Topic != "" {
			key = nodekey.TopicKey(r.Topic, model.BaseColumn)
		}
		if key == "" || r.Message == "" {
			return errors.New("scene_error record needs key or topic, and message")
		}
		b.AddSceneError(key, r.Message)
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}

// Snapshot returns the accumulated snapshot.
func (b *SnapshotBuilder) Snapshot() *model.SourceSnapshot {
	return b.snap
}

// ParseSnapshot parses JSONL snapshot content. Malformed or invalid lines
// are skipped with a warning; read errors abort.
func ParseSnapshot(r io.Reader, opts ParseOptions) (*model.SourceSnapshot, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	warn := opts.WarningHandler
	if warn == nil {
		warn = defaultWarn
	}

	reader := bufio.NewReaderSize(r, maxCapacity)
	b := NewSnapshotBuilder()
	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading topic snapshot at line %d: %w", lineNum, err)
		}
		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}
		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}
		if err := b.Add(rec); err != nil {
			warn(fmt.Sprintf("skipping invalid record on line %d: %v", lineNum, err))
		}
	}
	return b.Snapshot(), nil
}

// WriteSnapshot writes snap as JSONL: topics with inline namespaces first,
// then namespaces of topics not listed, then scene errors. Output is
// deterministic for a given snapshot.
func WriteSnapshot(w io.Writer, snap *model.SourceSnapshot) error {
	enc := json.NewEncoder(w)
	listed := make(map[string]struct{}, len(snap.Topics))
	for _, t := range snap.Topics {
		listed[t.Name] = struct{}{}
		rec := Record{Kind: RecordTopic, Name: t.Name, Datatype: t.Datatype, Namespaces: snap.NamespacesByTopic[t.Name]}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	for _, topic := range slices.Sorted(maps.Keys(snap.NamespacesByTopic)) {
		if _, ok := listed[topic]; ok {
			continue
		}
		for _, ns := range snap.NamespacesByTopic[topic] {
			if err := enc.Encode(Record{Kind: RecordNamespace, Topic: topic, Namespace: ns}); err != nil {
				return err
			}
		}
	}
	for _, key := range slices.Sorted(maps.Keys(snap.SceneErrorsByTopicKey)) {
		for _, msg := range snap.SceneErrorsByTopicKey[key] {
			if err := enc.Encode(Record{Kind: RecordSceneError, Key: key, Message: msg}); err != nil {
				return err
			}
		}
	}
	return nil
}
