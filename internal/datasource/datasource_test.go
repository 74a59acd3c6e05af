package datasource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/topictree/pkg/model"
)

const sampleJSONL = `{"kind":"topic","name":"/foo","datatype":"visualization_msgs/MarkerArray","namespaces":["cars","peds"]}
{"kind":"topic","name":"/bar","datatype":"sensor_msgs/Image"}
{"kind":"scene_error","topic":"/bar","message":"missing transform"}
`

func sampleSnapshot() *model.SourceSnapshot {
	return &model.SourceSnapshot{
		Topics: []model.Topic{
			{Name: "/foo", Datatype: "visualization_msgs/MarkerArray"},
			{Name: "/bar", Datatype: "sensor_msgs/Image"},
		},
		NamespacesByTopic:     map[string][]string{"/foo": {"cars", "peds"}},
		SceneErrorsByTopicKey: map[string][]string{"t:/bar": {"missing transform"}},
	}
}

func writeFile(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func writeDB(t *testing.T, path string, snap *model.SourceSnapshot, mod time.Time) {
	t.Helper()
	require.NoError(t, WriteSQLite(context.Background(), path, snap))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestSQLite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.db")
	require.NoError(t, WriteSQLite(context.Background(), path, sampleSnapshot()))

	source, err := SourceForPath(path)
	require.NoError(t, err)
	assert.Equal(t, SourceTypeSQLite, source.Type)

	reader, err := NewSQLiteReader(source)
	require.NoError(t, err)
	defer reader.Close()

	n, err := reader.CountTopics()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := reader.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot().Topics, snap.Topics)
	assert.Equal(t, []string{"cars", "peds"}, snap.NamespacesByTopic["/foo"])
	assert.Equal(t, []string{"missing transform"}, snap.SceneErrorsByTopicKey["t:/bar"])
}

func TestNewSQLiteReader_RejectsJSONL(t *testing.T) {
	_, err := NewSQLiteReader(DataSource{Type: SourceTypeJSONL, Path: "x.jsonl"})
	assert.Error(t, err)
}

func TestDiscoverSources_OrderAndValidation(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	writeFile(t, filepath.Join(dir, "topics.jsonl"), sampleJSONL, base.Add(2*time.Minute))
	writeDB(t, filepath.Join(dir, "topics.db"), sampleSnapshot(), base.Add(time.Minute))
	writeFile(t, filepath.Join(dir, "broken.jsonl"), "not json\nnor this\n", base.Add(3*time.Minute))
	writeFile(t, filepath.Join(dir, "topics.jsonl.backup"), sampleJSONL, base.Add(4*time.Minute))

	all, err := DiscoverSources(DiscoveryOptions{SourceDir: dir, ValidateAfterDiscovery: true, IncludeInvalid: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "broken.jsonl", filepath.Base(all[0].Path))
	assert.False(t, all[0].Valid)
	assert.NotEmpty(t, all[0].ValidationError)
	assert.Equal(t, "topics.jsonl", filepath.Base(all[1].Path))
	assert.Equal(t, 2, all[1].TopicCount)

	valid, err := DiscoverSources(DiscoveryOptions{SourceDir: dir, ValidateAfterDiscovery: true})
	require.NoError(t, err)
	require.Len(t, valid, 2)

	best, err := SelectBestSource(valid)
	require.NoError(t, err)
	assert.Equal(t, SourceTypeJSONL, best.Type)
}

func TestSelectBestSource_TiePrefersSQLite(t *testing.T) {
	now := time.Now()
	best, err := SelectBestSource([]DataSource{
		{Type: SourceTypeJSONL, Path: "a.jsonl", Priority: PriorityJSONL, ModTime: now, Valid: true},
		{Type: SourceTypeSQLite, Path: "topics.db", Priority: PrioritySQLite, ModTime: now, Valid: true},
		{Type: SourceTypeJSONL, Path: "new.jsonl", Priority: PriorityJSONL, ModTime: now.Add(time.Second)},
	})
	require.NoError(t, err)
	assert.Equal(t, "topics.db", best.Path)
}

func TestSelectBestSource_NoneValid(t *testing.T) {
	_, err := SelectBestSource([]DataSource{{Path: "x", Valid: false}})
	assert.ErrorIs(t, err, ErrNoValidSource)
}

func TestValidateSource_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	writeFile(t, path, "", time.Now())
	source, err := SourceForPath(path)
	require.NoError(t, err)

	assert.Error(t, ValidateSource(&source))
	assert.False(t, source.Valid)
	assert.Equal(t, "empty file", source.ValidationError)
}

func TestLoadSnapshotFromDir_PicksFreshest(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	writeFile(t, filepath.Join(dir, "topics.jsonl"), `{"name":"/only"}`+"\n", base)
	writeDB(t, filepath.Join(dir, "topics.db"), sampleSnapshot(), base.Add(time.Minute))

	snap, source, err := LoadSnapshotFromDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, SourceTypeSQLite, source.Type)
	assert.Equal(t, 2, snap.TopicCount())
}

func TestLoadSnapshot_RespectsEnvDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "topics.jsonl"), sampleJSONL, time.Now())
	t.Setenv("TT_SOURCE_DIR", dir)

	snap, source, err := LoadSnapshot(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "topics.jsonl"), source.Path)
	assert.Equal(t, 2, snap.TopicCount())
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	jsonl := filepath.Join(dir, "custom.jsonl")
	writeFile(t, jsonl, sampleJSONL, time.Now())

	snap, source, err := LoadPath(context.Background(), jsonl)
	require.NoError(t, err)
	assert.Equal(t, SourceTypeJSONL, source.Type)
	assert.Equal(t, []string{"cars", "peds"}, snap.NamespacesByTopic["/foo"])

	_, _, err = LoadPath(context.Background(), filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)
}

func TestTypeForPath(t *testing.T) {
	assert.Equal(t, SourceTypeSQLite, TypeForPath("/x/topics.DB"))
	assert.Equal(t, SourceTypeSQLite, TypeForPath("t.sqlite3"))
	assert.Equal(t, SourceTypeJSONL, TypeForPath("t.jsonl"))
}

func TestDetectInconsistencies(t *testing.T) {
	a := sampleSnapshot()
	b := &model.SourceSnapshot{
		Topics: []model.Topic{
			{Name: "/foo", Datatype: "visualization_msgs/Marker"},
			{Name: "/baz", Datatype: "sensor_msgs/Image"},
		},
		NamespacesByTopic: map[string][]string{"/foo": {"cars", "trucks"}},
	}

	diff := DetectInconsistencies(a, b, "a", "b", DefaultDiffOptions())
	assert.True(t, diff.HasInconsistencies())
	assert.Equal(t, []string{"/baz"}, diff.MissingInA)
	assert.Equal(t, []string{"/bar"}, diff.MissingInB)
	require.Len(t, diff.DatatypeMismatch, 1)
	assert.Equal(t, "/foo", diff.DatatypeMismatch[0].Topic)
	require.Len(t, diff.NamespaceMismatch, 1)
	assert.Equal(t, []string{"peds"}, diff.NamespaceMismatch[0].OnlyA)
	assert.Equal(t, []string{"trucks"}, diff.NamespaceMismatch[0].OnlyB)

	summary := diff.Summary()
	assert.True(t, strings.HasPrefix(summary, "Inconsistencies found between a and b"))
	assert.Contains(t, summary, "/foo: visualization_msgs/MarkerArray vs visualization_msgs/Marker")

	same := DetectInconsistencies(a, sampleSnapshot(), "a", "b", DefaultDiffOptions())
	assert.False(t, same.HasInconsistencies())
	assert.Equal(t, "Sources match (2 topics each)", same.Summary())
}

func TestCheckAllSourcesConsistent(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(dir, "topics.jsonl"), sampleJSONL, now)
	changed := sampleSnapshot()
	changed.Topics = changed.Topics[:1]
	writeDB(t, filepath.Join(dir, "topics.db"), changed, now)

	sources, err := DiscoverSources(DiscoveryOptions{SourceDir: dir, ValidateAfterDiscovery: true})
	require.NoError(t, err)
	diffs := CheckAllSourcesConsistent(context.Background(), sources, DefaultDiffOptions())
	require.Len(t, diffs, 1)
	assert.Len(t, append(diffs[0].MissingInA, diffs[0].MissingInB...), 1)
}
