package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"rebase/internal/document/model"
	"rebase/pkg/apperror"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1700000000, 0)

func newRepo(t *testing.T, kind model.Kind) (*DocumentRepository, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	repo, err := NewDocumentRepository(filepath.Join(t.TempDir(), kind.Dir), kind, clock)
	require.NoError(t, err)
	return repo, clock
}

func TestNewDocumentRepositoryCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "diffs")

	_, err := NewDocumentRepository(dir, model.Diff, nil)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My Test!", "My_Test"},
		{"Test Diff", "Test_Diff"},
		{"keep-dash_and_underscore", "keep-dash_and_underscore"},
		{"trailing   ", "trailing"},
		{"a/b\\c..d", "abcd"},
		{"ünïcode 2", "ünïcode_2"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), tt.in)
	}
}

func TestSaveAndLoadDiff(t *testing.T) {
	repo, _ := newRepo(t, model.Diff)

	filename, err := repo.Save("Test Diff", json.RawMessage(`{"nodes":[1,2,3]}`))
	require.NoError(t, err)
	assert.Equal(t, "Test_Diff_1700000000.json", filename)
	assert.FileExists(t, filepath.Join(repo.Dir, filename))

	loaded, err := repo.Load(filename)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[1,2,3]}`, string(loaded))

	listed, err := repo.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, filename, listed[0].Filename)
	assert.Equal(t, "Test Diff", listed[0].Name)
	assert.Equal(t, int64(1700000000), listed[0].Created)
	assert.Nil(t, listed[0].Count)
}

func TestSaveWritesDocumentLayout(t *testing.T) {
	repo, _ := newRepo(t, model.Remaps)

	filename, err := repo.Save("Layout", json.RawMessage(`[{"source":1,"target":2}]`))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(repo.Dir, filename))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Layout","created":1700000000,"remaps":[{"source":1,"target":2}]}`, string(data))
}

func TestSaveScenarioFilenamePattern(t *testing.T) {
	repo, err := NewDocumentRepository(t.TempDir(), model.Diff, clockwork.NewRealClock())
	require.NoError(t, err)

	filename, err := repo.Save("My Test!", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^My_Test_\d+\.json$`), filename)

	loaded, err := repo.Load(filename)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(loaded))

	listed, err := repo.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "My Test!", listed[0].Name)
}

func TestSaveRejectsBlankName(t *testing.T) {
	repo, _ := newRepo(t, model.Diff)

	for _, name := range []string{"", "   "} {
		_, err := repo.Save(name, json.RawMessage(`{"foo":"bar"}`))
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.InvalidArgument), "name %q", name)
	}
}

func TestSameNameTwiceProducesTwoFiles(t *testing.T) {
	repo, clock := newRepo(t, model.Diff)

	first, err := repo.Save("Same", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := repo.Save("Same", json.RawMessage(`{"v":2}`))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	listed, err := repo.List()
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second, listed[0].Filename, "newest first")
	assert.Equal(t, first, listed[1].Filename)
}

func TestListEqualTimestampsAppearOnce(t *testing.T) {
	repo, _ := newRepo(t, model.Diff)

	a, err := repo.Save("Alpha", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)
	b, err := repo.Save("Beta", json.RawMessage(`{"v":2}`))
	require.NoError(t, err)

	listed, err := repo.List()
	require.NoError(t, err)
	require.Len(t, listed, 2)
	names := []string{listed[0].Filename, listed[1].Filename}
	assert.ElementsMatch(t, []string{a, b}, names)
}

func TestListSkipsCorruptFiles(t *testing.T) {
	repo, _ := newRepo(t, model.Diff)

	filename, err := repo.Save("Valid", json.RawMessage(`{"ok":true}`))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir, "corrupt.json"), []byte("not-json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir, "array.json"), []byte("[1,2]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir, "readme.txt"), []byte("{}"), 0o644))

	listed, err := repo.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, filename, listed[0].Filename)
}

func TestListDefaultsMissingKeys(t *testing.T) {
	repo, _ := newRepo(t, model.Remaps)

	path := filepath.Join(repo.Dir, "bare.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"remaps":"not-a-list"}`), 0o644))
	mtime := time.Unix(1600000000, 0)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	listed, err := repo.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "bare", listed[0].Name)
	assert.Equal(t, int64(1600000000), listed[0].Created)
	require.NotNil(t, listed[0].Count)
	assert.Equal(t, 0, *listed[0].Count)
}

func TestListRemapsReportsCount(t *testing.T) {
	repo, _ := newRepo(t, model.Remaps)

	_, err := repo.Save("Three", json.RawMessage(`[{"a":1},{"b":2},{"c":3}]`))
	require.NoError(t, err)

	listed, err := repo.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Count)
	assert.Equal(t, 3, *listed[0].Count)
}

func TestLoadMissingPayloadReturnsEmptyValue(t *testing.T) {
	diffs, _ := newRepo(t, model.Diff)
	require.NoError(t, os.WriteFile(filepath.Join(diffs.Dir, "x.json"), []byte(`{"name":"x"}`), 0o644))
	payload, err := diffs.Load("x.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(payload))

	remaps, _ := newRepo(t, model.Remaps)
	require.NoError(t, os.WriteFile(filepath.Join(remaps.Dir, "y.json"), []byte(`{"name":"y"}`), 0o644))
	payload, err = remaps.Load("y.json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(payload))
}

func TestLoadNotFound(t *testing.T) {
	repo, _ := newRepo(t, model.Diff)

	for _, name := range []string{"missing.json", "../escape.json", "sub/dir.json", ""} {
		_, err := repo.Load(name)
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.NotFound), "filename %q", name)
	}
}

func TestDelete(t *testing.T) {
	repo, _ := newRepo(t, model.Diff)

	filename, err := repo.Save("To Delete", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)

	assert.True(t, repo.Delete(filename))
	assert.NoFileExists(t, filepath.Join(repo.Dir, filename))
	assert.False(t, repo.Delete(filename))
	assert.False(t, repo.Delete("nonexistent.json"))
	assert.False(t, repo.Delete("../outside.json"))
}
