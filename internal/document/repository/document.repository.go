package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"rebase/internal/document/model"
	"rebase/pkg/apperror"
	"rebase/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// DocumentRepository stores one kind of named document as JSON files in a
// single directory. The directory is the whole store: nothing is cached.
type DocumentRepository struct {
	Dir   string
	Kind  model.Kind
	clock clockwork.Clock
}

// NewDocumentRepository creates dir (and its parents) if needed.
func NewDocumentRepository(dir string, kind model.Kind, clock clockwork.Clock) (*DocumentRepository, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s store directory: %w", kind.Name, err)
	}
	return &DocumentRepository{Dir: dir, Kind: kind, clock: clock}, nil
}

// SafeName keeps letters, digits, spaces, hyphens and underscores, drops
// trailing spaces and turns the remaining spaces into underscores.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimRight(b.String(), " ")
	return strings.ReplaceAll(safe, " ", "_")
}

// Filename derives the durable key of a document saved at created.
func Filename(name string, created int64) string {
	return SafeName(name) + "_" + strconv.FormatInt(created, 10) + ".json"
}

// Save writes {name, created, <field>: payload} and returns the filename.
// Two saves of the same name in the same second share a filename; the later
// one wins.
func (r *DocumentRepository) Save(name string, payload json.RawMessage) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperror.Invalid("Name cannot be empty")
	}

	created := r.clock.Now().Unix()
	filename := Filename(name, created)

	doc := map[string]any{
		"name":       name,
		"created":    created,
		r.Kind.Field: payload,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s %q: %w", r.Kind.Name, name, err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return filename, nil
}

// Load returns the payload stored in filename, or the kind's empty value when
// the document has no payload key.
func (r *DocumentRepository) Load(filename string) (json.RawMessage, error) {
	path, ok := r.path(filename)
	if !ok {
		return nil, r.notFound(filename)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, r.notFound(filename)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	payload, ok := doc[r.Kind.Field]
	if !ok {
		return r.Kind.Empty, nil
	}
	return payload, nil
}

// List returns every readable document, newest first. Files that cannot be
// read or decoded are logged and left out, including files removed while the
// listing runs.
func (r *DocumentRepository) List() ([]model.Entry, error) {
	matches, err := filepath.Glob(filepath.Join(r.Dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s store: %w", r.Kind.Name, err)
	}

	entries := make([]model.Entry, 0, len(matches))
	for _, path := range matches {
		entry, err := r.readEntry(path)
		if err != nil {
			logger.Sugar.Warnf("Could not read %s file %s: %v", r.Kind.Name, path, err)
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Created > entries[j].Created
	})
	return entries, nil
}

// Delete removes filename. It reports false when the file does not exist or
// cannot be removed.
func (r *DocumentRepository) Delete(filename string) bool {
	path, ok := r.path(filename)
	if !ok {
		return false
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Sugar.Errorf("Failed to delete %s file %s: %v", r.Kind.Name, filename, err)
		}
		return false
	}
	return true
}

func (r *DocumentRepository) readEntry(path string) (model.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Entry{}, err
	}
	if info.IsDir() {
		return model.Entry{}, fmt.Errorf("is a directory")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Entry{}, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Entry{}, err
	}

	base := filepath.Base(path)
	entry := model.Entry{
		Filename: base,
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		Created:  info.ModTime().Unix(),
	}
	if raw, ok := doc["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			entry.Name = name
		}
	}
	if raw, ok := doc["created"]; ok {
		var created float64
		if err := json.Unmarshal(raw, &created); err == nil {
			entry.Created = int64(created)
		}
	}
	if r.Kind.Counted {
		var items []json.RawMessage
		count := 0
		if err := json.Unmarshal(doc[r.Kind.Field], &items); err == nil {
			count = len(items)
		}
		entry.Count = &count
	}
	return entry, nil
}

// path resolves filename inside the store. Only bare .json names are valid.
func (r *DocumentRepository) path(filename string) (string, bool) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", false
	}
	if strings.ContainsAny(filename, `/\`) || !strings.HasSuffix(filename, ".json") {
		return "", false
	}
	return filepath.Join(r.Dir, filename), true
}

func (r *DocumentRepository) notFound(filename string) error {
	return apperror.NotFoundf("%s not found: %s", r.Kind.Label, filename)
}
