// Package browser lists evaluation folders and serves the files inside them.
package browser

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rebase/pkg/apperror"
)

// DefaultKind is used when a request does not name a folder type.
const DefaultKind = "evals"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

type Image struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Browser reads <Root>/<kind>/<folder>/<filename>. Every path segment is a
// single element, and symlinks that leave Root are refused.
type Browser struct {
	Root string
	// ViewPath is the route that serves ReadFile, used to build image URLs.
	ViewPath string
}

func New(root, viewPath string) *Browser {
	return &Browser{Root: root, ViewPath: viewPath}
}

// ListFolders returns the sorted folder names under kind. A missing kind
// directory is created and reported as empty.
func (b *Browser) ListFolders(kind string) ([]string, error) {
	base, err := b.resolve(kind)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, apperror.Wrap(err, "Failed to create data folder")
		}
		return []string{}, nil
	}
	if err != nil {
		return nil, apperror.Wrap(err, "Failed to list folders")
	}

	folders := make([]string, 0, len(entries))
	for _, e := range entries {
		if isDir(filepath.Join(base, e.Name())) {
			folders = append(folders, e.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// ListFiles returns the images in folder, sorted by filename.
func (b *Browser) ListFiles(kind, folder string) ([]Image, error) {
	if folder == "" {
		return []Image{}, nil
	}
	target, err := b.resolve(kind, folder)
	if err != nil {
		return nil, err
	}
	if !isDir(target) {
		return nil, apperror.NotFoundf("Folder '%s' not found", folder)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, apperror.Wrap(err, "Failed to list images")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !IsImage(e.Name()) {
			continue
		}
		if info, err := os.Stat(filepath.Join(target, e.Name())); err == nil && info.Mode().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	images := make([]Image, 0, len(names))
	for _, name := range names {
		images = append(images, Image{Filename: name, URL: b.ViewURL(kind, folder, name)})
	}
	return images, nil
}

// ReadFile returns the bytes of a file and the content type to serve it with.
func (b *Browser) ReadFile(kind, folder, filename string) ([]byte, string, error) {
	if folder == "" || filename == "" {
		return nil, "", apperror.Invalid("Missing required parameters")
	}
	path, err := b.resolve(kind, folder, filename)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || isDir(path) {
		return nil, "", apperror.NotFoundf("File not found: %s", filename)
	}
	if err != nil {
		return nil, "", apperror.Wrap(err, "Failed to read file")
	}
	return data, ContentType(filename), nil
}

// ViewURL builds the retrieval URL of a file. Parameters keep a fixed order.
func (b *Browser) ViewURL(kind, folder, filename string) string {
	return fmt.Sprintf("%s?type=%s&folder=%s&filename=%s",
		b.ViewPath, url.QueryEscape(kind), url.QueryEscape(folder), url.QueryEscape(filename))
}

func IsImage(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ContentType is image/<ext> for supported images and application/json otherwise.
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if imageExtensions[ext] {
		return "image/" + ext[1:]
	}
	return "application/json"
}

// resolve joins elems under Root and follows symlinks on the way, so a link
// pointing outside Root is rejected like a ".." segment.
func (b *Browser) resolve(elems ...string) (string, error) {
	for _, e := range elems {
		if !validElement(e) {
			return "", apperror.Invalid("Invalid path: %q", e)
		}
	}
	root, err := filepath.Abs(b.Root)
	if err != nil {
		return "", apperror.Wrap(err, "Failed to resolve data root")
	}
	realRoot := evalExisting(root)
	path := evalExisting(filepath.Join(append([]string{root}, elems...)...))
	rel, err := filepath.Rel(realRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperror.Invalid("Invalid path")
	}
	return path, nil
}

// evalExisting resolves symlinks in the longest resolvable prefix of path and
// appends the remainder unchanged.
func evalExisting(path string) string {
	p, rest := path, ""
	for {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path
		}
		rest = filepath.Join(filepath.Base(p), rest)
		p = parent
	}
}

func validElement(e string) bool {
	if e == "" || e == "." || e == ".." {
		return false
	}
	return !strings.ContainsAny(e, "/\\\x00")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
