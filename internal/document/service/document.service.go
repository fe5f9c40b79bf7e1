package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"rebase/internal/document/model"
	"rebase/internal/document/repository"
	"rebase/internal/metrics"
	"rebase/pkg/apperror"
)

type DocumentService struct {
	Repo *repository.DocumentRepository
}

func NewDocumentService(repo *repository.DocumentRepository) *DocumentService {
	return &DocumentService{Repo: repo}
}

func (s *DocumentService) Kind() model.Kind {
	return s.Repo.Kind
}

// Save validates the request and persists it. The stored name is trimmed.
func (s *DocumentService) Save(name string, payload json.RawMessage) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.Invalid("Name is required")
	}
	if IsEmptyPayload(payload) {
		return "", apperror.Invalid("%s data is required", s.Repo.Kind.Label)
	}

	filename, err := s.Repo.Save(name, payload)
	if err != nil {
		if apperror.KindOf(err) == apperror.InvalidArgument {
			return "", err
		}
		return "", apperror.Wrap(err, "Failed to save "+s.Repo.Kind.Name)
	}
	metrics.DocumentsSaved.WithLabelValues(s.Repo.Kind.Name).Inc()
	return filename, nil
}

func (s *DocumentService) Load(filename string) (json.RawMessage, error) {
	payload, err := s.Repo.Load(filename)
	if err != nil {
		if apperror.Is(err, apperror.NotFound) {
			return nil, apperror.NotFoundf("%s not found", s.Repo.Kind.Label)
		}
		return nil, apperror.Wrap(err, "Failed to load "+s.Repo.Kind.Name)
	}
	return payload, nil
}

func (s *DocumentService) List() ([]model.Entry, error) {
	entries, err := s.Repo.List()
	if err != nil {
		return nil, apperror.Wrap(err, "Failed to list "+s.Repo.Kind.ListKey)
	}
	return entries, nil
}

func (s *DocumentService) Delete(filename string) error {
	if !s.Repo.Delete(filename) {
		return apperror.NotFoundf("%s not found", s.Repo.Kind.Label)
	}
	metrics.DocumentsDeleted.WithLabelValues(s.Repo.Kind.Name).Inc()
	return nil
}

// IsEmptyPayload reports whether payload is missing or a falsy JSON value:
// null, false, 0, "", {} or [].
func IsEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return true
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
