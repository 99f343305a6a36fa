package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects on the local filesystem under dir. The server
// exposes dir at publicURL.
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore returns a filesystem-backed Store.
func NewLocalStore(dir, publicURL string) *LocalStore {
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}
}

// Dir is the directory objects are written to.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *LocalStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, body, 0o600); err != nil {
		return "", err
	}
	return s.publicURL + "/" + key, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
