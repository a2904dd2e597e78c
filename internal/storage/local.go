package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// localURLPrefix is the URL namespace the local store serves from. Storage
// keys share the same namespace without the leading slash.
const localURLPrefix = "/uploads/"

// LocalStore writes attachment bytes under a directory on local disk.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = "uploads"
	}
	return &LocalStore{dir: dir}
}

// Save writes data under name and returns the logical key and relative URL.
// name may contain one id path segment ("<id>/resume.pdf") for collision
// avoidance between records with identical filenames.
func (s *LocalStore) Save(name string, data []byte) (SaveResult, error) {
	if name == "" {
		return SaveResult{}, errors.New("filename is required")
	}
	rel, err := s.cleanRel(name)
	if err != nil {
		return SaveResult{}, err
	}

	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("create uploads dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return SaveResult{}, fmt.Errorf("write %s: %w", rel, err)
	}

	key := "uploads/" + rel
	return SaveResult{
		StorageKey: key,
		URL:        localURLPrefix + rel,
		Size:       int64(len(data)),
	}, nil
}

// Describe returns the key and URL Save would produce for name, without
// writing anything. Used to negotiate uploads that the caller will POST back
// through the server.
func (s *LocalStore) Describe(name string) (key, url string, err error) {
	rel, err := s.cleanRel(name)
	if err != nil {
		return "", "", err
	}
	return "uploads/" + rel, localURLPrefix + rel, nil
}

// Open returns a reader for the bytes behind key.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	return f, nil
}

// Exists reports whether key currently resolves to a stored file.
func (s *LocalStore) Exists(key string) bool {
	full, err := s.path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Delete removes the file behind key. Returns false without error when the
// file is already gone.
func (s *LocalStore) Delete(key string) (bool, error) {
	full, err := s.path(key)
	if err != nil {
		return false, nil
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// KeyFromURL maps a local URL ("/uploads/x") back to its storage key.
func (s *LocalStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, localURLPrefix) {
		return "", false
	}
	return "uploads/" + strings.TrimPrefix(url, localURLPrefix), true
}

// path maps a storage key to a filesystem path, rejecting traversal.
func (s *LocalStore) path(key string) (string, error) {
	rel := strings.TrimPrefix(key, "uploads/")
	rel, err := s.cleanRel(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(rel)), nil
}

func (s *LocalStore) cleanRel(rel string) (string, error) {
	cleaned := path.Clean("/" + rel)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid storage key %q", rel)
	}
	return cleaned, nil
}
