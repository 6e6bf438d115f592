// Package filestore keeps the portal session slots in a JSON file readable
// only by the current user.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	auth "github.com/goliatone/go-portal-auth"
)

const (
	fileMode = 0o600
	dirMode  = 0o700

	// corruptSuffix names the copy kept of a file that no longer decodes.
	corruptSuffix = ".corrupt"
)

// Store is a file backed auth.TokenStore. Every write rewrites the whole
// file through a temp file and a rename. Namespaces share one file. A file
// that does not decode is renamed to <path>.corrupt and the store starts
// empty.
type Store struct {
	path      string
	namespace string
	mu        sync.Mutex
}

var _ auth.TokenStore = (*Store)(nil)

type document map[string]map[string]string

// New returns a store persisting to path under namespace.
func New(path, namespace string) *Store {
	if namespace == "" {
		namespace = "default"
	}
	return &Store{path: path, namespace: namespace}
}

// DefaultPath returns <user config dir>/portal/session.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "portal", "session.json"), nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get implements auth.TokenStore.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[s.namespace][key]
	return v, ok, nil
}

// Set implements auth.TokenStore.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc[s.namespace] == nil {
		doc[s.namespace] = map[string]string{}
	}
	doc[s.namespace][key] = value
	return s.write(doc)
}

// Remove implements auth.TokenStore.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	slots, ok := doc[s.namespace]
	if !ok {
		return nil
	}
	if _, ok := slots[key]; !ok {
		return nil
	}
	delete(slots, key)
	if len(slots) == 0 {
		delete(doc, s.namespace)
	}
	return s.write(doc)
}

func (s *Store) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	doc := document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		if rerr := os.Rename(s.path, s.path+corruptSuffix); rerr != nil {
			return nil, fmt.Errorf("move aside undecodable session file %s: %w", s.path, rerr)
		}
		return document{}, nil
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
