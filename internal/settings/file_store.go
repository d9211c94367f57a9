// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// FileStore is a Store backed by a TOML document: one table per section.
// With an empty path it lives in memory only.
type FileStore struct {
	path string

	mu      sync.RWMutex
	data    map[string]map[string]any
	modTime time.Time
	size    int64
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *FileStore {
	return &FileStore{data: make(map[string]map[string]any)}
}

// Open loads the store from path. A missing file yields an empty store
// that will be created on the first write.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: make(map[string]map[string]any)}
	if _, err := s.Reload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path, or "" for an in-memory store.
func (s *FileStore) Path() string {
	return s.path
}

// Reload re-reads the file if its modification time or size changed. It reports
// whether new contents were loaded. On a parse error the previous contents
// are kept.
func (s *FileStore) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return false, fmt.Errorf("stat settings file: %w", err)
	}

	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.modTime) && info.Size() == s.size
	s.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	var raw map[string]any
	if _, err := toml.DecodeFile(s.path, &raw); err != nil {
		return false, fmt.Errorf("decode settings file %s: %w", s.path, err)
	}

	data := make(map[string]map[string]any, len(raw))
	for name, v := range raw {
		table, ok := v.(map[string]any)
		if !ok {
			log.Warn().Str("path", s.path).Str("key", name).Msg("settings: ignoring top-level key outside a section")
			continue
		}
		data[name] = table
	}

	s.mu.Lock()
	s.data = data
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.mu.Unlock()
	return true, nil
}

// Watch polls the file every interval and reloads it on change until ctx
// is done.
func (s *FileStore) Watch(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.Reload()
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				log.Warn().Err(err).Msg("settings: reload failed, keeping previous values")
				continue
			}
			if changed {
				log.Info().Str("path", s.path).Msg("settings: reloaded")
			}
		}
	}
}

func (s *FileStore) lookup(section, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.data[section]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", section, key, ErrNotFound)
	}
	v, ok := table[key]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", section, key, ErrNotFound)
	}
	return v, nil
}

func (s *FileStore) Int32(section, key string) (int32, error) {
	v, err := s.lookup(section, key)
	if err != nil {
		return 0, err
	}

	switch n := v.(type) {
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("%s.%s: %d out of int32 range: %w", section, key, n, ErrWrongType)
		}
		return int32(n), nil
	case int32:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("%s.%s: %v is not an int32: %w", section, key, n, ErrWrongType)
		}
		return int32(n), nil
	default:
		return 0, fmt.Errorf("%s.%s: %T: %w", section, key, v, ErrWrongType)
	}
}

// String returns a string setting. An array of strings is returned
// comma-joined.
func (s *FileStore) String(section, key string) (string, error) {
	v, err := s.lookup(section, key)
	if err != nil {
		return "", err
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			str, ok := e.(string)
			if !ok {
				return "", fmt.Errorf("%s.%s: array element %T: %w", section, key, e, ErrWrongType)
			}
			parts = append(parts, str)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("%s.%s: %T: %w", section, key, v, ErrWrongType)
	}
}

func (s *FileStore) SetInt32(section, key string, v int32) error {
	return s.set(section, key, int64(v))
}

func (s *FileStore) SetString(section, key, v string) error {
	return s.set(section, key, v)
}

// set commits the new value only once it is on disk.
func (s *FileStore) set(section, key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make(map[string]map[string]any, len(s.data)+1)
	for name, table := range s.data {
		data[name] = table
	}
	table := make(map[string]any, len(data[section])+1)
	for k, old := range data[section] {
		table[k] = old
	}
	table[key] = v
	data[section] = table

	if s.path != "" {
		if err := s.saveLocked(data); err != nil {
			return err
		}
	}
	s.data = data
	return nil
}

// saveLocked writes data atomically. Caller holds s.mu.
func (s *FileStore) saveLocked(data map[string]map[string]any) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
		s.size = info.Size()
	}
	return nil
}
