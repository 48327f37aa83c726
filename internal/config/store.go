// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "sync"

// Store holds the live configuration. The file watcher writes it while the
// UI reads it, so access is guarded.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewStore returns a store seeded with cfg, reloading from path.
func NewStore(path string, cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{path: path, cfg: cfg}
}

// Path returns the file the store reloads from.
func (s *Store) Path() string {
	return s.path
}

// Current returns the active configuration. Callers must not modify it.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in cfg. A nil cfg is ignored.
func (s *Store) Replace(cfg *Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Reload re-reads the file. On error the previous configuration stays.
func (s *Store) Reload() (*Config, error) {
	cfg, err := LoadFromPath(s.path)
	if err != nil {
		return nil, err
	}
	s.Replace(cfg)
	return cfg, nil
}
