// Package prompt owns the mutable classification prompt: a single
// process-wide string loaded from a JSON file at startup and persisted
// synchronously on every change. A valid prompt is always available —
// if nothing was ever saved, or the file is unreadable, the compiled-in
// default applies.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrEmptyPrompt is returned by Set when the submitted prompt is empty
// after trimming whitespace.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// FileName is the prompt file's name inside the data directory.
const FileName = "prompt.json"

// promptFile is the on-disk document: exactly one field.
type promptFile struct {
	Prompt string `json:"prompt"`
}

// Store holds the current prompt and its backing file. All methods are
// safe for concurrent use; the mutex spans the full read-modify-persist
// sequence so concurrent writers serialize cleanly.
type Store struct {
	mu      sync.RWMutex
	path    string
	current string
	logger  *slog.Logger
}

// Open creates a Store backed by <dataDir>/prompt.json and loads any
// previously saved prompt. Load failures (missing file, malformed JSON,
// missing field) are deliberate non-errors: the store falls back to the
// default prompt and the service starts anyway. Availability over
// strictness — a corrupt prompt file must not take classification down.
func Open(dataDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:    filepath.Join(dataDir, FileName),
		current: Default,
		logger:  logger,
	}

	if err := s.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("prompt file unreadable, using default prompt", "path", s.path, "error", err)
		}
	}

	return s
}

// load reads the prompt file into memory. It returns an error rather
// than silently falling back so the default-on-error policy stays
// visible at the call site in Open.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var pf promptFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if strings.TrimSpace(pf.Prompt) == "" {
		return fmt.Errorf("parse %s: missing prompt field", s.path)
	}

	s.mu.Lock()
	s.current = pf.Prompt
	s.mu.Unlock()
	return nil
}

// Get returns the current prompt. Never fails.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set validates, stores, and persists a new prompt, returning the value
// as stored (trimmed). An empty or whitespace-only prompt is rejected
// with ErrEmptyPrompt before any state changes. A persistence failure is
// returned to the caller — they asked for a durable change and should
// know it didn't stick — and leaves both memory and file untouched.
func (s *Store) Set(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "", ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(trimmed); err != nil {
		return "", err
	}
	s.current = trimmed
	return trimmed, nil
}

// Reset restores the compiled-in default prompt. The in-memory reset
// always takes effect; a persistence failure is logged and returned but
// subsequent Get calls already see the default.
func (s *Store) Reset() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Default
	if err := s.persist(Default); err != nil {
		s.logger.Warn("prompt reset not persisted", "path", s.path, "error", err)
		return Default, err
	}
	return Default, nil
}

// persist writes the prompt file, creating the data directory on demand.
// File permissions are restrictive since operators may embed sensitive
// wording in custom prompts. Caller must hold s.mu.
func (s *Store) persist(p string) error {
	data, err := json.MarshalIndent(promptFile{Prompt: p}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prompt: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
