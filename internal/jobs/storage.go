package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrPayloadMissing is returned when a stored payload cannot be found.
var ErrPayloadMissing = errors.New("payload not found")

// Storage persists uploaded payloads.
type Storage interface {
	// Save stores data for a job and returns a reference for Load.
	Save(jobID, filename string, data []byte) (string, error)
	Load(ref string) ([]byte, error)
	// Remove deletes a payload. Removing a missing payload is not an error.
	Remove(ref string) error
}

// LocalFileStorage writes each payload to <dir>/<job id><original extension>.
type LocalFileStorage struct {
	dir string
}

// NewLocalFileStorage creates dir if needed.
func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalFileStorage{dir: dir}, nil
}

// Dir returns the storage directory.
func (l *LocalFileStorage) Dir() string {
	return l.dir
}

func (l *LocalFileStorage) Save(jobID, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	dest := filepath.Join(l.dir, jobID+ext)
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return dest, nil
}

func (l *LocalFileStorage) Load(ref string) ([]byte, error) {
	clean := filepath.Clean(ref)
	if filepath.Dir(clean) != filepath.Clean(l.dir) {
		return nil, fmt.Errorf("%w: %s", ErrPayloadMissing, ref)
	}
	data, err := os.ReadFile(clean) //nolint:gosec // G304: path is confined to the upload dir
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPayloadMissing, ref)
	}
	return data, err
}

func (l *LocalFileStorage) Remove(ref string) error {
	clean := filepath.Clean(ref)
	if filepath.Dir(clean) != filepath.Clean(l.dir) {
		return fmt.Errorf("%w: %s", ErrPayloadMissing, ref)
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// MemoryStorage keeps payloads in memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Save(jobID, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[jobID] = append([]byte(nil), data...)
	return jobID, nil
}

func (m *MemoryStorage) Load(ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPayloadMissing, ref)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) Remove(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, ref)
	return nil
}
