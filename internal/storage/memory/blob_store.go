package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// BlobStore stores raw artifacts in memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject persists the content and returns a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), content...)
	return fmt.Sprintf("memory://%s", path), nil
}

// GetObject returns stored content by path.
func (s *BlobStore) GetObject(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.data[path]
	if !ok {
		return nil, leads.ErrNotFound
	}
	return append([]byte(nil), content...), nil
}
