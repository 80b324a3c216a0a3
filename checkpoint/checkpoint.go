// Package checkpoint remembers which source records were migrated, and from what content.
//
// A checkpoint maps (source ID, locale) to the checksum of the raw source record.  When the
// checksum of a freshly fetched record matches, the record is skipped; when a migration fails the
// record's checkpoints are deleted so the next run retries it.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

type Key struct {
	SourceID string
	Locale   string
}

// Store is implemented by every checkpoint backend.  Get reports ok=false for unknown keys.
type Store interface {
	Get(ctx context.Context, key Key) (checksum string, ok bool, err error)
	Put(ctx context.Context, key Key, checksum string) error
	Delete(ctx context.Context, key Key) error
}

// Checksum is the hex SHA-256 of raw.
func Checksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// MemoryStore keeps checkpoints for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	sums map[Key]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sums: map[Key]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, ok := m.sums[key]
	return sum, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key Key, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sums[key] = checksum
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sums, key)
	return nil
}

// Len returns the number of stored checkpoints.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sums)
}
