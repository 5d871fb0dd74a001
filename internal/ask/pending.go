package ask

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PendingQuery is the retry-eligible context kept after a generated statement
// failed at execution: enough to invoke the translator in repair mode.
type PendingQuery struct {
	QueryID    string
	Question   string
	SQL        string
	Error      string
	SchemaText string
}

// PendingStore is a mutex-guarded mapping of query id to pending entry. It is
// injected into the Service rather than living as a package global. Concurrent
// writers to the same id race last-write-wins; acceptable for the interactive,
// low-concurrency usage this serves, and not linearizable across identical ids.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]PendingQuery
}

func NewPendingStore() *PendingStore {
	return &PendingStore{entries: make(map[string]PendingQuery)}
}

func (s *PendingStore) Get(queryID string) (PendingQuery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[queryID]
	return entry, ok
}

// Put creates or overwrites the entry for its query id.
func (s *PendingStore) Put(entry PendingQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.QueryID] = entry
}

func (s *PendingStore) Delete(queryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, queryID)
}

func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func newQueryID() string {
	id := uuid.New()
	return fmt.Sprintf("q_%x", id[:])
}
