package imap

import (
	"sync"

	er "github.com/briefkasten-app/briefkasten/internal/errors"
)

// syncRegistry tracks which accounts have a sync pass in flight. One pass
// per account at a time; overlapping passes would race on the cursor.
type syncRegistry struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

func newSyncRegistry() *syncRegistry {
	return &syncRegistry{inFlight: make(map[string]bool)}
}

func (r *syncRegistry) begin(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight[accountID] {
		return er.ErrSyncInProgress
	}
	r.inFlight[accountID] = true
	return nil
}

func (r *syncRegistry) end(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inFlight, accountID)
}

func (r *syncRegistry) active(accountID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inFlight[accountID]
}
