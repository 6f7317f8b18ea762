package interfaces

import (
	"context"
	"time"

	"github.com/briefkasten-app/briefkasten/internal/enum"
)

// SyncResult summarizes one sync pass over a single account.
type SyncResult struct {
	Success      bool   `json:"success"`
	EmailsSynced int    `json:"emailsSynced"`
	Error        string `json:"error,omitempty"`
}

// AccountSyncStatus is the last observed state of an account, served to the UI.
type AccountSyncStatus struct {
	AccountID        string                `json:"accountId"`
	ConnectionStatus enum.ConnectionStatus `json:"connectionStatus"`
	SyncInProgress   bool                  `json:"syncInProgress"`
	LastSyncedAt     *time.Time            `json:"lastSyncedAt"`
	LastError        string                `json:"lastError,omitempty"`
}

type SyncService interface {
	// SyncAccount runs one incremental sync pass. A second call for the same
	// account while one is in flight returns ErrSyncInProgress.
	SyncAccount(ctx context.Context, accountID string) (*SyncResult, error)
	SyncAll(ctx context.Context) map[string]*SyncResult
	TestConnection(ctx context.Context, accountID string) error

	SetFlag(ctx context.Context, accountID, folder string, uid uint32, flag enum.EmailFlag, value bool) error
	DeleteEmail(ctx context.Context, accountID, folder string, uid uint32) error

	Status(accountID string) (*AccountSyncStatus, error)
}
