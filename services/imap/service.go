package imap

import (
	"context"
	"time"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/logger"
	"github.com/briefkasten-app/briefkasten/services/events"
)

// syncService is the IMAP synchronization engine. It owns no long-lived
// connections: every operation opens a scoped session and closes it on exit.
type syncService struct {
	log          logger.Logger
	repositories *interfaces.Repositories
	sessions     *sessionManager
	resolver     *folderResolver
	registry     *syncRegistry
	publisher    events.Publisher
}

func NewSyncService(log logger.Logger, repositories *interfaces.Repositories, publisher events.Publisher, imapTimeout time.Duration) interfaces.SyncService {
	if imapTimeout <= 0 {
		imapTimeout = 60 * time.Second
	}
	return &syncService{
		log:          log,
		repositories: repositories,
		sessions:     newSessionManager(imapTimeout),
		resolver:     newFolderResolver(DefaultCanonicalFolders()),
		registry:     newSyncRegistry(),
		publisher:    publisher,
	}
}

// Status reports the last known state of one account, combining the stored
// row with the in-memory in-flight flag.
func (s *syncService) Status(accountID string) (*interfaces.AccountSyncStatus, error) {
	account, err := s.repositories.AccountRepository.GetByID(context.Background(), accountID)
	if err != nil {
		return nil, err
	}

	return &interfaces.AccountSyncStatus{
		AccountID:        account.ID,
		ConnectionStatus: account.ConnectionStatus,
		SyncInProgress:   s.registry.active(accountID),
		LastSyncedAt:     account.LastSyncedAt,
		LastError:        account.ErrorMessage,
	}, nil
}
