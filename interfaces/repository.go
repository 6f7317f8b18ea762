package interfaces

import (
	"context"
	"time"

	"github.com/briefkasten-app/briefkasten/internal/enum"
	"github.com/briefkasten-app/briefkasten/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetAll(ctx context.Context) ([]*models.Account, error)
	Delete(ctx context.Context, id string) error

	UpdateConnectionStatus(ctx context.Context, id string, status enum.ConnectionStatus, errorMessage string) error
	UpdateSyncState(ctx context.Context, id string, lastSyncUID uint32, syncedAt time.Time) error
	UpdateQuota(ctx context.Context, id string, used, total int64) error
}

type EmailRepository interface {
	Upsert(ctx context.Context, email *models.Email) error
	GetByUID(ctx context.Context, accountID, folder string, uid uint32) (*models.Email, error)
	ListByAccount(ctx context.Context, accountID string, folder string, limit, offset int) ([]*models.Email, error)
	GetUIDsByFolder(ctx context.Context, accountID, folder string) ([]uint32, error)
	GetMaxUIDForFolder(ctx context.Context, accountID, folder string) (uint32, error)
	DeleteByUIDs(ctx context.Context, accountID, folder string, uids []uint32) error
	UpdateFlags(ctx context.Context, accountID, folder string, uid uint32, isRead, isFlagged bool, rawFlags []string) error
	MigrateFolder(ctx context.Context, accountID, oldFolder, newFolder string) error
	ClearSmartCategory(ctx context.Context, categoryName string) error
	RenameSmartCategory(ctx context.Context, oldName, newName string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

type CategoryRepository interface {
	GetAll(ctx context.Context) ([]*models.Category, error)
	GetByName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	// EnsureFolderCategory registers name as a folder-typed category,
	// correcting the type when a custom category with that name exists.
	EnsureFolderCategory(ctx context.Context, name string) error
	// Rename moves the category and every email referencing it. Renaming
	// onto an existing category merges the two.
	Rename(ctx context.Context, oldName, newName string) error
	// Delete removes the category and clears smart_category on its emails.
	Delete(ctx context.Context, name string) error
}

type FolderSyncStateRepository interface {
	Get(ctx context.Context, accountID, folder string) (*models.FolderSyncState, error)
	GetAllForAccount(ctx context.Context, accountID string) ([]*models.FolderSyncState, error)
	// Save upserts the cursor. The stored LastUID never moves backwards.
	Save(ctx context.Context, accountID, folder string, lastUID uint32, syncedAt time.Time) error
	DeleteByAccount(ctx context.Context, accountID string) error
}

type Repositories struct {
	AccountRepository         AccountRepository
	EmailRepository           EmailRepository
	CategoryRepository        CategoryRepository
	FolderSyncStateRepository FolderSyncStateRepository
}
