package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

type folderSyncStateRepository struct {
	db *gorm.DB
}

func NewFolderSyncStateRepository(db *gorm.DB) interfaces.FolderSyncStateRepository {
	return &folderSyncStateRepository{db: db}
}

func (r *folderSyncStateRepository) Get(ctx context.Context, accountID, folder string) (*models.FolderSyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.Get")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var state models.FolderSyncState
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ?", accountID, folder).
		First(&state)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get sync state: %w", result.Error)
	}
	return &state, nil
}

func (r *folderSyncStateRepository) GetAllForAccount(ctx context.Context, accountID string) ([]*models.FolderSyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.GetAllForAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var states []*models.FolderSyncState
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Find(&states).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list sync states: %w", err)
	}
	return states, nil
}

// Save upserts the per-folder cursor. The cursor never moves backwards:
// gap-fill fetches below the high-water mark must not reset it.
func (r *folderSyncStateRepository) Save(ctx context.Context, accountID, folder string, lastUID uint32, syncedAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	result := r.db.WithContext(ctx).
		Model(&models.FolderSyncState{}).
		Where("account_id = ? AND folder = ? AND last_uid <= ?", accountID, folder, lastUID).
		Updates(map[string]interface{}{
			"last_uid":   lastUID,
			"last_sync":  syncedAt,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save sync state: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var existing models.FolderSyncState
	lookupErr := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ?", accountID, folder).
		First(&existing).Error
	if lookupErr == nil {
		// Cursor already ahead, nothing to do.
		return nil
	}
	if lookupErr != gorm.ErrRecordNotFound {
		tracing.TraceErr(span, lookupErr)
		return fmt.Errorf("failed to look up sync state: %w", lookupErr)
	}

	state := models.FolderSyncState{
		AccountID: accountID,
		Folder:    folder,
		LastUID:   lastUID,
		LastSync:  syncedAt,
	}
	if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create sync state: %w", err)
	}
	return nil
}

func (r *folderSyncStateRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.DeleteByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.FolderSyncState{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete sync states: %w", result.Error)
	}
	return nil
}
