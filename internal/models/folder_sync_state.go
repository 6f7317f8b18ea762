package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/briefkasten-app/briefkasten/internal/utils"
)

// FolderSyncState is the per-(account, folder) incremental sync cursor.
// LastUID advances monotonically and only after a batch has been committed.
type FolderSyncState struct {
	ID        string    `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string    `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_folder_sync_account_folder;index;not null"`
	Folder    string    `gorm:"column:folder;type:varchar(255);uniqueIndex:idx_folder_sync_account_folder;not null"`
	LastUID   uint32    `gorm:"column:last_uid;not null"`
	LastSync  time.Time `gorm:"column:last_sync;type:timestamp;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (FolderSyncState) TableName() string {
	return "folder_sync_states"
}

func (s *FolderSyncState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("fsync", 16)
	}
	return nil
}
