package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/briefkasten-app/briefkasten/internal/enum"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

// Account is one IMAP mailbox credential set. The credential is stored
// opaque; encryption at rest is the UI process's secure store concern.
type Account struct {
	ID          string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	DisplayName string             `gorm:"column:display_name;type:varchar(255)" json:"displayName"`
	Email       string             `gorm:"column:email;type:varchar(255);index" json:"email"`
	Provider    enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	// IMAP configuration
	ImapServer   string             `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int                `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapUsername string             `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPassword string             `gorm:"column:imap_password;type:varchar(255);not null" json:"-"`
	ImapSecurity enum.EmailSecurity `gorm:"column:imap_security;type:varchar(20);not null;default:tls" json:"imapSecurity"`
	// Sync state. LastSyncUID is a derived mirror of the per-folder cursors,
	// kept for the UI; the authoritative cursors live in FolderSyncState.
	LastSyncUID  uint32 `gorm:"column:last_sync_uid;not null;default:0" json:"lastSyncUid"`
	StorageUsed  int64  `gorm:"column:storage_used;not null;default:0" json:"storageUsed"`
	StorageTotal int64  `gorm:"column:storage_total;not null;default:0" json:"storageTotal"`
	// Status information
	ConnectionStatus enum.ConnectionStatus `gorm:"column:connection_status;type:varchar(50)" json:"connectionStatus"`
	ErrorMessage     string                `gorm:"column:error_message;type:text" json:"errorMessage"`
	LastSyncedAt     *time.Time            `gorm:"column:last_synced_at;type:timestamp" json:"lastSyncedAt"`
	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	return nil
}
