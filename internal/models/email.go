package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/briefkasten-app/briefkasten/internal/utils"
)

// Email is the locally persisted copy of one remote message. A row is
// uniquely identified by (account_id, folder, uid): IMAP UIDs are only
// unique within a folder, so every UID-keyed lookup must carry the folder.
type Email struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_emails_account_folder_uid;index;not null" json:"accountId"`
	Folder    string `gorm:"column:folder;type:varchar(255);uniqueIndex:idx_emails_account_folder_uid;not null" json:"folder"`
	UID       uint32 `gorm:"column:uid;uniqueIndex:idx_emails_account_folder_uid;not null" json:"uid"`

	// Parsed message metadata
	Sender      string     `gorm:"column:sender;type:varchar(255)" json:"sender"`
	SenderEmail string     `gorm:"column:sender_email;type:varchar(255);index" json:"senderEmail"`
	Subject     string     `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	BodyText    string     `gorm:"column:body_text;type:text" json:"bodyText"`
	BodyHTML    string     `gorm:"column:body_html;type:text" json:"bodyHtml"`
	SentAt      *time.Time `gorm:"column:sent_at;type:timestamp;index" json:"sentAt"`

	// Server flag mirrors
	IsRead    bool           `gorm:"column:is_read;not null;default:false" json:"isRead"`
	IsFlagged bool           `gorm:"column:is_flagged;not null;default:false" json:"isFlagged"`
	RawFlags  pq.StringArray `gorm:"column:raw_flags;type:text[]" json:"-"`

	// Categorization, owned by the external AI collaborator
	SmartCategory *string `gorm:"column:smart_category;type:varchar(255);index" json:"smartCategory"`
	AISummary     string  `gorm:"column:ai_summary;type:text" json:"aiSummary"`
	AIReasoning   string  `gorm:"column:ai_reasoning;type:text" json:"aiReasoning"`
	Confidence    float64 `gorm:"column:confidence;not null;default:0" json:"confidence"`

	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}
