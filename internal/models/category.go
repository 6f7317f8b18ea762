package models

import (
	"time"

	"github.com/briefkasten-app/briefkasten/internal/enum"
)

// Category is a named label, independent of physical folders. Name is the
// primary key: emails reference categories by name in smart_category.
type Category struct {
	Name      string            `gorm:"column:name;type:varchar(255);primaryKey" json:"name"`
	Type      enum.CategoryType `gorm:"column:type;type:varchar(20);not null" json:"type"`
	CreatedAt time.Time         `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Category) TableName() string {
	return "categories"
}
