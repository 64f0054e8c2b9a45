package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/pkg/enums"
)

// Media captures metadata for uploaded objects.
type Media struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	Kind      enums.MediaKind `gorm:"column:kind;type:text;not null"`
	FileName  string          `gorm:"column:file_name;not null"`
	ObjectKey string          `gorm:"column:object_key;not null;unique"`
	MimeType  string          `gorm:"column:mime_type;not null"`
	SizeBytes int64           `gorm:"column:size_bytes;not null"`
	URL       string          `gorm:"column:url;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Media) TableName() string {
	return "media"
}

func (m *Media) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
