package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Document is one record of the document store; Data holds its JSON fields.
type Document struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Collection string         `gorm:"size:100;not null;index" json:"collection"`
	Data       datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}
