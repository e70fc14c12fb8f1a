package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Conversation struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index"` // Owner, data isolation boundary
	ProjectId      *uuid.UUID     `gorm:"type:uuid;index"`
	Title          string         `gorm:"type:text;not null"`
	Model          string         `gorm:"type:varchar(100);not null"`
	SystemPrompt   string         `gorm:"type:text"`
	Style          string         `gorm:"type:varchar(100)"`
	Visibility     string         `gorm:"type:varchar(20);not null;default:private"`
	LastActivityAt time.Time      `gorm:"index"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}
