package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	ProjectId      *uuid.UUID
	Title          string
	Model          string
	SystemPrompt   string
	Style          string
	Visibility     string // constant.VisibilityPrivate | constant.VisibilityShared
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
