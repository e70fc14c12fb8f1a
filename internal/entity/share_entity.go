package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConversationShare struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	UserId         uuid.UUID
	Permission     string // constant.SharePermissionRead | constant.SharePermissionWrite
	CreatedAt      time.Time
}

type Project struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	Name          string
	Collaborative bool // project-level write grant for all members
	CreatedAt     time.Time
}

type ProjectMember struct {
	Id        uuid.UUID
	ProjectId uuid.UUID
	UserId    uuid.UUID
	CreatedAt time.Time
}
