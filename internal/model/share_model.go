package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationShare struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID      `gorm:"type:uuid;not null;index:idx_share_conversation_user,unique"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index:idx_share_conversation_user,unique"`
	Permission     string         `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (ConversationShare) TableName() string {
	return "conversation_shares"
}

type Project struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId        uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name          string         `gorm:"type:text;not null"`
	Collaborative bool           `gorm:"not null;default:false"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (Project) TableName() string {
	return "projects"
}

type ProjectMember struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index:idx_project_member,unique"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index:idx_project_member,unique"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}
