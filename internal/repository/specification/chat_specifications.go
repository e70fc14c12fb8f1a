package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByProjectID struct {
	ProjectID uuid.UUID
}

func (s ByProjectID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("project_id = ?", s.ProjectID)
}

type ByPermission struct {
	Permission string
}

func (s ByPermission) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("permission = ?", s.Permission)
}

// SharedWithUser filters conversations that have a share row for the user.
type SharedWithUser struct {
	UserID uuid.UUID
}

func (s SharedWithUser) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(
		"id IN (?)",
		db.Session(&gorm.Session{NewDB: true}).
			Table("conversation_shares").
			Select("conversation_id").
			Where("user_id = ? AND deleted_at IS NULL", s.UserID),
	)
}
