package mapper

import (
	"encoding/json"
	"time"

	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Conversation Mappers

func (m *ChatMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:             c.Id,
		UserId:         c.UserId,
		ProjectId:      c.ProjectId,
		Title:          c.Title,
		Model:          c.Model,
		SystemPrompt:   c.SystemPrompt,
		Style:          c.Style,
		Visibility:     c.Visibility,
		LastActivityAt: c.LastActivityAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      c.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:             c.Id,
		UserId:         c.UserId,
		ProjectId:      c.ProjectId,
		Title:          c.Title,
		Model:          c.Model,
		SystemPrompt:   c.SystemPrompt,
		Style:          c.Style,
		Visibility:     c.Visibility,
		LastActivityAt: c.LastActivityAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var attachments []entity.Attachment
	if len(msg.Attachments) > 0 {
		// Best effort: a malformed column leaves the message text intact.
		_ = json.Unmarshal(msg.Attachments, &attachments)
	}

	var metadata map[string]interface{}
	if len(msg.Metadata) > 0 {
		_ = json.Unmarshal(msg.Metadata, &metadata)
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		Attachments:    attachments,
		AuthorUserId:   msg.AuthorUserId,
		AuthorName:     msg.AuthorName,
		AuthorEmail:    msg.AuthorEmail,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	var attachments datatypes.JSON
	if len(msg.Attachments) > 0 {
		if raw, err := json.Marshal(msg.Attachments); err == nil {
			attachments = raw
		}
	}

	var metadata datatypes.JSON
	if len(msg.Metadata) > 0 {
		if raw, err := json.Marshal(msg.Metadata); err == nil {
			metadata = raw
		}
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		AuthorUserId:   msg.AuthorUserId,
		AuthorName:     msg.AuthorName,
		AuthorEmail:    msg.AuthorEmail,
		Attachments:    attachments,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
	}
}

// Share Mappers

func (m *ChatMapper) ShareToEntity(s *model.ConversationShare) *entity.ConversationShare {
	if s == nil {
		return nil
	}
	return &entity.ConversationShare{
		Id:             s.Id,
		ConversationId: s.ConversationId,
		UserId:         s.UserId,
		Permission:     s.Permission,
		CreatedAt:      s.CreatedAt,
	}
}

func (m *ChatMapper) ShareToModel(s *entity.ConversationShare) *model.ConversationShare {
	if s == nil {
		return nil
	}
	return &model.ConversationShare{
		Id:             s.Id,
		ConversationId: s.ConversationId,
		UserId:         s.UserId,
		Permission:     s.Permission,
		CreatedAt:      s.CreatedAt,
	}
}
