package dto

import (
	"time"

	"github.com/google/uuid"
)

type GrantShareRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	Permission     string    `json:"permission" validate:"required,oneof=read write"`
}

type GrantShareResponse struct {
	Id uuid.UUID `json:"id"`
}

type RevokeShareRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	UserId         uuid.UUID `json:"user_id" validate:"required"`
}

type ShareResponse struct {
	Id             uuid.UUID `json:"id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	UserId         uuid.UUID `json:"user_id"`
	UserName       string    `json:"user_name,omitempty"`
	UserEmail      string    `json:"user_email,omitempty"`
	Permission     string    `json:"permission"`
	CreatedAt      time.Time `json:"created_at"`
}
