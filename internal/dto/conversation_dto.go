package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title        string     `json:"title"`
	ProjectId    *uuid.UUID `json:"project_id,omitempty"`
	Model        string     `json:"model,omitempty"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
}

type CreateConversationResponse struct {
	Id uuid.UUID `json:"id"`
}

type UpdateConversationRequest struct {
	Id           uuid.UUID  `json:"id" validate:"required"`
	Title        *string    `json:"title,omitempty"`
	Model        *string    `json:"model,omitempty"`
	SystemPrompt *string    `json:"system_prompt,omitempty"`
	Style        *string    `json:"style,omitempty"`
	ProjectId    *uuid.UUID `json:"project_id,omitempty"` // uuid.Nil detaches from the project
	Visibility   *string    `json:"visibility,omitempty" validate:"omitempty,oneof=private shared"`
}

type UpdateConversationResponse struct {
	Id uuid.UUID `json:"id"`
}

type ConversationResponse struct {
	Id             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	ProjectId      *uuid.UUID `json:"project_id,omitempty"`
	Model          string     `json:"model,omitempty"`
	Visibility     string     `json:"visibility"`
	Shared         bool       `json:"shared"` // true when listed via a share, not ownership
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ShowConversationResponse struct {
	ConversationResponse
	Messages []MessageResponse `json:"messages"`
}
