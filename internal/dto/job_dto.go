package dto

import "github.com/google/uuid"

// GenerateTitleMessage is the payload queued for background title generation.
type GenerateTitleMessage struct {
	ConversationId uuid.UUID `json:"conversation_id"`
}
