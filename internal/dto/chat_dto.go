package dto

import (
	"time"

	"onbrand-chat-be/internal/entity"

	"github.com/google/uuid"
)

// ClientFrame is one inbound websocket frame on a chat session.
type ClientFrame struct {
	Type   string         `json:"type" validate:"required,oneof=open send cancel"`
	Open   *OpenPayload   `json:"open,omitempty"`
	Send   *SendPayload   `json:"send,omitempty"`
	Cancel *CancelPayload `json:"cancel,omitempty"`
}

type OpenPayload struct {
	// Nil opens a fresh conversation on the first send.
	ConversationId *uuid.UUID `json:"conversation_id,omitempty"`
	ProjectId      *uuid.UUID `json:"project_id,omitempty"`
}

type SendPayload struct {
	Content      string              `json:"content" validate:"required"`
	Attachments  []entity.Attachment `json:"attachments,omitempty"`
	Model        string              `json:"model,omitempty"`
	WebSearch    bool                `json:"web_search,omitempty"`
	DeepResearch bool                `json:"deep_research,omitempty"`
	ToolServers  []string            `json:"tool_servers,omitempty"`
}

type CancelPayload struct {
	TurnId uuid.UUID `json:"turn_id"`
}

// ServerFrame is one outbound websocket frame. Exactly one payload is set,
// matching Type.
type ServerFrame struct {
	Type     string           `json:"type"` // state | message | chunk | turn_done | error
	State    *StatePayload    `json:"state,omitempty"`
	Message  *MessageResponse `json:"message,omitempty"`
	Chunk    *ChunkPayload    `json:"chunk,omitempty"`
	TurnDone *TurnDonePayload `json:"turn_done,omitempty"`
	Error    *ErrorPayload    `json:"error,omitempty"`
}

type StatePayload struct {
	ConversationId *uuid.UUID        `json:"conversation_id,omitempty"`
	Phase          string            `json:"phase"`
	Mode           string            `json:"mode"`
	Messages       []MessageResponse `json:"messages,omitempty"`
}

type MessageResponse struct {
	Id             uuid.UUID           `json:"id"`
	ConversationId uuid.UUID           `json:"conversation_id"`
	Role           string              `json:"role"`
	Content        string              `json:"content"`
	Attachments    []entity.Attachment `json:"attachments,omitempty"`
	AuthorUserId   *uuid.UUID          `json:"author_user_id,omitempty"`
	AuthorName     string              `json:"author_name,omitempty"`
	AuthorEmail    string              `json:"author_email,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

type ChunkPayload struct {
	TurnId      uuid.UUID `json:"turn_id"`
	Text        string    `json:"text,omitempty"`
	ActiveTool  string    `json:"active_tool,omitempty"`
	ToolChanged bool      `json:"tool_changed,omitempty"`
}

type TurnDonePayload struct {
	TurnId    uuid.UUID        `json:"turn_id"`
	Cancelled bool             `json:"cancelled"`
	Message   *MessageResponse `json:"message,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func MessageResponseFromEntity(msg entity.Message) MessageResponse {
	return MessageResponse{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		Attachments:    msg.Attachments,
		AuthorUserId:   msg.AuthorUserId,
		AuthorName:     msg.AuthorName,
		AuthorEmail:    msg.AuthorEmail,
		CreatedAt:      msg.CreatedAt,
	}
}
