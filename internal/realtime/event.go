package realtime

import (
	"time"

	"onbrand-chat-be/internal/entity"

	"github.com/google/uuid"
)

// EventKind tags which delivery channel produced an event.
type EventKind int

const (
	RowInsertEvent EventKind = iota + 1
	BroadcastEvent
)

func (k EventKind) String() string {
	switch k {
	case RowInsertEvent:
		return "row_insert"
	case BroadcastEvent:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Event is the tagged union over the two delivery channels. Both carry the
// same normalized Message payload so the merge logic is written once.
type Event struct {
	Kind    EventKind
	Message entity.Message
}

// MessagePayload is the broadcast wire shape: a persisted-Message lookalike
// plus denormalized sender name/email.
type MessagePayload struct {
	Id             uuid.UUID              `json:"id"`
	ConversationId uuid.UUID              `json:"conversation_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	AuthorUserId   *uuid.UUID             `json:"author_user_id,omitempty"`
	AuthorName     string                 `json:"author_name,omitempty"`
	AuthorEmail    string                 `json:"author_email,omitempty"`
	Attachments    []entity.Attachment    `json:"attachments,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

func PayloadFromEntity(msg *entity.Message) MessagePayload {
	return MessagePayload{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		AuthorUserId:   msg.AuthorUserId,
		AuthorName:     msg.AuthorName,
		AuthorEmail:    msg.AuthorEmail,
		Attachments:    msg.Attachments,
		Metadata:       msg.Metadata,
		CreatedAt:      msg.CreatedAt,
	}
}

func (p MessagePayload) ToEntity() entity.Message {
	return entity.Message{
		Id:             p.Id,
		ConversationId: p.ConversationId,
		Role:           p.Role,
		Content:        p.Content,
		AuthorUserId:   p.AuthorUserId,
		AuthorName:     p.AuthorName,
		AuthorEmail:    p.AuthorEmail,
		Attachments:    p.Attachments,
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
	}
}
