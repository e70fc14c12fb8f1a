package entity

import (
	"time"

	"github.com/google/uuid"
)

// Attachment is display-only metadata carried with a message. The preview
// payload is not guaranteed to survive a reload; file name and kind are.
type Attachment struct {
	Id       uuid.UUID `json:"id"`
	FileName string    `json:"file_name"`
	Kind     string    `json:"kind"` // constant.AttachmentKindImage | constant.AttachmentKindDocument
	MimeType string    `json:"mime_type"`
	Preview  string    `json:"preview,omitempty"` // data URI or object reference
}

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string
	Content        string
	Attachments    []Attachment
	AuthorUserId   *uuid.UUID // nil for assistant/system messages
	AuthorName     string     // denormalized for collaborative display
	AuthorEmail    string
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}
