package constant

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"

	VisibilityPrivate = "private"
	VisibilityShared  = "shared"

	SharePermissionRead  = "read"
	SharePermissionWrite = "write"

	AttachmentKindImage    = "image"
	AttachmentKindDocument = "document"

	// Suffix appended to a cancelled turn's partial output before it is
	// persisted as a genuine assistant message.
	GenerationStoppedSuffix = "\n\n*(Generation stopped)*"

	// Prefix for assistant-role messages that surface a transport failure.
	GenerationFailedPrefix = "⚠️ "

	// Fallback sender label when a directory lookup cannot be resolved.
	UnknownSenderLabel = "Teammate"
)
