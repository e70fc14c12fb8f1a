package chat

import (
	"onbrand-chat-be/pkg/chat/assembler"
	"onbrand-chat-be/pkg/llm"

	"github.com/google/uuid"
)

// Phase is the lifecycle stage of a chat session. Transitions:
//
//	Idle -> Sending -> Streaming -> Finalizing -> Idle
//	                   Streaming -> Cancelling -> Finalizing -> Idle
//
// Send is only accepted in Idle; Cancel only in Streaming.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseCancelling
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseCancelling:
		return "cancelling"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

func (p Phase) CanSend() bool   { return p == PhaseIdle }
func (p Phase) CanCancel() bool { return p == PhaseStreaming }

// Turn tracks one user-send through generation. It lives from the Sending
// transition until the session returns to Idle.
type Turn struct {
	Id            uuid.UUID
	UserMessageId uuid.UUID
	Assembler     *assembler.Assembler
	Handle        llm.StreamHandle
	Cancelled     bool
}

func NewTurn(userMessageId uuid.UUID) *Turn {
	return &Turn{
		Id:            uuid.New(),
		UserMessageId: userMessageId,
		Assembler:     assembler.New(),
	}
}
