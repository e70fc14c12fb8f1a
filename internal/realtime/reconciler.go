package realtime

import (
	"context"
	"fmt"
	"sync"

	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// RowFeed is the persistence-backed delivery channel contract.
type RowFeed interface {
	SubscribeMessages(conversationId uuid.UUID, handler func(entity.Message)) (func(), error)
}

// BroadcastChannel is the ephemeral low-latency delivery channel contract.
type BroadcastChannel interface {
	Subscribe(conversationId uuid.UUID, handler func(entity.Message)) (func(), error)
}

// MessageList is the slice of Local Conversation State the reconciler is
// allowed to touch. Implemented by the chat session state; mutation happens
// only on the session loop goroutine.
type MessageList interface {
	Contains(id uuid.UUID) bool
	Append(msg entity.Message)
}

// Reconciler owns both real-time subscriptions for the conversation currently
// open on one session and funnels their deliveries into a single event
// channel. The merge itself (Merge) is applied by the session loop so that
// Local Conversation State is only ever mutated from one goroutine.
type Reconciler struct {
	rowFeed   RowFeed
	broadcast BroadcastChannel
	directory Directory
	logger    logger.ILogger

	events chan Event

	mu             sync.Mutex
	conversationId uuid.UUID
	unsubRow       func()
	unsubBroadcast func()
}

func NewReconciler(rowFeed RowFeed, broadcast BroadcastChannel, directory Directory, log logger.ILogger) *Reconciler {
	return &Reconciler{
		rowFeed:   rowFeed,
		broadcast: broadcast,
		directory: directory,
		logger:    log,
		events:    make(chan Event, 64),
	}
}

// Events delivers candidate messages from both channels, tagged by origin.
func (r *Reconciler) Events() <-chan Event {
	return r.events
}

// Open subscribes to the row-change feed for a conversation, tearing down any
// previous conversation's subscriptions first so deliveries can never leak
// across a conversation switch. The broadcast subscription is opened right
// away only when withBroadcast is set; otherwise it is deferred until the
// collaboration detector asks for it via OpenBroadcast.
func (r *Reconciler) Open(conversationId uuid.UUID, withBroadcast bool) error {
	r.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conversationId = conversationId

	unsubRow, err := r.rowFeed.SubscribeMessages(conversationId, func(msg entity.Message) {
		r.deliver(RowInsertEvent, msg)
	})
	if err != nil {
		r.conversationId = uuid.Nil
		return fmt.Errorf("subscribe row feed: %w", err)
	}
	r.unsubRow = unsubRow

	if withBroadcast {
		if err := r.openBroadcastLocked(); err != nil {
			// Row feed still delivers everything eventually; the fast path
			// is best effort.
			r.logger.Warn("Reconciler", "Broadcast subscribe failed, row feed only", map[string]interface{}{
				"conversation_id": conversationId,
				"error":           err.Error(),
			})
		}
	}

	return nil
}

// OpenBroadcast retroactively opens the deferred broadcast subscription, e.g.
// when a conversation turns out to be collaborative. Idempotent.
func (r *Reconciler) OpenBroadcast() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conversationId == uuid.Nil {
		return fmt.Errorf("no open conversation")
	}
	return r.openBroadcastLocked()
}

func (r *Reconciler) openBroadcastLocked() error {
	if r.unsubBroadcast != nil {
		return nil
	}
	unsub, err := r.broadcast.Subscribe(r.conversationId, func(msg entity.Message) {
		r.deliver(BroadcastEvent, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe broadcast: %w", err)
	}
	r.unsubBroadcast = unsub
	return nil
}

// Close tears down both subscriptions.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsubRow != nil {
		r.unsubRow()
		r.unsubRow = nil
	}
	if r.unsubBroadcast != nil {
		r.unsubBroadcast()
		r.unsubBroadcast = nil
	}
	r.conversationId = uuid.Nil
}

func (r *Reconciler) deliver(kind EventKind, msg entity.Message) {
	r.mu.Lock()
	current := r.conversationId
	r.mu.Unlock()

	// A subscription being torn down may still flush a delivery; drop
	// anything that is not for the open conversation.
	if msg.ConversationId != current {
		return
	}

	select {
	case r.events <- Event{Kind: kind, Message: msg}:
	default:
		r.logger.Warn("Reconciler", "Event buffer full, dropping delivery", map[string]interface{}{
			"conversation_id": msg.ConversationId,
			"message_id":      msg.Id,
			"channel":         kind.String(),
		})
	}
}

// Merge applies one delivered event to Local Conversation State. Returns the
// enriched message and true when it was appended; false when it was discarded
// as the local user's own write or as an already-present duplicate. Safe to
// call for the same message from both channels in either order.
func (r *Reconciler) Merge(ctx context.Context, list MessageList, localUserId uuid.UUID, ev Event) (entity.Message, bool) {
	msg := ev.Message

	// Own writes were applied optimistically by the orchestrator.
	if msg.AuthorUserId != nil && *msg.AuthorUserId == localUserId {
		return entity.Message{}, false
	}

	// Idempotent merge: whichever channel delivered first wins.
	if list.Contains(msg.Id) {
		return entity.Message{}, false
	}

	if msg.AuthorUserId != nil && msg.AuthorName == "" {
		name, email := r.directory.Lookup(ctx, *msg.AuthorUserId)
		msg.AuthorName = name
		if msg.AuthorEmail == "" {
			msg.AuthorEmail = email
		}
	}

	list.Append(msg)
	return msg, true
}
