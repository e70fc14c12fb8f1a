package collab

import (
	"context"
	"fmt"
	"sync"

	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Mode classifies a conversation's delivery behavior.
type Mode int

const (
	ModeUnknown Mode = iota // detection in flight
	ModePrivate
	ModeCollaborative
)

func (m Mode) String() string {
	switch m {
	case ModePrivate:
		return "private"
	case ModeCollaborative:
		return "collaborative"
	default:
		return "unknown"
	}
}

// GrantSource answers whether anyone else currently holds write access.
type GrantSource interface {
	CountWriteShares(ctx context.Context, conversationId uuid.UUID) (int64, error)
	ProjectGrantsCollaboration(ctx context.Context, projectId uuid.UUID) (bool, error)
}

// ShareFeed notifies about share grant/revoke changes per conversation.
type ShareFeed interface {
	SubscribeShares(conversationId uuid.UUID, handler func(uuid.UUID)) (func(), error)
}

// Detector tracks, per open conversation, whether any other party has write
// access. It re-evaluates whenever the open conversation changes or a share
// record for it changes, and publishes transitions on Changes.
type Detector struct {
	grants GrantSource
	feed   ShareFeed
	logger logger.ILogger

	changes chan Mode

	mu    sync.Mutex
	conv  *entity.Conversation
	mode  Mode
	unsub func()
}

func NewDetector(grants GrantSource, feed ShareFeed, log logger.ILogger) *Detector {
	return &Detector{
		grants:  grants,
		feed:    feed,
		logger:  log,
		changes: make(chan Mode, 8),
		mode:    ModeUnknown,
	}
}

// Changes delivers every mode transition, including the initial resolution
// out of ModeUnknown.
func (d *Detector) Changes() <-chan Mode {
	return d.changes
}

// Mode returns the current classification of the watched conversation.
func (d *Detector) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Watch starts detection for a conversation, replacing any previous watch.
// The mode is ModeUnknown until the first evaluation completes; the initial
// result and later share-driven transitions arrive on Changes.
func (d *Detector) Watch(ctx context.Context, conv *entity.Conversation) error {
	d.Close()

	d.mu.Lock()
	d.conv = conv
	d.mode = ModeUnknown
	d.mu.Unlock()

	unsub, err := d.feed.SubscribeShares(conv.Id, func(conversationId uuid.UUID) {
		d.evaluate(context.Background())
	})
	if err != nil {
		return fmt.Errorf("subscribe share feed: %w", err)
	}

	d.mu.Lock()
	d.unsub = unsub
	d.mu.Unlock()

	d.evaluate(ctx)
	return nil
}

// Close stops watching. The next Watch call starts from ModeUnknown again.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unsub != nil {
		d.unsub()
		d.unsub = nil
	}
	d.conv = nil
	d.mode = ModeUnknown
}

func (d *Detector) evaluate(ctx context.Context) {
	d.mu.Lock()
	conv := d.conv
	d.mu.Unlock()
	if conv == nil {
		return
	}

	mode, err := d.classify(ctx, conv)
	if err != nil {
		// Stay conservative: an evaluation failure keeps the previous mode
		// (or ModeUnknown on first run) rather than guessing.
		d.logger.Warn("CollabDetector", "Evaluation failed", map[string]interface{}{
			"conversation_id": conv.Id,
			"error":           err.Error(),
		})
		return
	}

	d.mu.Lock()
	changed := d.mode != mode
	d.mode = mode
	d.mu.Unlock()

	if changed {
		select {
		case d.changes <- mode:
		default:
			d.logger.Warn("CollabDetector", "Change buffer full, dropping transition", map[string]interface{}{
				"conversation_id": conv.Id,
				"mode":            mode.String(),
			})
		}
	}
}

func (d *Detector) classify(ctx context.Context, conv *entity.Conversation) (Mode, error) {
	writeShares, err := d.grants.CountWriteShares(ctx, conv.Id)
	if err != nil {
		return ModeUnknown, err
	}
	if writeShares > 0 {
		return ModeCollaborative, nil
	}

	if conv.ProjectId != nil {
		collaborative, err := d.grants.ProjectGrantsCollaboration(ctx, *conv.ProjectId)
		if err != nil {
			return ModeUnknown, err
		}
		if collaborative {
			return ModeCollaborative, nil
		}
	}

	return ModePrivate, nil
}
