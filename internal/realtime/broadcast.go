package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Broadcaster is the ephemeral, non-persisted delivery channel. A just-sent
// message is published here so other connected parties see it with lower
// latency than the row-change feed. Nothing is replayed: a subscriber only
// sees messages published while it is connected.
type Broadcaster struct {
	rdb    *redis.Client
	logger logger.ILogger
}

func NewBroadcaster(rdb *redis.Client, log logger.ILogger) *Broadcaster {
	return &Broadcaster{rdb: rdb, logger: log}
}

func broadcastChannel(conversationId uuid.UUID) string {
	return fmt.Sprintf("conversation:%s:events", conversationId)
}

// Publish fans a message out to every subscriber of its conversation.
func (b *Broadcaster) Publish(ctx context.Context, msg *entity.Message) error {
	if b.rdb == nil {
		return nil // broadcast is best-effort; no redis means row feed only
	}

	data, err := json.Marshal(PayloadFromEntity(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}

	if err := b.rdb.Publish(ctx, broadcastChannel(msg.ConversationId), data).Err(); err != nil {
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}
	return nil
}

// Subscribe delivers broadcast messages for one conversation until the
// returned unsubscribe function is called. Redis reconnects under the hood;
// the duplicate-identity check in the reconciler makes redelivery safe.
func (b *Broadcaster) Subscribe(conversationId uuid.UUID, handler func(entity.Message)) (func(), error) {
	if b.rdb == nil {
		return func() {}, nil
	}

	pubsub := b.rdb.Subscribe(context.Background(), broadcastChannel(conversationId))

	go func() {
		for msg := range pubsub.Channel() {
			var payload MessagePayload
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				b.logger.Warn("Broadcast", "Bad payload dropped", map[string]interface{}{
					"conversation_id": conversationId,
					"error":           err.Error(),
				})
				continue
			}
			handler(payload.ToEntity())
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}
