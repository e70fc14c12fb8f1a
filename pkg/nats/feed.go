package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName = "CHAT"

	subjectMessageInserted = "chat.message.inserted.%s" // conversation id
	subjectShareChanged    = "chat.share.changed.%s"    // conversation id
)

// Feed is the persistence-backed row-change feed. Every successfully
// persisted message and every share mutation is published here; sessions hold
// per-conversation subscriptions.
type Feed struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewFeed connects to NATS and ensures the CHAT stream exists.
func NewFeed(url string) (*Feed, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"chat.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		log.Printf("Warn: Failed to ensure stream %q: %v", streamName, err)
		// Don't fail hard here, maybe it already exists or NATS isn't ready
	}

	return &Feed{nc: nc, js: js}, nil
}

// MessageEnvelope is the wire shape of a row-insert event.
type MessageEnvelope struct {
	Id             uuid.UUID              `json:"id"`
	ConversationId uuid.UUID              `json:"conversation_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	AuthorUserId   *uuid.UUID             `json:"author_user_id,omitempty"`
	AuthorName     string                 `json:"author_name,omitempty"`
	AuthorEmail    string                 `json:"author_email,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// PublishMessageInserted announces a newly persisted message row.
func (f *Feed) PublishMessageInserted(ctx context.Context, env MessageEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal message envelope: %w", err)
	}

	subject := fmt.Sprintf(subjectMessageInserted, env.ConversationId)
	if _, err := f.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// PublishShareChanged announces a share grant/revoke for a conversation.
func (f *Feed) PublishShareChanged(ctx context.Context, conversationId uuid.UUID) error {
	subject := fmt.Sprintf(subjectShareChanged, conversationId)
	payload, _ := json.Marshal(map[string]string{"conversation_id": conversationId.String()})
	if _, err := f.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// SubscribeMessages delivers newly inserted message rows for one conversation.
// The consumer is ephemeral and ordered; it starts at new messages only, so a
// reconnect never replays rows the session already applied. Returns an
// unsubscribe function.
func (f *Feed) SubscribeMessages(conversationId uuid.UUID, handler func(MessageEnvelope)) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subject := fmt.Sprintf(subjectMessageInserted, conversationId)
	consumer, err := f.js.OrderedConsumer(ctx, streamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", subject, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var env MessageEnvelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			log.Printf("row feed: bad payload on %s: %v", msg.Subject(), err)
			return
		}
		handler(env)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", subject, err)
	}

	return cc.Stop, nil
}

// SubscribeShares delivers share-change notifications for one conversation.
func (f *Feed) SubscribeShares(conversationId uuid.UUID, handler func(uuid.UUID)) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	subject := fmt.Sprintf(subjectShareChanged, conversationId)
	consumer, err := f.js.OrderedConsumer(ctx, streamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", subject, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(conversationId)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", subject, err)
	}

	return cc.Stop, nil
}

// Close closes the NATS connection.
func (f *Feed) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}
