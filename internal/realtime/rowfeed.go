package realtime

import (
	"onbrand-chat-be/internal/entity"
	pktNats "onbrand-chat-be/pkg/nats"

	"github.com/google/uuid"
)

// JetStreamRowFeed adapts the NATS feed to the reconciler's RowFeed contract,
// normalizing the wire envelope into the shared Message payload.
type JetStreamRowFeed struct {
	feed *pktNats.Feed
}

func NewJetStreamRowFeed(feed *pktNats.Feed) *JetStreamRowFeed {
	return &JetStreamRowFeed{feed: feed}
}

func (f *JetStreamRowFeed) SubscribeMessages(conversationId uuid.UUID, handler func(entity.Message)) (func(), error) {
	return f.feed.SubscribeMessages(conversationId, func(env pktNats.MessageEnvelope) {
		handler(entity.Message{
			Id:             env.Id,
			ConversationId: env.ConversationId,
			Role:           env.Role,
			Content:        env.Content,
			AuthorUserId:   env.AuthorUserId,
			AuthorName:     env.AuthorName,
			AuthorEmail:    env.AuthorEmail,
			Metadata:       env.Metadata,
			CreatedAt:      env.CreatedAt,
		})
	})
}
