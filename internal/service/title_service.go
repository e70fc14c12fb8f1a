package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"onbrand-chat-be/internal/dto"
	"onbrand-chat-be/internal/repository/specification"
	"onbrand-chat-be/internal/repository/unitofwork"
	"onbrand-chat-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const titlePrompt = "Write a short title (at most 6 words) for a conversation that starts with the following exchange. Reply with the title only, no quotes.\n\n%s"

// ITitleService generates conversation titles in the background. RequestTitle
// queues a job; Consume drains the queue, asks the model for a title, and
// updates the conversation row.
type ITitleService interface {
	RequestTitle(conversationId uuid.UUID)
	Consume(ctx context.Context) error
}

type titleService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	provider   llm.LLMProvider
	titleModel string
}

// NewTitleService builds the background title generator. titleModel overrides
// the provider's default model for title prompts; empty means use the default.
func NewTitleService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	provider llm.LLMProvider,
	titleModel string,
) ITitleService {
	return &titleService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		provider:   provider,
		titleModel: titleModel,
	}
}

func (ts *titleService) RequestTitle(conversationId uuid.UUID) {
	payload, err := json.Marshal(dto.GenerateTitleMessage{ConversationId: conversationId})
	if err != nil {
		log.Printf("[ERROR] Failed to marshal title job: %v", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := ts.pubSub.Publish(ts.topicName, msg); err != nil {
		log.Printf("[ERROR] Failed to publish title job for %s: %v", conversationId, err)
	}
}

func (ts *titleService) Consume(ctx context.Context) error {
	messages, err := ts.pubSub.Subscribe(ctx, ts.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ts.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (ts *titleService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.GenerateTitleMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal title job: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Generating title for conversation %s", payload.ConversationId)

	uow := ts.uowFactory.NewUnitOfWork(ctx)

	conv, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: payload.ConversationId})
	if err != nil || conv == nil {
		log.Printf("[ERROR] Failed to load conversation %s: %v", payload.ConversationId, err)
		msg.Ack()
		return
	}

	rows, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: payload.ConversationId},
		specification.OrderBy{Field: "created_at"},
		specification.Pagination{Limit: 4},
	)
	if err != nil || len(rows) == 0 {
		log.Printf("[ERROR] Failed to load messages for %s: %v", payload.ConversationId, err)
		msg.Ack()
		return
	}

	var excerpt strings.Builder
	for _, row := range rows {
		excerpt.WriteString(row.Role)
		excerpt.WriteString(": ")
		excerpt.WriteString(row.Content)
		excerpt.WriteString("\n")
	}

	var opts []llm.Option
	if ts.titleModel != "" {
		opts = append(opts, llm.WithModel(ts.titleModel))
	}
	title, err := ts.provider.Generate(ctx, fmt.Sprintf(titlePrompt, excerpt.String()), opts...)
	if err != nil {
		log.Printf("[ERROR] Title generation failed for %s: %v", payload.ConversationId, err)
		msg.Nack()
		return
	}

	title = sanitizeTitle(title)
	if title == "" {
		msg.Ack()
		return
	}

	conv.Title = title
	if err := uow.ConversationRepository().Update(ctx, conv); err != nil {
		log.Printf("[ERROR] Failed to store title for %s: %v", payload.ConversationId, err)
		msg.Nack()
		return
	}

	msg.Ack()
}

// sanitizeTitle trims quoting and whitespace the model tends to wrap titles
// in, and caps runaway outputs.
func sanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"'`)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	if len(title) > 120 {
		title = title[:120]
	}
	return strings.TrimSpace(title)
}
