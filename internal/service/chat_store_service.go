package service

import (
	"context"
	"time"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/pkg/logger"
	"onbrand-chat-be/internal/realtime"
	"onbrand-chat-be/internal/repository/specification"
	"onbrand-chat-be/internal/repository/unitofwork"
	pkgNats "onbrand-chat-be/pkg/nats"

	"github.com/google/uuid"
)

// IChatStoreService is the persistence and fanout surface behind a chat
// session. SaveMessage persists the row, then announces it on the durable
// row feed and the ephemeral broadcast channel; both announcements are
// auxiliary and never fail the save.
type IChatStoreService interface {
	GetConversation(ctx context.Context, conversationId, userId uuid.UUID) (*entity.Conversation, error)
	CreateConversation(ctx context.Context, userId uuid.UUID, projectId *uuid.UUID, title string) (*entity.Conversation, error)
	ListMessages(ctx context.Context, conversationId uuid.UUID) ([]entity.Message, error)
	SaveMessage(ctx context.Context, msg *entity.Message) error
	TouchLastActivity(ctx context.Context, conversationId uuid.UUID) error
}

type chatStoreService struct {
	uowFactory  unitofwork.RepositoryFactory
	feed        *pkgNats.Feed
	broadcaster *realtime.Broadcaster
	logger      logger.ILogger
}

func NewChatStoreService(
	uowFactory unitofwork.RepositoryFactory,
	feed *pkgNats.Feed,
	broadcaster *realtime.Broadcaster,
	log logger.ILogger,
) IChatStoreService {
	return &chatStoreService{
		uowFactory:  uowFactory,
		feed:        feed,
		broadcaster: broadcaster,
		logger:      log,
	}
}

// GetConversation returns the conversation when the user may read it: as
// owner, via a direct share, or via project membership. Nil when absent or
// not accessible.
func (s *chatStoreService) GetConversation(ctx context.Context, conversationId, userId uuid.UUID) (*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conv, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}
	if conv.UserId == userId {
		return conv, nil
	}

	share, err := uow.ShareRepository().FindOne(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if share != nil {
		return conv, nil
	}

	if conv.ProjectId != nil {
		member, err := uow.ProjectRepository().IsMember(ctx, *conv.ProjectId, userId)
		if err != nil {
			return nil, err
		}
		if member {
			return conv, nil
		}
	}

	return nil, nil
}

func (s *chatStoreService) CreateConversation(ctx context.Context, userId uuid.UUID, projectId *uuid.UUID, title string) (*entity.Conversation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conv := entity.Conversation{
		Id:             uuid.New(),
		UserId:         userId,
		ProjectId:      projectId,
		Title:          title,
		Visibility:     constant.VisibilityPrivate,
		LastActivityAt: time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := uow.ConversationRepository().Create(ctx, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *chatStoreService) ListMessages(ctx context.Context, conversationId uuid.UUID) ([]entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}
	messages := make([]entity.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, *row)
	}
	return messages, nil
}

func (s *chatStoreService) SaveMessage(ctx context.Context, msg *entity.Message) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		return err
	}

	env := pkgNats.MessageEnvelope{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		AuthorUserId:   msg.AuthorUserId,
		AuthorName:     msg.AuthorName,
		AuthorEmail:    msg.AuthorEmail,
		Metadata:       msg.Metadata,
		CreatedAt:      msg.CreatedAt,
	}
	if err := s.feed.PublishMessageInserted(ctx, env); err != nil {
		s.logger.Warn("ChatStore", "Row feed publish failed", map[string]interface{}{
			"message_id": msg.Id,
			"error":      err.Error(),
		})
	}
	if err := s.broadcaster.Publish(ctx, msg); err != nil {
		s.logger.Warn("ChatStore", "Broadcast publish failed", map[string]interface{}{
			"message_id": msg.Id,
			"error":      err.Error(),
		})
	}
	return nil
}

func (s *chatStoreService) TouchLastActivity(ctx context.Context, conversationId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ConversationRepository().TouchLastActivity(ctx, conversationId)
}
