package service

import (
	"context"
	"fmt"
	"time"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/dto"
	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/pkg/logger"
	"onbrand-chat-be/internal/repository/specification"
	"onbrand-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IConversationService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowConversationResponse, error)
	Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateConversationRequest) (*dto.UpdateConversationResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

// ShareChangeAnnouncer notifies open sessions that a conversation's sharing
// shape changed, so mode detectors re-evaluate. Satisfied by *nats.Feed.
type ShareChangeAnnouncer interface {
	PublishShareChanged(ctx context.Context, conversationId uuid.UUID) error
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	store      IChatStoreService
	announcer  ShareChangeAnnouncer
	logger     logger.ILogger
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	store IChatStoreService,
	announcer ShareChangeAnnouncer,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		store:      store,
		announcer:  announcer,
		logger:     log,
	}
}

func (c *conversationService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error) {
	title := req.Title
	if title == "" {
		title = "New Conversation"
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	conv := entity.Conversation{
		Id:             uuid.New(),
		UserId:         userId,
		ProjectId:      req.ProjectId,
		Title:          title,
		Model:          req.Model,
		SystemPrompt:   req.SystemPrompt,
		Visibility:     constant.VisibilityPrivate,
		LastActivityAt: time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := uow.ConversationRepository().Create(ctx, &conv); err != nil {
		return nil, err
	}
	return &dto.CreateConversationResponse{Id: conv.Id}, nil
}

// List returns the user's own conversations plus those shared with them,
// most recently active first.
func (c *conversationService) List(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	owned, err := uow.ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "last_activity_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	shared, err := uow.ConversationRepository().FindAll(ctx,
		specification.SharedWithUser{UserID: userId},
		specification.OrderBy{Field: "last_activity_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(owned))
	res := make([]*dto.ConversationResponse, 0, len(owned)+len(shared))
	for _, conv := range owned {
		seen[conv.Id] = true
		res = append(res, conversationToResponse(conv, false))
	}
	for _, conv := range shared {
		if seen[conv.Id] {
			continue
		}
		res = append(res, conversationToResponse(conv, true))
	}
	return res, nil
}

func (c *conversationService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowConversationResponse, error) {
	conv, err := c.store.GetConversation(ctx, id, userId)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}

	messages, err := c.store.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	res := dto.ShowConversationResponse{
		ConversationResponse: *conversationToResponse(conv, conv.UserId != userId),
		Messages:             make([]dto.MessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		res.Messages = append(res.Messages, dto.MessageResponseFromEntity(msg))
	}
	return &res, nil
}

func (c *conversationService) Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateConversationRequest) (*dto.UpdateConversationResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: req.Id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}

	if req.Title != nil {
		conv.Title = *req.Title
	}
	if req.Model != nil {
		conv.Model = *req.Model
	}
	if req.SystemPrompt != nil {
		conv.SystemPrompt = *req.SystemPrompt
	}
	if req.Style != nil {
		conv.Style = *req.Style
	}

	// Project and visibility changes alter who may see the conversation, so
	// open sessions get a share-change announcement to re-evaluate their mode.
	shareShapeChanged := false
	if req.ProjectId != nil {
		if *req.ProjectId == uuid.Nil {
			conv.ProjectId = nil
		} else {
			projectId := *req.ProjectId
			conv.ProjectId = &projectId
		}
		shareShapeChanged = true
	}
	if req.Visibility != nil && conv.Visibility != *req.Visibility {
		conv.Visibility = *req.Visibility
		shareShapeChanged = true
	}

	if err := uow.ConversationRepository().Update(ctx, conv); err != nil {
		return nil, err
	}
	if shareShapeChanged {
		c.announceShareChange(ctx, conv.Id)
	}
	return &dto.UpdateConversationResponse{Id: conv.Id}, nil
}

func (c *conversationService) announceShareChange(ctx context.Context, conversationId uuid.UUID) {
	if err := c.announcer.PublishShareChanged(ctx, conversationId); err != nil {
		c.logger.Warn("ConversationService", "Share change publish failed", map[string]interface{}{
			"conversation_id": conversationId,
			"error":           err.Error(),
		})
	}
}

// Delete removes a conversation and everything under it. Messages first,
// then the conversation row, in one transaction, so a partial failure never
// leaves orphaned messages behind.
func (c *conversationService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation not found")
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().DeleteByConversationId(ctx, id); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, id); err != nil {
		return err
	}

	return uow.Commit()
}

func conversationToResponse(conv *entity.Conversation, shared bool) *dto.ConversationResponse {
	return &dto.ConversationResponse{
		Id:             conv.Id,
		Title:          conv.Title,
		ProjectId:      conv.ProjectId,
		Model:          conv.Model,
		Visibility:     conv.Visibility,
		Shared:         shared,
		LastActivityAt: conv.LastActivityAt,
		CreatedAt:      conv.CreatedAt,
	}
}
