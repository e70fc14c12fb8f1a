package service

import (
	"context"
	"fmt"
	"time"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/dto"
	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/pkg/logger"
	"onbrand-chat-be/internal/pkg/mailer"
	"onbrand-chat-be/internal/repository/specification"
	"onbrand-chat-be/internal/repository/unitofwork"
	pkgNats "onbrand-chat-be/pkg/nats"

	"github.com/google/uuid"
)

type IShareService interface {
	Grant(ctx context.Context, ownerId uuid.UUID, req *dto.GrantShareRequest) (*dto.GrantShareResponse, error)
	Revoke(ctx context.Context, ownerId uuid.UUID, req *dto.RevokeShareRequest) error
	List(ctx context.Context, ownerId uuid.UUID, conversationId uuid.UUID) ([]*dto.ShareResponse, error)
}

type shareService struct {
	uowFactory   unitofwork.RepositoryFactory
	feed         *pkgNats.Feed
	emailService mailer.IEmailService
	logger       logger.ILogger
}

func NewShareService(
	uowFactory unitofwork.RepositoryFactory,
	feed *pkgNats.Feed,
	emailService mailer.IEmailService,
	log logger.ILogger,
) IShareService {
	return &shareService{
		uowFactory:   uowFactory,
		feed:         feed,
		emailService: emailService,
		logger:       log,
	}
}

// Grant shares a conversation with another user by email. The share-change
// announcement flips open sessions into collaborative mode; the invite email
// is auxiliary and sent in the background.
func (s *shareService) Grant(ctx context.Context, ownerId uuid.UUID, req *dto.GrantShareRequest) (*dto.GrantShareResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: req.ConversationId},
		specification.UserOwnedBy{UserID: ownerId},
	)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation not found")
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user with email %s", req.Email)
	}
	if user.Id == ownerId {
		return nil, fmt.Errorf("cannot share a conversation with yourself")
	}

	existing, err := uow.ShareRepository().FindOne(ctx,
		specification.ByConversationID{ConversationID: req.ConversationId},
		specification.UserOwnedBy{UserID: user.Id},
	)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &dto.GrantShareResponse{Id: existing.Id}, nil
	}

	share := entity.ConversationShare{
		Id:             uuid.New(),
		ConversationId: req.ConversationId,
		UserId:         user.Id,
		Permission:     req.Permission,
		CreatedAt:      time.Now().UTC(),
	}
	if err := uow.ShareRepository().Create(ctx, &share); err != nil {
		return nil, err
	}

	if conv.Visibility != constant.VisibilityShared {
		conv.Visibility = constant.VisibilityShared
		if err := uow.ConversationRepository().Update(ctx, conv); err != nil {
			return nil, err
		}
	}

	s.announceShareChange(ctx, req.ConversationId)

	// Invite email must not delay or fail the grant.
	go func(toEmail, ownerName, title string) {
		if err := s.emailService.SendShareInvite(toEmail, ownerName, title); err != nil {
			s.logger.Warn("ShareService", "Invite email failed", map[string]interface{}{
				"email": toEmail,
				"error": err.Error(),
			})
		}
	}(user.Email, s.ownerName(ctx, uow, ownerId), conv.Title)

	return &dto.GrantShareResponse{Id: share.Id}, nil
}

func (s *shareService) Revoke(ctx context.Context, ownerId uuid.UUID, req *dto.RevokeShareRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: req.ConversationId},
		specification.UserOwnedBy{UserID: ownerId},
	)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation not found")
	}

	share, err := uow.ShareRepository().FindOne(ctx,
		specification.ByConversationID{ConversationID: req.ConversationId},
		specification.UserOwnedBy{UserID: req.UserId},
	)
	if err != nil {
		return err
	}
	if share == nil {
		return nil // already revoked
	}

	if err := uow.ShareRepository().Delete(ctx, share.Id); err != nil {
		return err
	}

	remaining, err := uow.ShareRepository().Count(ctx,
		specification.ByConversationID{ConversationID: req.ConversationId},
	)
	if err == nil && remaining == 0 && conv.Visibility == constant.VisibilityShared {
		conv.Visibility = constant.VisibilityPrivate
		if err := uow.ConversationRepository().Update(ctx, conv); err != nil {
			s.logger.Warn("ShareService", "Visibility downgrade failed", map[string]interface{}{
				"conversation_id": conv.Id,
				"error":           err.Error(),
			})
		}
	}

	s.announceShareChange(ctx, req.ConversationId)
	return nil
}

func (s *shareService) List(ctx context.Context, ownerId uuid.UUID, conversationId uuid.UUID) ([]*dto.ShareResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: ownerId},
	)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation not found")
	}

	shares, err := uow.ShareRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ShareResponse, 0, len(shares))
	for _, share := range shares {
		item := &dto.ShareResponse{
			Id:             share.Id,
			ConversationId: share.ConversationId,
			UserId:         share.UserId,
			Permission:     share.Permission,
			CreatedAt:      share.CreatedAt,
		}
		if user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: share.UserId}); err == nil && user != nil {
			item.UserName = user.Name
			item.UserEmail = user.Email
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *shareService) announceShareChange(ctx context.Context, conversationId uuid.UUID) {
	if err := s.feed.PublishShareChanged(ctx, conversationId); err != nil {
		s.logger.Warn("ShareService", "Share change publish failed", map[string]interface{}{
			"conversation_id": conversationId,
			"error":           err.Error(),
		})
	}
}

func (s *shareService) ownerName(ctx context.Context, uow unitofwork.UnitOfWork, ownerId uuid.UUID) string {
	owner, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: ownerId})
	if err != nil || owner == nil {
		return constant.UnknownSenderLabel
	}
	return owner.Name
}
