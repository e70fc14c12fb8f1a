package contract

import (
	"context"

	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ShareRepository interface {
	Create(ctx context.Context, share *entity.ConversationShare) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationShare, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationShare, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type ProjectRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error)
	CountMembers(ctx context.Context, projectId uuid.UUID) (int64, error)
	IsMember(ctx context.Context, projectId, userId uuid.UUID) (bool, error)
}
