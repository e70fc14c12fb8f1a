package collab

import (
	"context"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/repository/contract"
	"onbrand-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// RepositoryGrantSource resolves collaboration grants from the share and
// project repositories.
type RepositoryGrantSource struct {
	shareRepository   contract.ShareRepository
	projectRepository contract.ProjectRepository
}

func NewRepositoryGrantSource(shareRepository contract.ShareRepository, projectRepository contract.ProjectRepository) *RepositoryGrantSource {
	return &RepositoryGrantSource{
		shareRepository:   shareRepository,
		projectRepository: projectRepository,
	}
}

func (g *RepositoryGrantSource) CountWriteShares(ctx context.Context, conversationId uuid.UUID) (int64, error) {
	return g.shareRepository.Count(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.ByPermission{Permission: constant.SharePermissionWrite},
	)
}

func (g *RepositoryGrantSource) ProjectGrantsCollaboration(ctx context.Context, projectId uuid.UUID) (bool, error) {
	project, err := g.projectRepository.FindOne(ctx, specification.ByID{ID: projectId})
	if err != nil {
		return false, err
	}
	if project == nil || !project.Collaborative {
		return false, nil
	}

	members, err := g.projectRepository.CountMembers(ctx, projectId)
	if err != nil {
		return false, err
	}
	return members > 1, nil
}
