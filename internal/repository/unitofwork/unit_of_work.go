package unitofwork

import (
	"context"

	"onbrand-chat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
	ShareRepository() contract.ShareRepository
	ProjectRepository() contract.ProjectRepository
	UserRepository() contract.UserRepository
}
