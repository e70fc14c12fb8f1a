package service

import (
	"context"
	"testing"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/dto"
	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/repository/contract"
	"onbrand-chat-be/internal/repository/specification"
	"onbrand-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversationRepo struct {
	conv    *entity.Conversation
	updated *entity.Conversation
}

func (f *fakeConversationRepo) Create(ctx context.Context, conversation *entity.Conversation) error {
	return nil
}

func (f *fakeConversationRepo) Update(ctx context.Context, conversation *entity.Conversation) error {
	copied := *conversation
	f.updated = &copied
	return nil
}

func (f *fakeConversationRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeConversationRepo) TouchLastActivity(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (f *fakeConversationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	return f.conv, nil
}

func (f *fakeConversationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	return nil, nil
}

func (f *fakeConversationRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

type fakeUnitOfWork struct {
	convRepo *fakeConversationRepo
}

func (f *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }
func (f *fakeUnitOfWork) Commit() error                   { return nil }
func (f *fakeUnitOfWork) Rollback() error                 { return nil }

func (f *fakeUnitOfWork) ConversationRepository() contract.ConversationRepository {
	return f.convRepo
}
func (f *fakeUnitOfWork) MessageRepository() contract.MessageRepository { return nil }
func (f *fakeUnitOfWork) ShareRepository() contract.ShareRepository     { return nil }
func (f *fakeUnitOfWork) ProjectRepository() contract.ProjectRepository { return nil }
func (f *fakeUnitOfWork) UserRepository() contract.UserRepository       { return nil }

type fakeRepositoryFactory struct {
	uow *fakeUnitOfWork
}

func (f *fakeRepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

type fakeAnnouncer struct {
	announced []uuid.UUID
}

func (f *fakeAnnouncer) PublishShareChanged(ctx context.Context, conversationId uuid.UUID) error {
	f.announced = append(f.announced, conversationId)
	return nil
}

type svcNopLogger struct{}

func (svcNopLogger) Debug(string, string, map[string]interface{}) {}
func (svcNopLogger) Info(string, string, map[string]interface{})  {}
func (svcNopLogger) Warn(string, string, map[string]interface{})  {}
func (svcNopLogger) Error(string, string, map[string]interface{}) {}
func (svcNopLogger) Sync() error                                  { return nil }

func strPtr(s string) *string { return &s }

func TestConversationUpdate_ProjectAndVisibility(t *testing.T) {
	ownerId := uuid.New()
	conv := &entity.Conversation{
		Id:         uuid.New(),
		UserId:     ownerId,
		Title:      "Planning",
		Visibility: constant.VisibilityPrivate,
	}
	repo := &fakeConversationRepo{conv: conv}
	announcer := &fakeAnnouncer{}
	svc := NewConversationService(
		&fakeRepositoryFactory{uow: &fakeUnitOfWork{convRepo: repo}},
		nil, announcer, svcNopLogger{},
	)

	projectId := uuid.New()
	res, err := svc.Update(context.Background(), ownerId, &dto.UpdateConversationRequest{
		Id:         conv.Id,
		ProjectId:  &projectId,
		Visibility: strPtr(constant.VisibilityShared),
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	require.NotNil(t, repo.updated)
	require.NotNil(t, repo.updated.ProjectId)
	assert.Equal(t, projectId, *repo.updated.ProjectId)
	assert.Equal(t, constant.VisibilityShared, repo.updated.Visibility)

	// Open sessions hear about the sharing-shape change and re-evaluate.
	require.Len(t, announcer.announced, 1)
	assert.Equal(t, conv.Id, announcer.announced[0])
}

func TestConversationUpdate_DetachesProject(t *testing.T) {
	ownerId := uuid.New()
	existing := uuid.New()
	conv := &entity.Conversation{
		Id:         uuid.New(),
		UserId:     ownerId,
		ProjectId:  &existing,
		Visibility: constant.VisibilityPrivate,
	}
	repo := &fakeConversationRepo{conv: conv}
	announcer := &fakeAnnouncer{}
	svc := NewConversationService(
		&fakeRepositoryFactory{uow: &fakeUnitOfWork{convRepo: repo}},
		nil, announcer, svcNopLogger{},
	)

	nilId := uuid.Nil
	_, err := svc.Update(context.Background(), ownerId, &dto.UpdateConversationRequest{
		Id:        conv.Id,
		ProjectId: &nilId,
	})
	require.NoError(t, err)

	require.NotNil(t, repo.updated)
	assert.Nil(t, repo.updated.ProjectId)
	assert.Len(t, announcer.announced, 1)
}

func TestConversationUpdate_TitleOnlyDoesNotAnnounce(t *testing.T) {
	ownerId := uuid.New()
	conv := &entity.Conversation{
		Id:         uuid.New(),
		UserId:     ownerId,
		Title:      "Old",
		Visibility: constant.VisibilityPrivate,
	}
	repo := &fakeConversationRepo{conv: conv}
	announcer := &fakeAnnouncer{}
	svc := NewConversationService(
		&fakeRepositoryFactory{uow: &fakeUnitOfWork{convRepo: repo}},
		nil, announcer, svcNopLogger{},
	)

	_, err := svc.Update(context.Background(), ownerId, &dto.UpdateConversationRequest{
		Id:    conv.Id,
		Title: strPtr("New"),
	})
	require.NoError(t, err)

	require.NotNil(t, repo.updated)
	assert.Equal(t, "New", repo.updated.Title)
	assert.Empty(t, announcer.announced)
}
