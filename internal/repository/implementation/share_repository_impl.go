package implementation

import (
	"context"
	"errors"

	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/mapper"
	"onbrand-chat-be/internal/model"
	"onbrand-chat-be/internal/repository/contract"
	"onbrand-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShareRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewShareRepository(db *gorm.DB) contract.ShareRepository {
	return &ShareRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ShareRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ShareRepositoryImpl) Create(ctx context.Context, share *entity.ConversationShare) error {
	m := r.mapper.ShareToModel(share)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*share = *r.mapper.ShareToEntity(m)
	return nil
}

func (r *ShareRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ConversationShare{}, id).Error
}

func (r *ShareRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationShare, error) {
	var m model.ConversationShare
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ShareToEntity(&m), nil
}

func (r *ShareRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationShare, error) {
	var models []*model.ConversationShare
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ConversationShare, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ShareToEntity(m)
	}
	return entities, nil
}

func (r *ShareRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ConversationShare{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Project repository

type ProjectRepositoryImpl struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) contract.ProjectRepository {
	return &ProjectRepositoryImpl{db: db}
}

func (r *ProjectRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error) {
	var m model.Project
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entity.Project{
		Id:            m.Id,
		UserId:        m.UserId,
		Name:          m.Name,
		Collaborative: m.Collaborative,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func (r *ProjectRepositoryImpl) CountMembers(ctx context.Context, projectId uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ProjectMember{}).
		Where("project_id = ?", projectId).
		Count(&count).Error
	return count, err
}

func (r *ProjectRepositoryImpl) IsMember(ctx context.Context, projectId, userId uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectId, userId).
		Count(&count).Error
	return count > 0, err
}
