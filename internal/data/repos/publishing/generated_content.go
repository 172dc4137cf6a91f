package publishing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type GeneratedContentRepo interface {
	Create(dbc dbctx.Context, items []*types.GeneratedContent) ([]*types.GeneratedContent, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GeneratedContent, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.GeneratedContent, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.GeneratedContent, error)
	ListByContent(dbc dbctx.Context, contentID uuid.UUID) ([]*types.GeneratedContent, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []types.GeneratedContentStatus, to types.GeneratedContentStatus, updates map[string]any) (bool, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error)
}

type generatedContentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeneratedContentRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedContentRepo {
	return &generatedContentRepo{db: db, log: baseLog.With("repo", "GeneratedContentRepo")}
}

func (r *generatedContentRepo) Create(dbc dbctx.Context, items []*types.GeneratedContent) ([]*types.GeneratedContent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return []*types.GeneratedContent{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *generatedContentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GeneratedContent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var gc types.GeneratedContent
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&gc).Error
	if err != nil {
		return nil, err
	}
	if gc.ID == uuid.Nil {
		return nil, nil
	}
	return &gc, nil
}

func (r *generatedContentRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.GeneratedContent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var gc types.GeneratedContent
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&gc).Error
	if err != nil {
		return nil, err
	}
	if gc.ID == uuid.Nil {
		return nil, nil
	}
	return &gc, nil
}

func (r *generatedContentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.GeneratedContent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GeneratedContent
	if userID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generatedContentRepo) ListByContent(dbc dbctx.Context, contentID uuid.UUID) ([]*types.GeneratedContent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GeneratedContent
	if contentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("content_id = ?", contentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generatedContentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]any{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.GeneratedContent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *generatedContentRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []types.GeneratedContentStatus, to types.GeneratedContentStatus, updates map[string]any) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&types.GeneratedContent{}).
		Where("id = ?", id)
	if len(allowedFrom) == 1 {
		q = q.Where("status = ?", allowedFrom[0])
	} else if len(allowedFrom) > 1 {
		q = q.Where("status IN ?", allowedFrom)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generatedContentRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.GeneratedContent{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
