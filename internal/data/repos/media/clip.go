package media

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type ClipRepo interface {
	Create(dbc dbctx.Context, clips []*types.Clip) ([]*types.Clip, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Clip, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Clip, error)
	ListByContent(dbc dbctx.Context, contentID uuid.UUID) ([]*types.Clip, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Clip, error)
	CountByContent(dbc dbctx.Context, contentID uuid.UUID) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []types.ClipStatus, to types.ClipStatus, updates map[string]any) (bool, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error)
}

type clipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClipRepo(db *gorm.DB, baseLog *logger.Logger) ClipRepo {
	return &clipRepo{db: db, log: baseLog.With("repo", "ClipRepo")}
}

func (r *clipRepo) Create(dbc dbctx.Context, clips []*types.Clip) ([]*types.Clip, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(clips) == 0 {
		return []*types.Clip{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&clips).Error; err != nil {
		return nil, err
	}
	return clips, nil
}

func (r *clipRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Clip, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Clip
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *clipRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Clip, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var c types.Clip
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *clipRepo) ListByContent(dbc dbctx.Context, contentID uuid.UUID) ([]*types.Clip, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Clip
	if contentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("content_id = ?", contentID).
		Order("start_time ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *clipRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Clip, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Clip
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

func (r *clipRepo) CountByContent(dbc dbctx.Context, contentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if contentID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Clip{}).
		Where("content_id = ?", contentID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *clipRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
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
		Model(&types.Clip{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *clipRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []types.ClipStatus, to types.ClipStatus, updates map[string]any) (bool, error) {
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
		Model(&types.Clip{}).
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

func (r *clipRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Clip{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
