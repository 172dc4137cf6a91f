package media

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type ContentRepo interface {
	Create(dbc dbctx.Context, contents []*types.Content) ([]*types.Content, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Content, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Content, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	// TransitionStatus applies updates only when the row currently sits in
	// one of allowedFrom. Returns false when the row was in another state,
	// which callers treat as losing the claim.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []types.ContentStatus, to types.ContentStatus, updates map[string]any) (bool, error)
	SaveTranscript(dbc dbctx.Context, id uuid.UUID, transcript string, segments datatypes.JSON, duration float64) error
	// ClaimUsageCount flips usage_counted exactly once. The first caller
	// gets true; retries of the same pipeline get false and skip the
	// quota increment.
	ClaimUsageCount(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error)
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

func (r *contentRepo) Create(dbc dbctx.Context, contents []*types.Content) ([]*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(contents) == 0 {
		return []*types.Content{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

func (r *contentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Content
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

func (r *contentRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var c types.Content
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

func (r *contentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Content, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Content
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

func (r *contentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
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
		Model(&types.Content{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *contentRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []types.ContentStatus, to types.ContentStatus, updates map[string]any) (bool, error) {
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
		Model(&types.Content{}).
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

func (r *contentRepo) SaveTranscript(dbc dbctx.Context, id uuid.UUID, transcript string, segments datatypes.JSON, duration float64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Content{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"transcription":          transcript,
			"transcription_segments": segments,
			"duration":               duration,
			"updated_at":             time.Now(),
		}).Error
}

func (r *contentRepo) ClaimUsageCount(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Content{}).
		Where("id = ? AND usage_counted = ?", id, false).
		Updates(map[string]any{
			"usage_counted": true,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *contentRepo) Delete(dbc dbctx.Context, userID, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Content{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
