package publishing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type ScheduledPostRepo interface {
	Create(dbc dbctx.Context, posts []*types.ScheduledPost) ([]*types.ScheduledPost, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ScheduledPost, error)
	GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.ScheduledPost, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.ScheduledPost, error)
	HasLiveForGeneratedContent(dbc dbctx.Context, generatedContentID uuid.UUID) (bool, error)
	// ClaimDue moves up to limit due posts from scheduled to publishing and
	// returns them. Rows are locked SKIP LOCKED so overlapping sweeps never
	// claim the same post twice.
	ClaimDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.ScheduledPost, error)
	MarkPublished(dbc dbctx.Context, id uuid.UUID) (bool, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string) (bool, error)
	Cancel(dbc dbctx.Context, userID, id uuid.UUID) (bool, error)
	Reschedule(dbc dbctx.Context, userID, id uuid.UUID, at time.Time) (bool, error)
}

type scheduledPostRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScheduledPostRepo(db *gorm.DB, baseLog *logger.Logger) ScheduledPostRepo {
	return &scheduledPostRepo{db: db, log: baseLog.With("repo", "ScheduledPostRepo")}
}

func (r *scheduledPostRepo) Create(dbc dbctx.Context, posts []*types.ScheduledPost) ([]*types.ScheduledPost, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(posts) == 0 {
		return []*types.ScheduledPost{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *scheduledPostRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ScheduledPost, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var p types.ScheduledPost
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *scheduledPostRepo) GetForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.ScheduledPost, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var p types.ScheduledPost
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *scheduledPostRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.ScheduledPost, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ScheduledPost
	if userID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("scheduled_at ASC")
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

func (r *scheduledPostRepo) HasLiveForGeneratedContent(dbc dbctx.Context, generatedContentID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if generatedContentID == uuid.Nil {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.ScheduledPost{}).
		Where("generated_content_id = ? AND status IN ?",
			generatedContentID,
			[]types.ScheduledPostStatus{types.ScheduledPostStatusScheduled, types.ScheduledPostStatusPublishing},
		).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *scheduledPostRepo) ClaimDue(dbc dbctx.Context, now time.Time, limit int) ([]*types.ScheduledPost, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	var claimed []*types.ScheduledPost
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var due []*types.ScheduledPost
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND scheduled_at <= ?", types.ScheduledPostStatusScheduled, now).
			Order("scheduled_at ASC").
			Limit(limit).
			Find(&due).Error
		if qErr != nil {
			return qErr
		}
		if len(due) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(due))
		for _, p := range due {
			ids = append(ids, p.ID)
		}
		uErr := txx.Model(&types.ScheduledPost{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     types.ScheduledPostStatusPublishing,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		for _, p := range due {
			p.Status = types.ScheduledPostStatusPublishing
		}
		claimed = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *scheduledPostRepo) MarkPublished(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return r.transition(dbc, id, types.ScheduledPostStatusPublishing, map[string]any{
		"status": types.ScheduledPostStatusPublished,
		"error":  "",
	})
}

func (r *scheduledPostRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string) (bool, error) {
	return r.transition(dbc, id, types.ScheduledPostStatusPublishing, map[string]any{
		"status": types.ScheduledPostStatusFailed,
		"error":  errMsg,
	})
}

func (r *scheduledPostRepo) Cancel(dbc dbctx.Context, userID, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ScheduledPost{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, types.ScheduledPostStatusScheduled).
		Updates(map[string]any{
			"status":     types.ScheduledPostStatusCancelled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *scheduledPostRepo) Reschedule(dbc dbctx.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ScheduledPost{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, types.ScheduledPostStatusScheduled).
		Updates(map[string]any{
			"scheduled_at": at,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *scheduledPostRepo) transition(dbc dbctx.Context, id uuid.UUID, from types.ScheduledPostStatus, updates map[string]any) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ScheduledPost{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
