package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	UpdatePlan(dbc dbctx.Context, id uuid.UUID, plan types.Plan, usageLimit int) error
	// ReserveUsage bumps usage_this_month by one if, and only if, the user
	// still has headroom. Unlimited plans always pass. Returns false when
	// the ceiling is hit; the row is never over-incremented under
	// concurrent callers because the check and the bump are one statement.
	ReserveUsage(dbc dbctx.Context, id uuid.UUID) (bool, error)
	ResetMonthlyUsage(dbc dbctx.Context) (int64, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var u types.User
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if email == "" {
		return nil, nil
	}
	var u types.User
	err := transaction.WithContext(dbc.Ctx).
		Where("email = ?", email).
		Limit(1).
		Find(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) UpdatePlan(dbc dbctx.Context, id uuid.UUID, plan types.Plan, usageLimit int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"plan":        plan,
			"usage_limit": usageLimit,
			"updated_at":  time.Now(),
		}).Error
}

func (r *userRepo) ReserveUsage(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("id = ? AND (plan = ? OR usage_this_month < usage_limit)", id, types.PlanAgency).
		Updates(map[string]any{
			"usage_this_month": gorm.Expr("usage_this_month + 1"),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepo) ResetMonthlyUsage(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("usage_this_month > 0").
		Updates(map[string]any{
			"usage_this_month": 0,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
