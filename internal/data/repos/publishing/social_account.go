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

type SocialAccountRepo interface {
	Upsert(dbc dbctx.Context, account *types.SocialAccount) (*types.SocialAccount, error)
	GetActive(dbc dbctx.Context, userID uuid.UUID, platform types.Platform) (*types.SocialAccount, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.SocialAccount, error)
	// UpdateTokens persists a refreshed token pair. Called before the
	// publish attempt so a crash mid-publish never loses the new tokens.
	UpdateTokens(dbc dbctx.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error
	Deactivate(dbc dbctx.Context, userID uuid.UUID, platform types.Platform) (bool, error)
}

type socialAccountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSocialAccountRepo(db *gorm.DB, baseLog *logger.Logger) SocialAccountRepo {
	return &socialAccountRepo{db: db, log: baseLog.With("repo", "SocialAccountRepo")}
}

func (r *socialAccountRepo) Upsert(dbc dbctx.Context, account *types.SocialAccount) (*types.SocialAccount, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if account == nil {
		return nil, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"handle", "access_token", "refresh_token", "token_expires_at", "is_active", "updated_at",
			}),
		}).
		Create(account).Error
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *socialAccountRepo) GetActive(dbc dbctx.Context, userID uuid.UUID, platform types.Platform) (*types.SocialAccount, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || platform == "" {
		return nil, nil
	}
	var a types.SocialAccount
	err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND platform = ? AND is_active = ?", userID, platform, true).
		Limit(1).
		Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == uuid.Nil {
		return nil, nil
	}
	return &a, nil
}

func (r *socialAccountRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.SocialAccount, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SocialAccount
	if userID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("platform ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *socialAccountRepo) UpdateTokens(dbc dbctx.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.SocialAccount{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token":     accessToken,
			"refresh_token":    refreshToken,
			"token_expires_at": expiresAt,
			"updated_at":       time.Now(),
		}).Error
}

func (r *socialAccountRepo) Deactivate(dbc dbctx.Context, userID uuid.UUID, platform types.Platform) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || platform == "" {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.SocialAccount{}).
		Where("user_id = ? AND platform = ? AND is_active = ?", userID, platform, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
