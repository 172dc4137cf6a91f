package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/apierr"
	"github.com/clipforge/clipforge-backend/internal/pkg/dbctx"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

type UsageSummary struct {
	Plan           types.Plan `json:"plan"`
	UsageThisMonth int        `json:"usage_this_month"`
	UsageLimit     int        `json:"usage_limit"`
	Unlimited      bool       `json:"unlimited"`
	Remaining      int        `json:"remaining"`
}

type QuotaService interface {
	// CheckAndReserve consumes one unit of monthly quota for a content.
	// Each content is counted at most once: retries of an already-counted
	// content return nil without touching the ledger. A refused
	// reservation surfaces as apierr.QuotaExceeded.
	CheckAndReserve(dbc dbctx.Context, userID, contentID uuid.UUID) error
	Usage(dbc dbctx.Context, userID uuid.UUID) (*UsageSummary, error)
	ResetMonthlyUsage(dbc dbctx.Context) (int64, error)
	ApplyPlan(dbc dbctx.Context, userID uuid.UUID, plan types.Plan) error
}

type quotaService struct {
	db          *gorm.DB
	log         *logger.Logger
	userRepo    repos.UserRepo
	contentRepo repos.ContentRepo
	plans       *PlanConfig
}

func NewQuotaService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, contentRepo repos.ContentRepo, plans *PlanConfig) QuotaService {
	return &quotaService{
		db:          db,
		log:         baseLog.With("service", "QuotaService"),
		userRepo:    userRepo,
		contentRepo: contentRepo,
		plans:       plans,
	}
}

func (s *quotaService) CheckAndReserve(dbc dbctx.Context, userID, contentID uuid.UUID) error {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return fmt.Errorf("missing user or content id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}

		claimed, err := s.contentRepo.ClaimUsageCount(inner, contentID)
		if err != nil {
			return fmt.Errorf("claim usage marker: %w", err)
		}
		if !claimed {
			// Already counted on a previous attempt.
			return nil
		}

		reserved, err := s.userRepo.ReserveUsage(inner, userID)
		if err != nil {
			return fmt.Errorf("reserve usage: %w", err)
		}
		if !reserved {
			// Rolling back the transaction releases the marker too.
			return apierr.QuotaExceeded(fmt.Errorf("monthly processing limit reached"))
		}
		return nil
	})
}

func (s *quotaService) Usage(dbc dbctx.Context, userID uuid.UUID) (*UsageSummary, error) {
	user, err := s.userRepo.GetByID(dbc, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.NotFound("user_not_found", fmt.Errorf("user %s not found", userID))
	}
	summary := &UsageSummary{
		Plan:           user.Plan,
		UsageThisMonth: user.UsageThisMonth,
		UsageLimit:     user.UsageLimit,
		Unlimited:      user.Plan.Unlimited(),
	}
	if !summary.Unlimited {
		summary.Remaining = user.UsageLimit - user.UsageThisMonth
		if summary.Remaining < 0 {
			summary.Remaining = 0
		}
	}
	return summary, nil
}

func (s *quotaService) ResetMonthlyUsage(dbc dbctx.Context) (int64, error) {
	n, err := s.userRepo.ResetMonthlyUsage(dbc)
	if err != nil {
		return 0, fmt.Errorf("reset monthly usage: %w", err)
	}
	s.log.Info("Monthly usage reset", "users", n)
	return n, nil
}

func (s *quotaService) ApplyPlan(dbc dbctx.Context, userID uuid.UUID, plan types.Plan) error {
	if userID == uuid.Nil {
		return fmt.Errorf("missing user id")
	}
	return s.userRepo.UpdatePlan(dbc, userID, plan, s.plans.LimitFor(plan))
}
