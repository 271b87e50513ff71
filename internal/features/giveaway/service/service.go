package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "giveaway-engine-backend/internal/common/errors"
	"giveaway-engine-backend/internal/common/logger"
	"giveaway-engine-backend/internal/features/giveaway/models"
	"giveaway-engine-backend/internal/features/giveaway/repository"
)

// Completer finishes a single giveaway through the guarded procedure.
type Completer interface {
	Complete(ctx context.Context, id string) (*models.CompletionResult, error)
}

// WinnerCache reads cached winner lists.
type WinnerCache interface {
	GetWinners(ctx context.Context, giveawayID string) ([]models.Winner, error)
}

// GiveawayService implements the user-facing giveaway operations.
type GiveawayService struct {
	repo      repository.GiveawayRepository
	cache     WinnerCache
	completer Completer
	now       func() time.Time
}

func NewGiveawayService(repo repository.GiveawayRepository, cache WinnerCache, completer Completer) *GiveawayService {
	return &GiveawayService{
		repo:      repo,
		cache:     cache,
		completer: completer,
		now:       time.Now,
	}
}

// Create validates timing input and persists a new giveaway. A giveaway with
// a future start time is scheduled, otherwise it goes straight to active.
func (s *GiveawayService) Create(ctx context.Context, creatorID int64, input *models.GiveawayCreate) (*models.Giveaway, error) {
	now := s.now()

	endAt := input.EndAt
	if endAt == nil {
		if input.Duration <= 0 {
			return nil, apperrors.NewValidationError("end_at", "either end_at or a positive duration is required")
		}
		base := now
		if input.StartAt != nil {
			base = *input.StartAt
		}
		e := base.Add(time.Duration(input.Duration) * time.Second)
		endAt = &e
	}

	startAt := input.StartAt
	if startAt == nil {
		startAt = &now
	}
	if !endAt.After(*startAt) {
		return nil, apperrors.NewValidationError("end_at", "must be after start_at")
	}

	status := models.GiveawayStatusActive
	if startAt.After(now) {
		status = models.GiveawayStatusScheduled
	}

	giveaway := &models.Giveaway{
		ID:           uuid.New().String(),
		CreatorID:    creatorID,
		Title:        input.Title,
		Status:       status,
		StartAt:      startAt,
		EndAt:        endAt,
		WinnersCount: input.WinnersCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, giveaway); err != nil {
		return nil, apperrors.NewDatabaseError("create giveaway", err)
	}

	logger.Info().
		Str("giveaway_id", giveaway.ID).
		Int64("creator_id", creatorID).
		Str("status", string(status)).
		Msg("Giveaway created")

	return giveaway, nil
}

// Join registers a participation with one base ticket. Joining twice is a
// no-op reported as ALREADY_JOINED.
func (s *GiveawayService) Join(ctx context.Context, giveawayID string, userID int64, username string) error {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return apperrors.NewGiveawayNotFoundError(giveawayID)
		}
		return apperrors.NewDatabaseError("get giveaway", err)
	}

	if giveaway.Status != models.GiveawayStatusActive {
		return apperrors.New(apperrors.ErrCodeConflict, "giveaway is not accepting participants").
			WithDetail("giveaway_id", giveawayID).
			WithDetail("status", string(giveaway.Status))
	}

	inserted, err := s.repo.AddParticipation(ctx, &models.Participation{
		GiveawayID:  giveawayID,
		UserID:      userID,
		Username:    username,
		TicketsBase: 1,
		Status:      models.ParticipationStatusJoined,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return apperrors.NewDatabaseError("add participation", err)
	}
	if !inserted {
		return apperrors.New(apperrors.ErrCodeAlreadyJoined, "user already joined this giveaway").
			WithDetail("giveaway_id", giveawayID)
	}

	return nil
}

// FinishNow lets the creator end an active giveaway early. It shares the
// guarded completion procedure with the scheduler, so racing with the
// periodic sweep is safe.
func (s *GiveawayService) FinishNow(ctx context.Context, giveawayID string, userID int64) (*models.CompletionResult, error) {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, apperrors.NewGiveawayNotFoundError(giveawayID)
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}

	if giveaway.CreatorID != userID {
		return nil, apperrors.New(apperrors.ErrCodeNotOwner, "only the creator can finish a giveaway").
			WithDetail("giveaway_id", giveawayID)
	}

	result, err := s.completer.Complete(ctx, giveawayID)
	if err != nil {
		var notActive *models.NotActiveError
		if errors.As(err, &notActive) {
			return nil, apperrors.NewIllegalTransitionError(giveawayID, string(notActive.Status), string(models.GiveawayStatusFinished))
		}
		return nil, apperrors.NewDatabaseError("finish giveaway", err)
	}

	return result, nil
}

// GetByID returns a giveaway with winners attached once it is finished.
func (s *GiveawayService) GetByID(ctx context.Context, giveawayID string) (*models.GiveawayResponse, error) {
	giveaway, err := s.repo.GetByID(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, repository.ErrGiveawayNotFound) {
			return nil, apperrors.NewGiveawayNotFoundError(giveawayID)
		}
		return nil, apperrors.NewDatabaseError("get giveaway", err)
	}

	resp := &models.GiveawayResponse{
		ID:                giveaway.ID,
		Title:             giveaway.Title,
		Status:            giveaway.Status,
		StartAt:           giveaway.StartAt,
		EndAt:             giveaway.EndAt,
		WinnersCount:      giveaway.WinnersCount,
		TotalParticipants: giveaway.TotalParticipants,
	}

	if giveaway.Status == models.GiveawayStatusFinished {
		winners, err := s.GetWinners(ctx, giveawayID)
		if err != nil {
			return nil, err
		}
		resp.Winners = winners
	}

	return resp, nil
}

// GetWinners returns the winner list, preferring the Redis cache.
func (s *GiveawayService) GetWinners(ctx context.Context, giveawayID string) ([]models.Winner, error) {
	if cached, err := s.cache.GetWinners(ctx, giveawayID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		logger.Warn().Str("giveaway_id", giveawayID).Err(err).Msg("Winner cache read failed")
	}

	winners, err := s.repo.GetWinners(ctx, giveawayID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get winners", err)
	}
	return winners, nil
}
