package repository

import (
	"context"
	"errors"
	"time"

	"giveaway-engine-backend/internal/features/giveaway/models"
)

var ErrGiveawayNotFound = errors.New("giveaway not found")

// DrawFunc selects winners from the eligible participations of a giveaway.
// It runs inside the completion transaction and must be side-effect free.
type DrawFunc func(g *models.Giveaway, participants []models.Participation) ([]models.Winner, error)

// GiveawayRepository is the storage port for the lifecycle engine.
type GiveawayRepository interface {
	Create(ctx context.Context, giveaway *models.Giveaway) error
	GetByID(ctx context.Context, id string) (*models.Giveaway, error)

	// AddParticipation registers a user once per giveaway. Returns
	// (false, nil) when the user had already joined.
	AddParticipation(ctx context.Context, p *models.Participation) (bool, error)

	// ActivateDue flips every scheduled giveaway whose start time has passed
	// to active and returns how many rows changed.
	ActivateDue(ctx context.Context, now time.Time) (int64, error)

	// ListDueActive returns ids of active giveaways whose end time has passed.
	ListDueActive(ctx context.Context, now time.Time) ([]string, error)

	// FinishGiveaway runs the atomic completion transaction: re-reads the row
	// under FOR UPDATE, verifies it is still active, draws winners via draw,
	// persists them and the terminal status. A giveaway with no eligible
	// participants is cancelled instead. Returns models.NotActiveError when
	// the re-read status is not active.
	FinishGiveaway(ctx context.Context, id string, now time.Time, draw DrawFunc) (*models.CompletionResult, error)

	GetWinners(ctx context.Context, giveawayID string) ([]models.Winner, error)
	MarkWinnerNotified(ctx context.Context, giveawayID string, userID int64, at time.Time) error
}
