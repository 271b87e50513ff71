package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"giveaway-engine-backend/internal/features/giveaway/models"
	"giveaway-engine-backend/internal/features/giveaway/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.GiveawayRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	query := `
		INSERT INTO giveaways (id, creator_id, title, status, start_at, end_at, winners_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		giveaway.ID, giveaway.CreatorID, giveaway.Title, giveaway.Status,
		giveaway.StartAt, giveaway.EndAt, giveaway.WinnersCount, giveaway.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	return nil
}

const giveawayColumns = `id, creator_id, title, status, start_at, end_at, winners_count, total_participants, created_at, updated_at`

func scanGiveaway(row *sql.Row) (*models.Giveaway, error) {
	var g models.Giveaway
	err := row.Scan(
		&g.ID, &g.CreatorID, &g.Title, &g.Status, &g.StartAt, &g.EndAt,
		&g.WinnersCount, &g.TotalParticipants, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return &g, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	query := fmt.Sprintf("SELECT %s FROM giveaways WHERE id = $1", giveawayColumns)
	return scanGiveaway(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresRepository) AddParticipation(ctx context.Context, p *models.Participation) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO participations (giveaway_id, user_id, username, tickets_base, tickets_extra, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (giveaway_id, user_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query,
		p.GiveawayID, p.UserID, p.Username, p.TicketsBase, p.TicketsExtra, p.Status, p.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to add participation: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if inserted == 0 {
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE giveaways SET total_participants = total_participants + 1, updated_at = NOW() WHERE id = $1",
		p.GiveawayID)
	if err != nil {
		return false, fmt.Errorf("failed to bump participant count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit participation: %w", err)
	}
	return true, nil
}

func scanParticipations(rows *sql.Rows) ([]models.Participation, error) {
	var participations []models.Participation
	for rows.Next() {
		var p models.Participation
		if err := rows.Scan(&p.GiveawayID, &p.UserID, &p.Username,
			&p.TicketsBase, &p.TicketsExtra, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		participations = append(participations, p)
	}
	return participations, rows.Err()
}

func (r *postgresRepository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE giveaways SET status = 'active', updated_at = NOW() WHERE status = 'scheduled' AND start_at <= $1",
		now)
	if err != nil {
		return 0, fmt.Errorf("failed to activate giveaways: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresRepository) ListDueActive(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM giveaways WHERE status = 'active' AND end_at <= $1 ORDER BY end_at",
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due giveaways: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan giveaway id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FinishGiveaway is the single place a giveaway can reach a terminal status
// through the engine. The row lock plus the status re-read make a concurrent
// second finish fail with NotActiveError instead of drawing twice.
func (r *postgresRepository) FinishGiveaway(ctx context.Context, id string, now time.Time, draw repository.DrawFunc) (*models.CompletionResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("SELECT %s FROM giveaways WHERE id = $1 FOR UPDATE", giveawayColumns)
	var g models.Giveaway
	err = tx.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.CreatorID, &g.Title, &g.Status, &g.StartAt, &g.EndAt,
		&g.WinnersCount, &g.TotalParticipants, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("failed to lock giveaway: %w", err)
	}

	if g.Status != models.GiveawayStatusActive {
		return nil, &models.NotActiveError{GiveawayID: g.ID, Status: g.Status}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT giveaway_id, user_id, username, tickets_base, tickets_extra, status, created_at
		FROM participations
		WHERE giveaway_id = $1 AND status = 'joined'
		ORDER BY created_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participations: %w", err)
	}
	participants, err := scanParticipations(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	result := &models.CompletionResult{
		GiveawayID:   g.ID,
		CreatorID:    g.CreatorID,
		Title:        g.Title,
		WinnersCount: g.WinnersCount,
	}

	if len(participants) == 0 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE giveaways SET status = 'cancelled', updated_at = NOW() WHERE id = $1", id); err != nil {
			return nil, fmt.Errorf("failed to cancel giveaway: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit cancellation: %w", err)
		}
		result.Status = models.GiveawayStatusCancelled
		return result, nil
	}

	winners, err := draw(&g, participants)
	if err != nil {
		return nil, fmt.Errorf("failed to draw winners: %w", err)
	}

	for _, w := range winners {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO winners (giveaway_id, user_id, username, place, tickets_used, selected_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, w.GiveawayID, w.UserID, w.Username, w.Place, w.TicketsUsed, w.SelectedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert winner: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE giveaways SET status = 'finished', updated_at = NOW() WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("failed to finish giveaway: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit completion: %w", err)
	}

	result.Status = models.GiveawayStatusFinished
	result.Winners = winners
	return result, nil
}

func (r *postgresRepository) GetWinners(ctx context.Context, giveawayID string) ([]models.Winner, error) {
	query := `
		SELECT giveaway_id, user_id, username, place, tickets_used, selected_at, notified_at
		FROM winners
		WHERE giveaway_id = $1
		ORDER BY place
	`
	rows, err := r.db.QueryContext(ctx, query, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get winners: %w", err)
	}
	defer rows.Close()

	var winners []models.Winner
	for rows.Next() {
		var w models.Winner
		if err := rows.Scan(&w.GiveawayID, &w.UserID, &w.Username,
			&w.Place, &w.TicketsUsed, &w.SelectedAt, &w.NotifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		winners = append(winners, w)
	}
	return winners, rows.Err()
}

func (r *postgresRepository) MarkWinnerNotified(ctx context.Context, giveawayID string, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE winners SET notified_at = $3 WHERE giveaway_id = $1 AND user_id = $2",
		giveawayID, userID, at)
	if err != nil {
		return fmt.Errorf("failed to mark winner notified: %w", err)
	}
	return nil
}
