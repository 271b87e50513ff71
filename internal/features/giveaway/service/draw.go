package service

import (
	"fmt"
	"time"

	"giveaway-engine-backend/internal/features/giveaway/models"
	"giveaway-engine-backend/internal/utils/random"
)

type poolEntry struct {
	participant models.Participation
	weight      int64
}

// DrawWinners selects winners from the eligible participations of a giveaway.
//
// Each participant enters the pool with weight equal to their total tickets.
// One index in [0, totalWeight) is drawn per place and resolved by a
// cumulative weight walk. The chosen participant is removed with all of their
// weight, so nobody wins twice and the relative odds of the remaining
// participants are unchanged. Participants with zero tickets never enter the
// pool; when fewer drawable participants exist than winner places, the draw
// stops early and places stay contiguous from 1.
func DrawWinners(g *models.Giveaway, participants []models.Participation, now time.Time) ([]models.Winner, error) {
	pool := make([]poolEntry, 0, len(participants))
	var totalWeight int64
	for _, p := range participants {
		if w := int64(p.TotalTickets()); w > 0 {
			pool = append(pool, poolEntry{participant: p, weight: w})
			totalWeight += w
		}
	}

	// Entry order must not leak join order into the cumulative walk.
	if err := random.Shuffle(pool); err != nil {
		return nil, fmt.Errorf("failed to shuffle pool: %w", err)
	}

	targetWinners := g.WinnersCount
	if len(pool) < targetWinners {
		targetWinners = len(pool)
	}

	winners := make([]models.Winner, 0, targetWinners)
	for place := 1; place <= targetWinners; place++ {
		idx, err := random.UniformInt(0, totalWeight-1)
		if err != nil {
			return nil, fmt.Errorf("failed to draw index: %w", err)
		}

		var cumulative int64
		for i, entry := range pool {
			cumulative += entry.weight
			if idx < cumulative {
				winners = append(winners, models.Winner{
					GiveawayID:  g.ID,
					UserID:      entry.participant.UserID,
					Username:    entry.participant.Username,
					Place:       place,
					TicketsUsed: int(entry.weight),
					SelectedAt:  now,
				})
				totalWeight -= entry.weight
				pool = append(pool[:i], pool[i+1:]...)
				break
			}
		}
	}

	return winners, nil
}
