// Package redis holds advisory caches for the giveaway engine. Nothing here
// is a correctness control, the database row lock is.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"giveaway-engine-backend/internal/features/giveaway/models"
)

const (
	processingKeyPrefix = "giveaways:processing:"
	processingTTL       = 5 * time.Minute
	winnersKeyPrefix    = "giveaways:winners:"
	winnersTTL          = 24 * time.Hour
)

type Cache struct {
	client redis.UniversalClient
}

func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// AddToProcessing marks a giveaway as being completed by some worker.
// Returns false when another worker already holds the mark. The mark expires
// on its own, so a crash between mark and unmark cannot block the giveaway
// past the TTL.
func (c *Cache) AddToProcessing(ctx context.Context, id string) bool {
	ok, err := c.client.SetNX(ctx, processingKeyPrefix+id, 1, processingTTL).Result()
	if err != nil {
		// Dedup is best effort, a failed Redis call must not block completion.
		return true
	}
	return ok
}

// RemoveFromProcessing clears the mark. It detaches from the caller's
// cancellation so a shutdown mid-completion does not leak the mark until the
// TTL expires.
func (c *Cache) RemoveFromProcessing(ctx context.Context, id string) {
	_ = c.client.Del(context.WithoutCancel(ctx), processingKeyPrefix+id).Err()
}

// SetWinners caches the drawn winners for fast reads after completion.
func (c *Cache) SetWinners(ctx context.Context, giveawayID string, winners []models.Winner) error {
	data, err := json.Marshal(winners)
	if err != nil {
		return fmt.Errorf("failed to marshal winners: %w", err)
	}
	return c.client.Set(ctx, winnersKeyPrefix+giveawayID, data, winnersTTL).Err()
}

// GetWinners returns cached winners, or (nil, nil) on a cache miss.
func (c *Cache) GetWinners(ctx context.Context, giveawayID string) ([]models.Winner, error) {
	data, err := c.client.Get(ctx, winnersKeyPrefix+giveawayID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached winners: %w", err)
	}

	var winners []models.Winner
	if err := json.Unmarshal(data, &winners); err != nil {
		return nil, fmt.Errorf("failed to unmarshal winners: %w", err)
	}
	return winners, nil
}
