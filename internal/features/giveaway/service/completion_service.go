package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"giveaway-engine-backend/internal/common/logger"
	"giveaway-engine-backend/internal/common/metrics"
	"giveaway-engine-backend/internal/features/giveaway/models"
	"giveaway-engine-backend/internal/features/giveaway/repository"
)

// Notifier receives completion results for async delivery.
type Notifier interface {
	Enqueue(result *models.CompletionResult)
}

// CompletionCache is the advisory dedup and winner cache, satisfied by the
// Redis cache in production.
type CompletionCache interface {
	AddToProcessing(ctx context.Context, id string) bool
	RemoveFromProcessing(ctx context.Context, id string)
	SetWinners(ctx context.Context, giveawayID string, winners []models.Winner) error
}

// CompletionServiceConfig carries the scheduler knobs.
type CompletionServiceConfig struct {
	Interval          time.Duration
	MaxConcurrent     int
	CompletionTimeout time.Duration
}

// CompletionService owns the periodic lifecycle sweep: it activates scheduled
// giveaways whose start time has passed and completes active giveaways whose
// end time has passed. Completion of distinct giveaways runs concurrently up
// to MaxConcurrent; a single giveaway is never processed twice at once.
type CompletionService struct {
	repo     repository.GiveawayRepository
	cache    CompletionCache
	notifier Notifier
	cfg      CompletionServiceConfig

	// now is swappable for deterministic tests.
	now func() time.Time

	processing sync.Map
	semaphore  chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCompletionService(repo repository.GiveawayRepository, cache CompletionCache, notifier Notifier, cfg CompletionServiceConfig) *CompletionService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &CompletionService{
		repo:      repo,
		cache:     cache,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Start launches the scheduler loop.
func (s *CompletionService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	logger.Info().
		Dur("interval", s.cfg.Interval).
		Int("max_concurrent", s.cfg.MaxConcurrent).
		Msg("Completion service started")
}

// Stop terminates the loop and waits for in-flight completions.
func (s *CompletionService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logger.Info().Msg("Completion service stopped")
}

func (s *CompletionService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one sweep. It waits for every completion it spawned, so ticks
// never overlap for the same batch.
func (s *CompletionService) tick(ctx context.Context) {
	metrics.SchedulerTicks.Inc()
	now := s.now()

	activated, err := s.repo.ActivateDue(ctx, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to activate due giveaways")
	} else if activated > 0 {
		metrics.Activations.Add(float64(activated))
		logger.Info().Int64("count", activated).Msg("Activated scheduled giveaways")
	}

	ids, err := s.repo.ListDueActive(ctx, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list due giveaways")
		return
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		if _, loaded := s.processing.LoadOrStore(id, struct{}{}); loaded {
			continue
		}
		if !s.cache.AddToProcessing(ctx, id) {
			s.processing.Delete(id)
			continue
		}

		wg.Add(1)
		s.semaphore <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-s.semaphore }()
			defer s.processing.Delete(id)
			// Unmark even when ctx was cancelled mid-completion, otherwise the
			// mark outlives the worker and blocks the next tick.
			defer s.cache.RemoveFromProcessing(context.WithoutCancel(ctx), id)

			s.completeWithRetry(ctx, id)
		}(id)
	}
	wg.Wait()
}

func (s *CompletionService) completeWithRetry(ctx context.Context, id string) {
	for attempt := 1; attempt <= maxCompletionRetries; attempt++ {
		_, err := s.Complete(ctx, id)
		if err == nil {
			return
		}

		var notActive *models.NotActiveError
		if errors.As(err, &notActive) || errors.Is(err, repository.ErrGiveawayNotFound) {
			// Someone else finished it, nothing to retry.
			metrics.Completions.WithLabelValues("skipped").Inc()
			logger.Debug().Str("giveaway_id", id).Err(err).Msg("Completion skipped")
			return
		}

		logger.Warn().
			Str("giveaway_id", id).
			Int("attempt", attempt).
			Err(err).
			Msg("Completion attempt failed")

		if attempt < maxCompletionRetries {
			select {
			case <-ctx.Done():
				return
			case <-time.After(completionRetryDelay):
			}
		}
	}

	metrics.Completions.WithLabelValues("failed").Inc()
	logger.Error().Str("giveaway_id", id).Msg("Giving up on completion")
}

// Complete runs the guarded completion procedure for one giveaway. The
// database transaction re-reads the status under a row lock, so concurrent
// callers (scheduler vs manual finish) cannot both draw.
func (s *CompletionService) Complete(ctx context.Context, id string) (*models.CompletionResult, error) {
	if s.cfg.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CompletionTimeout)
		defer cancel()
	}

	now := s.now()
	started := time.Now()
	result, err := s.repo.FinishGiveaway(ctx, id, now, func(g *models.Giveaway, participants []models.Participation) ([]models.Winner, error) {
		return DrawWinners(g, participants, now)
	})
	if err != nil {
		return nil, err
	}
	metrics.DrawDuration.Observe(time.Since(started).Seconds())

	if result.Status == models.GiveawayStatusCancelled {
		metrics.Completions.WithLabelValues("cancelled").Inc()
		logger.Info().Str("giveaway_id", id).Msg("Giveaway cancelled: no participants")
		if s.notifier != nil {
			s.notifier.Enqueue(result)
		}
		return result, nil
	}

	metrics.Completions.WithLabelValues("finished").Inc()
	logger.Info().
		Str("giveaway_id", id).
		Int("winners", len(result.Winners)).
		Msg("Giveaway finished")

	if err := s.cache.SetWinners(ctx, id, result.Winners); err != nil {
		logger.Warn().Str("giveaway_id", id).Err(err).Msg("Failed to cache winners")
	}

	if s.notifier != nil {
		s.notifier.Enqueue(result)
	}

	return result, nil
}
