package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-engine-backend/internal/features/giveaway/models"
	"giveaway-engine-backend/internal/features/giveaway/repository"
)

// fakeRepo is an in-memory repository with the same finish-once guarantee as
// the postgres implementation: the status check and flip happen under one
// lock.
type fakeRepo struct {
	mu             sync.Mutex
	giveaways      map[string]*models.Giveaway
	participations map[string][]models.Participation
	winners        map[string][]models.Winner
	failFinishes   int

	// onFinish, when set, runs at the start of FinishGiveaway.
	onFinish func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		giveaways:      map[string]*models.Giveaway{},
		participations: map[string][]models.Participation{},
		winners:        map[string][]models.Winner{},
	}
}

func (r *fakeRepo) Create(ctx context.Context, g *models.Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *g
	r.giveaways[g.ID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giveaways[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	copied := *g
	return &copied, nil
}

func (r *fakeRepo) AddParticipation(ctx context.Context, p *models.Participation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participations[p.GiveawayID] {
		if existing.UserID == p.UserID {
			return false, nil
		}
	}
	r.participations[p.GiveawayID] = append(r.participations[p.GiveawayID], *p)
	r.giveaways[p.GiveawayID].TotalParticipants++
	return true, nil
}

func (r *fakeRepo) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, g := range r.giveaways {
		if g.DueToStart(now) {
			g.Status = models.GiveawayStatusActive
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) ListDueActive(ctx context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, g := range r.giveaways {
		if g.DueToFinish(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeRepo) FinishGiveaway(ctx context.Context, id string, now time.Time, draw repository.DrawFunc) (*models.CompletionResult, error) {
	if r.onFinish != nil {
		r.onFinish()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.giveaways[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	if g.Status != models.GiveawayStatusActive {
		return nil, &models.NotActiveError{GiveawayID: id, Status: g.Status}
	}
	if r.failFinishes > 0 {
		r.failFinishes--
		return nil, errors.New("transient storage failure")
	}

	result := &models.CompletionResult{
		GiveawayID:   g.ID,
		CreatorID:    g.CreatorID,
		Title:        g.Title,
		WinnersCount: g.WinnersCount,
	}

	participants := r.participations[id]
	if len(participants) == 0 {
		g.Status = models.GiveawayStatusCancelled
		result.Status = models.GiveawayStatusCancelled
		return result, nil
	}

	winners, err := draw(g, participants)
	if err != nil {
		return nil, err
	}

	g.Status = models.GiveawayStatusFinished
	r.winners[id] = winners
	result.Status = models.GiveawayStatusFinished
	result.Winners = winners
	return result, nil
}

func (r *fakeRepo) GetWinners(ctx context.Context, giveawayID string) ([]models.Winner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Winner(nil), r.winners[giveawayID]...), nil
}

func (r *fakeRepo) MarkWinnerNotified(ctx context.Context, giveawayID string, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.winners[giveawayID] {
		if r.winners[giveawayID][i].UserID == userID {
			t := at
			r.winners[giveawayID][i].NotifiedAt = &t
		}
	}
	return nil
}

type fakeCache struct {
	mu            sync.Mutex
	processing    map[string]bool
	winners       map[string][]models.Winner
	removeCtxErrs []error
}

func newFakeCache() *fakeCache {
	return &fakeCache{processing: map[string]bool{}, winners: map[string][]models.Winner{}}
}

func (c *fakeCache) AddToProcessing(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing[id] {
		return false
	}
	c.processing[id] = true
	return true
}

func (c *fakeCache) RemoveFromProcessing(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeCtxErrs = append(c.removeCtxErrs, ctx.Err())
	delete(c.processing, id)
}

func (c *fakeCache) removalCtxErrs() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.removeCtxErrs...)
}

func (c *fakeCache) SetWinners(ctx context.Context, giveawayID string, winners []models.Winner) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.winners[giveawayID] = winners
	return nil
}

func (c *fakeCache) GetWinners(ctx context.Context, giveawayID string) ([]models.Winner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.winners[giveawayID], nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []*models.CompletionResult
}

func (n *fakeNotifier) Enqueue(result *models.CompletionResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, result)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.results)
}

func activeGiveaway(id string, winnersCount int, endAt time.Time) *models.Giveaway {
	return &models.Giveaway{
		ID:           id,
		CreatorID:    100,
		Title:        "Test giveaway",
		Status:       models.GiveawayStatusActive,
		EndAt:        &endAt,
		WinnersCount: winnersCount,
	}
}

func newTestCompletionService(repo *fakeRepo, cache *fakeCache, notifier *fakeNotifier) *CompletionService {
	return NewCompletionService(repo, cache, notifier, CompletionServiceConfig{
		Interval:      time.Minute,
		MaxConcurrent: 4,
	})
}

func TestCompleteFinishesActiveGiveaway(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	notifier := &fakeNotifier{}
	svc := newTestCompletionService(repo, cache, notifier)

	end := time.Now().Add(-time.Minute)
	require.NoError(t, repo.Create(context.Background(), activeGiveaway("g1", 2, end)))
	for _, p := range []models.Participation{participant(1, 2), participant(2, 1), participant(3, 3)} {
		_, err := repo.AddParticipation(context.Background(), &p)
		require.NoError(t, err)
	}

	result, err := svc.Complete(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusFinished, result.Status)
	assert.Len(t, result.Winners, 2)

	g, err := repo.GetByID(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusFinished, g.Status)

	assert.Equal(t, 1, notifier.count())
	cached, _ := cache.GetWinners(context.Background(), "g1")
	assert.Len(t, cached, 2)
}

func TestCompleteZeroParticipantsCancels(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newTestCompletionService(repo, newFakeCache(), notifier)

	require.NoError(t, repo.Create(context.Background(), activeGiveaway("g1", 3, time.Now())))

	result, err := svc.Complete(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusCancelled, result.Status)
	assert.Empty(t, result.Winners)

	g, _ := repo.GetByID(context.Background(), "g1")
	assert.Equal(t, models.GiveawayStatusCancelled, g.Status)

	// Cancelled completions still notify the creator.
	assert.Equal(t, 1, notifier.count())
}

func TestCompleteSecondCallFails(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestCompletionService(repo, newFakeCache(), &fakeNotifier{})

	require.NoError(t, repo.Create(context.Background(), activeGiveaway("g1", 1, time.Now())))
	_, err := repo.AddParticipation(context.Background(), &models.Participation{
		GiveawayID: "g1", UserID: 1, TicketsBase: 1, Status: models.ParticipationStatusJoined,
	})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "g1")
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), "g1")
	var notActive *models.NotActiveError
	require.ErrorAs(t, err, &notActive)
	assert.Equal(t, models.GiveawayStatusFinished, notActive.Status)
}

func TestCompleteConcurrentCallsFinishOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestCompletionService(repo, newFakeCache(), &fakeNotifier{})

	require.NoError(t, repo.Create(context.Background(), activeGiveaway("g1", 1, time.Now())))
	_, err := repo.AddParticipation(context.Background(), &models.Participation{
		GiveawayID: "g1", UserID: 1, TicketsBase: 1, Status: models.ParticipationStatusJoined,
	})
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Complete(context.Background(), "g1")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var notActive *models.NotActiveError
		assert.ErrorAs(t, err, &notActive)
	}
	assert.Equal(t, 1, successes)

	winners, _ := repo.GetWinners(context.Background(), "g1")
	assert.Len(t, winners, 1)
}

func TestTickActivatesAndCompletes(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newTestCompletionService(repo, newFakeCache(), notifier)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	start := clock.Add(-2 * time.Hour)
	end := clock.Add(-time.Hour)
	scheduled := &models.Giveaway{
		ID:           "g1",
		CreatorID:    100,
		Title:        "Scheduled giveaway",
		Status:       models.GiveawayStatusScheduled,
		StartAt:      &start,
		EndAt:        &end,
		WinnersCount: 1,
	}
	require.NoError(t, repo.Create(context.Background(), scheduled))
	_, err := repo.AddParticipation(context.Background(), &models.Participation{
		GiveawayID: "g1", UserID: 1, TicketsBase: 1, Status: models.ParticipationStatusJoined,
	})
	require.NoError(t, err)

	// First tick activates the overdue scheduled giveaway and, since its end
	// time has also passed, completes it in the same sweep.
	svc.tick(context.Background())

	g, err := repo.GetByID(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusFinished, g.Status)
	assert.Equal(t, 1, notifier.count())

	// A second tick finds nothing due.
	svc.tick(context.Background())
	assert.Equal(t, 1, notifier.count())
}

func TestTickUnmarksProcessingAfterCancel(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	svc := newTestCompletionService(repo, cache, &fakeNotifier{})

	require.NoError(t, repo.Create(context.Background(), activeGiveaway("g1", 1, time.Now().Add(-time.Minute))))
	_, err := repo.AddParticipation(context.Background(), &models.Participation{
		GiveawayID: "g1", UserID: 1, TicketsBase: 1, Status: models.ParticipationStatusJoined,
	})
	require.NoError(t, err)

	// Shutdown fires while the completion is in flight.
	ctx, cancel := context.WithCancel(context.Background())
	repo.onFinish = cancel

	svc.tick(ctx)

	// The mark is released with a context that survived the cancellation, so
	// the giveaway is not starved on the next tick.
	errs := cache.removalCtxErrs()
	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
	assert.True(t, cache.AddToProcessing(context.Background(), "g1"))
}

func TestTickRetriesTransientFailures(t *testing.T) {
	repo := newFakeRepo()
	repo.failFinishes = 2
	notifier := &fakeNotifier{}
	svc := newTestCompletionService(repo, newFakeCache(), notifier)

	require.NoError(t, repo.Create(context.Background(), activeGiveaway("g1", 1, time.Now().Add(-time.Minute))))
	_, err := repo.AddParticipation(context.Background(), &models.Participation{
		GiveawayID: "g1", UserID: 1, TicketsBase: 1, Status: models.ParticipationStatusJoined,
	})
	require.NoError(t, err)

	svc.tick(context.Background())

	g, err := repo.GetByID(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStatusFinished, g.Status)
	assert.Equal(t, 1, notifier.count())
}
