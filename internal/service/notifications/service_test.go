package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-engine-backend/internal/features/giveaway/models"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []int64
	texts   []string
	failFor map[int64]bool
}

func (s *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[chatID] {
		return errors.New("telegram unavailable")
	}
	s.sent = append(s.sent, chatID)
	s.texts = append(s.texts, text)
	return nil
}

func (s *fakeSender) recipients() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.sent...)
}

func (s *fakeSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type fakeStore struct {
	mu      sync.Mutex
	stamped map[int64]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{stamped: map[int64]time.Time{}}
}

func (s *fakeStore) MarkWinnerNotified(ctx context.Context, giveawayID string, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamped[userID] = at
	return nil
}

func finishedResult() *models.CompletionResult {
	return &models.CompletionResult{
		GiveawayID:   "g1",
		CreatorID:    100,
		Title:        "Test giveaway",
		Status:       models.GiveawayStatusFinished,
		WinnersCount: 2,
		Winners: []models.Winner{
			{GiveawayID: "g1", UserID: 7, Username: "alice", Place: 1},
			{GiveawayID: "g1", UserID: 8, Username: "bob", Place: 2},
		},
	}
}

func newTestService(sender Sender, store WinnerStore) *Service {
	// High rate so tests do not sleep between sends.
	return NewService(sender, store, 8, 1000)
}

func TestDispatchNotifiesWinnersAndCreator(t *testing.T) {
	sender := &fakeSender{}
	store := newFakeStore()
	svc := newTestService(sender, store)

	svc.dispatch(context.Background(), finishedResult())

	assert.Equal(t, []int64{7, 8, 100}, sender.recipients())
	assert.Contains(t, store.stamped, int64(7))
	assert.Contains(t, store.stamped, int64(8))
}

func TestWinnerMessageCarriesPlaceAndTotal(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(sender, newFakeStore())

	svc.dispatch(context.Background(), finishedResult())

	msgs := sender.messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], "place 1 of 2")
	assert.Contains(t, msgs[1], "place 2 of 2")
}

func TestDispatchSkipsStampOnSendFailure(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]bool{7: true}}
	store := newFakeStore()
	svc := newTestService(sender, store)

	svc.dispatch(context.Background(), finishedResult())

	// The failed winner stays unstamped; delivery continues for the rest.
	assert.NotContains(t, store.stamped, int64(7))
	assert.Contains(t, store.stamped, int64(8))
	assert.Equal(t, []int64{8, 100}, sender.recipients())
}

func TestDispatchCancelledNotifiesCreatorOnly(t *testing.T) {
	sender := &fakeSender{}
	store := newFakeStore()
	svc := newTestService(sender, store)

	svc.dispatch(context.Background(), &models.CompletionResult{
		GiveawayID: "g1",
		CreatorID:  100,
		Title:      "Empty giveaway",
		Status:     models.GiveawayStatusCancelled,
	})

	assert.Equal(t, []int64{100}, sender.recipients())
	assert.Empty(t, store.stamped)
}

func TestDispatchSkipsGapAfterFinalMessage(t *testing.T) {
	sender := &fakeSender{}
	// 500ms gap, so a stray sleep after the only message is visible.
	svc := NewService(sender, newFakeStore(), 8, 2)

	start := time.Now()
	svc.dispatch(context.Background(), &models.CompletionResult{
		GiveawayID: "g1",
		CreatorID:  100,
		Title:      "Empty giveaway",
		Status:     models.GiveawayStatusCancelled,
	})

	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, []int64{100}, sender.recipients())
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	svc := NewService(&fakeSender{}, newFakeStore(), 1, 1000)

	// Worker not started, so the second result cannot fit.
	svc.Enqueue(finishedResult())
	svc.Enqueue(finishedResult())

	assert.Len(t, svc.queue, 1)
}

func TestWorkerProcessesQueue(t *testing.T) {
	sender := &fakeSender{}
	store := newFakeStore()
	svc := newTestService(sender, store)

	svc.Start()
	svc.Enqueue(finishedResult())

	require.Eventually(t, func() bool {
		return len(sender.recipients()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	svc.Stop()
}
