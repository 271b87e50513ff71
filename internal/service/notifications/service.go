// Package notifications delivers winner and creator messages after a
// giveaway completes. Delivery is best effort and fully decoupled from the
// completion transaction.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"giveaway-engine-backend/internal/common/logger"
	"giveaway-engine-backend/internal/common/metrics"
	"giveaway-engine-backend/internal/features/giveaway/models"
)

// Sender delivers a message to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// WinnerStore stamps delivery times on winner records.
type WinnerStore interface {
	MarkWinnerNotified(ctx context.Context, giveawayID string, userID int64, at time.Time) error
}

type Service struct {
	sender  Sender
	store   WinnerStore
	queue   chan *models.CompletionResult
	sendGap time.Duration
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService builds the dispatcher. messagesPerSecond caps the outgoing
// Telegram rate; queueSize bounds pending completion results.
func NewService(sender Sender, store WinnerStore, queueSize, messagesPerSecond int) *Service {
	if queueSize <= 0 {
		queueSize = 64
	}
	if messagesPerSecond <= 0 {
		messagesPerSecond = 20
	}
	return &Service{
		sender:  sender,
		store:   store,
		queue:   make(chan *models.CompletionResult, queueSize),
		sendGap: time.Second / time.Duration(messagesPerSecond),
		now:     time.Now,
	}
}

// Start launches the delivery worker.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	logger.Info().Msg("Notification service started")
}

// Stop terminates the worker. Queued results that were not picked up yet are
// dropped; winners stay unstamped and can be re-notified by an operator.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logger.Info().Msg("Notification service stopped")
}

// Enqueue hands a completion result to the dispatcher without blocking the
// caller. A full queue drops the result with a log line.
func (s *Service) Enqueue(result *models.CompletionResult) {
	select {
	case s.queue <- result:
	default:
		logger.Error().
			Str("giveaway_id", result.GiveawayID).
			Msg("Notification queue full, dropping completion result")
	}
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case result := <-s.queue:
			s.dispatch(ctx, result)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, result *models.CompletionResult) {
	if result.Status == models.GiveawayStatusCancelled {
		s.send(ctx, result.CreatorID, fmt.Sprintf(
			"Your giveaway \"%s\" ended with no participants and was cancelled.", result.Title))
		return
	}

	total := len(result.Winners)
	for _, w := range result.Winners {
		text := fmt.Sprintf("Congratulations! You won place %d of %d in the giveaway \"%s\".",
			w.Place, total, result.Title)
		sent := s.send(ctx, w.UserID, text)
		// The creator summary always follows, so a gap is due after every
		// winner message.
		s.pause(ctx)
		if !sent {
			continue
		}
		if err := s.store.MarkWinnerNotified(ctx, result.GiveawayID, w.UserID, s.now()); err != nil {
			logger.Warn().
				Str("giveaway_id", result.GiveawayID).
				Int64("user_id", w.UserID).
				Err(err).
				Msg("Failed to stamp winner notification")
		}
	}

	s.send(ctx, result.CreatorID, creatorSummary(result))
}

// send delivers one message and reports success. Failures are soft.
func (s *Service) send(ctx context.Context, chatID int64, text string) bool {
	if err := s.sender.SendMessage(ctx, chatID, text); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		logger.Warn().Int64("chat_id", chatID).Err(err).Msg("Failed to send notification")
		return false
	}
	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	return true
}

// pause waits one rate gap between consecutive sends. The final message of a
// batch does not pay it.
func (s *Service) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.sendGap):
	}
}

func creatorSummary(result *models.CompletionResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Your giveaway \"%s\" has finished.\n\n", result.Title))
	b.WriteString(fmt.Sprintf("Winners selected: %d\n", len(result.Winners)))
	for _, w := range result.Winners {
		name := w.Username
		if name == "" {
			name = fmt.Sprintf("user %d", w.UserID)
		}
		b.WriteString(fmt.Sprintf("%d. %s\n", w.Place, name))
	}
	return b.String()
}
