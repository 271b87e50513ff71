package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    GiveawayStatus
		to      GiveawayStatus
		allowed bool
	}{
		{GiveawayStatusDraft, GiveawayStatusPendingConfirm, true},
		{GiveawayStatusDraft, GiveawayStatusScheduled, true},
		{GiveawayStatusDraft, GiveawayStatusActive, false},
		{GiveawayStatusPendingConfirm, GiveawayStatusScheduled, true},
		{GiveawayStatusPendingConfirm, GiveawayStatusActive, false},
		{GiveawayStatusScheduled, GiveawayStatusActive, true},
		{GiveawayStatusScheduled, GiveawayStatusCancelled, true},
		{GiveawayStatusScheduled, GiveawayStatusFinished, false},
		{GiveawayStatusActive, GiveawayStatusFinished, true},
		{GiveawayStatusActive, GiveawayStatusCancelled, true},
		{GiveawayStatusActive, GiveawayStatusScheduled, false},
		{GiveawayStatusFinished, GiveawayStatusActive, false},
		{GiveawayStatusFinished, GiveawayStatusCancelled, false},
		{GiveawayStatusCancelled, GiveawayStatusActive, false},
		{GiveawayStatusCancelled, GiveawayStatusFinished, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, GiveawayStatusFinished.IsTerminal())
	assert.True(t, GiveawayStatusCancelled.IsTerminal())
	assert.False(t, GiveawayStatusDraft.IsTerminal())
	assert.False(t, GiveawayStatusScheduled.IsTerminal())
	assert.False(t, GiveawayStatusActive.IsTerminal())
}

func TestDueChecks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	scheduled := &Giveaway{Status: GiveawayStatusScheduled, StartAt: &past}
	assert.True(t, scheduled.DueToStart(now))

	scheduled.StartAt = &future
	assert.False(t, scheduled.DueToStart(now))

	active := &Giveaway{Status: GiveawayStatusActive, EndAt: &past}
	assert.True(t, active.DueToFinish(now))

	active.EndAt = &future
	assert.False(t, active.DueToFinish(now))

	// A start boundary exactly at now is due.
	scheduled.StartAt = &now
	assert.True(t, scheduled.DueToStart(now))

	// Wrong status never fires regardless of timestamps.
	finished := &Giveaway{Status: GiveawayStatusFinished, EndAt: &past}
	assert.False(t, finished.DueToFinish(now))
}

func TestParticipationTotalTickets(t *testing.T) {
	p := &Participation{TicketsBase: 1, TicketsExtra: 4}
	assert.Equal(t, 5, p.TotalTickets())

	zero := &Participation{}
	assert.Equal(t, 0, zero.TotalTickets())
}
