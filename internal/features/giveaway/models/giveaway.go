package models

import (
	"fmt"
	"time"
)

// GiveawayStatus represents the lifecycle state of a giveaway.
type GiveawayStatus string

const (
	// GiveawayStatusDraft and GiveawayStatusPendingConfirm are owned by the
	// creator flow; the engine only accepts them as predecessors of scheduled.
	GiveawayStatusDraft          GiveawayStatus = "draft"
	GiveawayStatusPendingConfirm GiveawayStatus = "pending_confirm"
	GiveawayStatusScheduled      GiveawayStatus = "scheduled"
	GiveawayStatusActive         GiveawayStatus = "active"
	GiveawayStatusFinished       GiveawayStatus = "finished"
	GiveawayStatusCancelled      GiveawayStatus = "cancelled"
)

// legalTransitions defines the one-directional lifecycle. finished and
// cancelled are terminal.
var legalTransitions = map[GiveawayStatus][]GiveawayStatus{
	GiveawayStatusDraft:          {GiveawayStatusPendingConfirm, GiveawayStatusScheduled},
	GiveawayStatusPendingConfirm: {GiveawayStatusScheduled},
	GiveawayStatusScheduled:      {GiveawayStatusActive, GiveawayStatusCancelled},
	GiveawayStatusActive:         {GiveawayStatusFinished, GiveawayStatusCancelled},
	GiveawayStatusFinished:       {},
	GiveawayStatusCancelled:      {},
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s GiveawayStatus) CanTransitionTo(next GiveawayStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s GiveawayStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// IllegalTransitionError is returned when a transition violates the lifecycle.
type IllegalTransitionError struct {
	GiveawayID string
	From       GiveawayStatus
	To         GiveawayStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("giveaway %s: illegal transition %s -> %s", e.GiveawayID, e.From, e.To)
}

// NotActiveError is returned by the completion procedure when the freshly-read
// status is not active, e.g. a concurrent finish already won the race.
type NotActiveError struct {
	GiveawayID string
	Status     GiveawayStatus
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("giveaway %s is not active (current status: %s)", e.GiveawayID, e.Status)
}

// Giveaway is the contest aggregate.
type Giveaway struct {
	ID                string         `json:"id"`
	CreatorID         int64          `json:"creator_id"`
	Title             string         `json:"title"`
	Status            GiveawayStatus `json:"status"`
	StartAt           *time.Time     `json:"start_at,omitempty"`
	EndAt             *time.Time     `json:"end_at,omitempty"`
	WinnersCount      int            `json:"winners_count"`
	TotalParticipants int            `json:"total_participants"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DueToStart reports whether a scheduled giveaway should become active.
func (g *Giveaway) DueToStart(now time.Time) bool {
	return g.Status == GiveawayStatusScheduled && g.StartAt != nil && !g.StartAt.After(now)
}

// DueToFinish reports whether an active giveaway should be completed.
func (g *Giveaway) DueToFinish(now time.Time) bool {
	return g.Status == GiveawayStatusActive && g.EndAt != nil && !g.EndAt.After(now)
}

// GiveawayCreate carries validated input for creating a new giveaway.
type GiveawayCreate struct {
	Title        string     `json:"title" binding:"required,min=3,max=100"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	Duration     int64      `json:"duration,omitempty"` // seconds, used when end_at is absent
	WinnersCount int        `json:"winners_count" binding:"required,min=1"`
}

// GiveawayResponse is the public read model of a giveaway.
type GiveawayResponse struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Status            GiveawayStatus `json:"status"`
	StartAt           *time.Time     `json:"start_at,omitempty"`
	EndAt             *time.Time     `json:"end_at,omitempty"`
	WinnersCount      int            `json:"winners_count"`
	TotalParticipants int            `json:"total_participants"`
	Winners           []Winner       `json:"winners,omitempty"` // populated only once finished
}
