package models

import "time"

// Winner is a drawn result. Rows are created only inside the completion
// transaction and never mutated except to stamp NotifiedAt.
type Winner struct {
	GiveawayID  string     `json:"giveaway_id"`
	UserID      int64      `json:"user_id"`
	Username    string     `json:"username"`
	Place       int        `json:"place"`
	TicketsUsed int        `json:"tickets_used"` // participant's total tickets at draw time
	SelectedAt  time.Time  `json:"selected_at"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
}

// CompletionResult is the synchronous outcome of the completion procedure.
type CompletionResult struct {
	GiveawayID   string         `json:"giveaway_id"`
	CreatorID    int64          `json:"creator_id"`
	Title        string         `json:"title"`
	Status       GiveawayStatus `json:"status"` // finished, or cancelled when zero participants
	WinnersCount int            `json:"winners_count"`
	Winners      []Winner       `json:"winners"`
}
