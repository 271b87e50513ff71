package models

import "time"

// ParticipationStatus marks whether a participation is eligible for drawing.
type ParticipationStatus string

const (
	ParticipationStatusJoined    ParticipationStatus = "joined"
	ParticipationStatusWithdrawn ParticipationStatus = "withdrawn"
	ParticipationStatusBanned    ParticipationStatus = "banned"
)

// Participation is one participant's entry in one giveaway. A participant has
// at most one participation per giveaway; the ticket counts are accumulated by
// external collaborators before draw time.
type Participation struct {
	GiveawayID   string              `json:"giveaway_id"`
	UserID       int64               `json:"user_id"`
	Username     string              `json:"username"`
	TicketsBase  int                 `json:"tickets_base"`
	TicketsExtra int                 `json:"tickets_extra"`
	Status       ParticipationStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// TotalTickets is the participant's draw weight. A joined participation with
// zero total tickets is eligible but undrawable.
func (p *Participation) TotalTickets() int {
	return p.TicketsBase + p.TicketsExtra
}
