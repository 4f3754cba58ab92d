package domain

import "time"

// EventType names a protocol notification.
type EventType string

const (
	EventGridInitialized EventType = "grid_initialized"
	EventGridReset       EventType = "grid_reset"
	EventGameStarted     EventType = "game_started"
	EventRevealRequested EventType = "reveal_requested"
	EventRevealCancelled EventType = "reveal_cancelled"
	EventCellRevealed    EventType = "cell_revealed"
	EventGameWon         EventType = "game_won"
	EventGameLost        EventType = "game_lost"
)

// Event is emitted after a successful mutating call.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Actor     Actor                  `json:"actor"`
	GameID    uint64                 `json:"game_id,omitempty"`
	Cell      *int                   `json:"cell,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
