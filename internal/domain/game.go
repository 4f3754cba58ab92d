package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Board geometry. The mine layout is a single global 5x5 grid.
const (
	BoardWidth  = 5
	TotalCells  = BoardWidth * BoardWidth
	MineCount   = 5
	SafeToClear = TotalCells - MineCount
)

// Actor identifies a player account.
type Actor = common.Address

// Handle is an opaque reference to one encrypted value held by the oracle.
type Handle = common.Hash

// CellState is the per-game disclosure state of a cell.
type CellState uint8

const (
	CellHidden CellState = iota
	CellPending
	CellRevealedSafe
	CellRevealedMine
)

func (s CellState) String() string {
	switch s {
	case CellHidden:
		return "hidden"
	case CellPending:
		return "pending"
	case CellRevealedSafe:
		return "safe"
	case CellRevealedMine:
		return "mine"
	default:
		return "unknown"
	}
}

// MarshalText encodes cell states by name in JSON payloads.
func (s CellState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// GameState is the lifecycle of a game. Won and Lost are terminal.
type GameState uint8

const (
	GameInactive GameState = iota
	GameActive
	GameWon
	GameLost
)

func (s GameState) String() string {
	switch s {
	case GameInactive:
		return "inactive"
	case GameActive:
		return "active"
	case GameWon:
		return "won"
	case GameLost:
		return "lost"
	default:
		return "unknown"
	}
}

func (s GameState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further reveal can change the game.
func (s GameState) Terminal() bool {
	return s == GameWon || s == GameLost
}

// GameSummary is the read-only view of a game.
type GameSummary struct {
	ID            uint64    `json:"id"`
	Owner         Actor     `json:"owner"`
	Epoch         uint64    `json:"epoch"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at,omitempty"`
	RevealedCount int       `json:"revealed_count"`
	SafeRevealed  int       `json:"safe_revealed"`
	State         GameState `json:"state"`
}

// Outcome describes the effect of applying one disclosure.
type Outcome struct {
	GameID  uint64        `json:"game_id"`
	Cell    int           `json:"cell"`
	IsMine  bool          `json:"is_mine"`
	State   GameState     `json:"state"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Finished reports whether the disclosure ended the game.
func (o Outcome) Finished() bool {
	return o.State.Terminal()
}

// RankingEntry is one completed winning run. Seq is its 1-based position in
// the ledger and survives restarts.
type RankingEntry struct {
	Seq         uint64        `json:"seq"`
	Actor       Actor         `json:"actor"`
	Elapsed     time.Duration `json:"elapsed"`
	CompletedAt time.Time     `json:"completed_at"`
}

// ValidCell reports whether cell is inside the board.
func ValidCell(cell int) bool {
	return cell >= 0 && cell < TotalCells
}
