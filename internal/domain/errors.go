package domain

import "errors"

// Precondition violations.
var (
	ErrGridNotInitialized = errors.New("grid not initialized")
	ErrAlreadyInitialized = errors.New("grid already initialized")
	ErrWrongCount         = errors.New("wrong number of grid inputs")
	ErrInvalidCellIndex   = errors.New("invalid cell index")
	ErrGameNotFound       = errors.New("game not found")
	ErrGameNotActive      = errors.New("game is not active")
	ErrNotOwner           = errors.New("game belongs to another actor")
	ErrCellNotHidden      = errors.New("cell is not hidden")
	ErrCellNotPending     = errors.New("cell is not pending")
	ErrAlreadyPending     = errors.New("a reveal is already pending")
	ErrNoPending          = errors.New("no pending reveal")
	ErrStaleGame          = errors.New("game belongs to a previous grid epoch")
)

// Trust and privilege failures.
var (
	ErrInvalidProof  = errors.New("invalid proof")
	ErrNotPrivileged = errors.New("caller is not privileged")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrGridNotInitialized, "grid_not_initialized"},
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrWrongCount, "wrong_count"},
	{ErrInvalidCellIndex, "invalid_cell_index"},
	{ErrGameNotFound, "game_not_found"},
	{ErrGameNotActive, "game_not_active"},
	{ErrNotOwner, "not_owner"},
	{ErrCellNotHidden, "cell_not_hidden"},
	{ErrCellNotPending, "cell_not_pending"},
	{ErrAlreadyPending, "already_pending"},
	{ErrNoPending, "no_pending"},
	{ErrStaleGame, "stale_game"},
	{ErrInvalidProof, "invalid_proof"},
	{ErrNotPrivileged, "not_privileged"},
}

// Code returns the stable machine-readable name of an error kind,
// or "internal" when err is not one of the kinds above.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
