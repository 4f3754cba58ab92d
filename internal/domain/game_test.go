package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrAlreadyPending, "already_pending"},
		{fmt.Errorf("reveal: %w", ErrInvalidProof), "invalid_proof"},
		{ErrCellNotHidden, "cell_not_hidden"},
		{errors.New("boom"), "internal"},
	}

	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Fatalf("Code(%v) = %s; want %s", tc.err, got, tc.want)
		}
	}
}

func TestValidCell(t *testing.T) {
	if !ValidCell(0) || !ValidCell(TotalCells-1) {
		t.Fatalf("expected board corners to be valid")
	}
	if ValidCell(-1) || ValidCell(TotalCells) {
		t.Fatalf("expected out of range cells to be invalid")
	}
}

func TestGameStateTerminal(t *testing.T) {
	for _, s := range []GameState{GameInactive, GameActive} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	for _, s := range []GameState{GameWon, GameLost} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}
