// Package grid holds the global encrypted mine layout shared by all games.
package grid

import (
	"context"
	"fmt"
	"sync"

	"hidden_mines/internal/auth"
	"hidden_mines/internal/domain"
	"hidden_mines/internal/oracle"
)

// Store owns one is-mine handle per cell. The table is replaced as a whole on
// initialization and never mutated in place. Each initialize/reset cycle is
// an epoch.
type Store struct {
	mu          sync.RWMutex
	oracle      oracle.Oracle
	handles     [domain.TotalCells]domain.Handle
	initialized bool
	epoch       uint64
}

func NewStore(o oracle.Oracle) *Store {
	return &Store{oracle: o}
}

// Initialize converts inputs through the oracle and installs the resulting
// handles. Nothing becomes visible unless every conversion succeeded.
func (s *Store) Initialize(ctx context.Context, cap auth.Capability, inputs []oracle.ExternalInput, proof []byte) (uint64, error) {
	handles, err := s.Convert(ctx, cap, inputs, proof)
	if err != nil {
		return 0, err
	}
	return s.Install(handles)
}

// Convert runs the oracle import without holding the store lock. The
// result is installed with Install.
func (s *Store) Convert(ctx context.Context, cap auth.Capability, inputs []oracle.ExternalInput, proof []byte) ([]domain.Handle, error) {
	if !cap.Privileged() {
		return nil, domain.ErrNotPrivileged
	}
	if s.Initialized() {
		return nil, domain.ErrAlreadyInitialized
	}
	if len(inputs) != domain.TotalCells {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrWrongCount, len(inputs), domain.TotalCells)
	}

	handles, err := s.oracle.ImportInputs(ctx, inputs, proof)
	if err != nil {
		return nil, fmt.Errorf("import grid: %w", err)
	}
	if len(handles) != domain.TotalCells {
		return nil, fmt.Errorf("%w: oracle returned %d handles", domain.ErrWrongCount, len(handles))
	}
	return handles, nil
}

// Install swaps in a converted table and starts a new epoch. It fails if
// another initialization won in the meantime.
func (s *Store) Install(handles []domain.Handle) (uint64, error) {
	if len(handles) != domain.TotalCells {
		return 0, fmt.Errorf("%w: got %d handles", domain.ErrWrongCount, len(handles))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return 0, domain.ErrAlreadyInitialized
	}
	copy(s.handles[:], handles)
	s.initialized = true
	s.epoch++
	return s.epoch, nil
}

// HandleFor returns the handle of cell in the current epoch.
func (s *Store) HandleFor(cell int) (domain.Handle, error) {
	if !domain.ValidCell(cell) {
		return domain.Handle{}, domain.ErrInvalidCellIndex
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return domain.Handle{}, domain.ErrGridNotInitialized
	}
	return s.handles[cell], nil
}

// Reset invalidates the current layout. Handles already handed out stay
// valid for pending disclosures.
func (s *Store) Reset(cap auth.Capability) error {
	if !cap.Privileged() {
		return domain.ErrNotPrivileged
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.handles = [domain.TotalCells]domain.Handle{}
	return nil
}

func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Epoch is the number of successful initializations so far.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}
