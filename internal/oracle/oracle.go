// Package oracle defines the boundary to the external encryption and
// decryption service.
package oracle

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"hidden_mines/internal/domain"
)

// MineThreshold is the comparison constant of the is-mine transform:
// a cell holds a mine when its encrypted value is greater than it.
const MineThreshold = 0

// ExternalInput is a client-encrypted value as submitted to the oracle.
type ExternalInput = common.Hash

var (
	ErrUnknownHandle  = errors.New("oracle: unknown handle")
	ErrNotDisclosable = errors.New("oracle: handle is not publicly decryptable")
)

// Oracle is consumed by the engine.
type Oracle interface {
	// ImportInputs checks the batch proof and converts every input into an
	// is-mine handle. It either converts all inputs or returns an error.
	ImportInputs(ctx context.Context, inputs []ExternalInput, proof []byte) ([]domain.Handle, error)
	// AllowPublicDecryption marks a handle as disclosable.
	AllowPublicDecryption(ctx context.Context, handle domain.Handle) error
}

// Discloser produces attested disclosures off the engine's path.
type Discloser interface {
	Disclose(ctx context.Context, handle domain.Handle) (cleartext bool, proof []byte, err error)
}
