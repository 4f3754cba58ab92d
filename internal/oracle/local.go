package oracle

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"hidden_mines/internal/attest"
	"hidden_mines/internal/domain"
)

var inputProofTag = []byte("hidden-mines/input-proof")

// Local simulates the coprocessor and the KMS in process. Values are kept
// in clear in memory; it exists for development and tests.
type Local struct {
	mu          sync.RWMutex
	domain      []byte
	coprocessor *ecdsa.PrivateKey
	kms         []*ecdsa.PrivateKey
	inputs      map[ExternalInput]uint64
	secrets     map[domain.Handle]bool
	public      map[domain.Handle]bool
	imports     uint64
}

// NewLocal creates a simulator with n KMS signing keys.
func NewLocal(domainTag string, n int) (*Local, error) {
	if n < 1 {
		return nil, fmt.Errorf("oracle: need at least one kms key, got %d", n)
	}
	cp, err := gethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		if keys[i], err = gethcrypto.GenerateKey(); err != nil {
			return nil, err
		}
	}
	return &Local{
		domain:      []byte(domainTag),
		coprocessor: cp,
		kms:         keys,
		inputs:      make(map[ExternalInput]uint64),
		secrets:     make(map[domain.Handle]bool),
		public:      make(map[domain.Handle]bool),
	}, nil
}

// Signers returns the KMS addresses a verifier should trust.
func (l *Local) Signers() []common.Address {
	out := make([]common.Address, len(l.kms))
	for i, k := range l.kms {
		out[i] = gethcrypto.PubkeyToAddress(k.PublicKey)
	}
	return out
}

// LayoutValues turns mine positions into one plaintext value per cell. The
// layout must name exactly domain.MineCount distinct cells, otherwise the
// fixed win threshold would not match the board.
func LayoutValues(mines []int) ([]uint64, error) {
	if len(mines) != domain.MineCount {
		return nil, fmt.Errorf("oracle: %w: got %d mines, want %d", domain.ErrWrongCount, len(mines), domain.MineCount)
	}
	values := make([]uint64, domain.TotalCells)
	for _, m := range mines {
		if !domain.ValidCell(m) {
			return nil, fmt.Errorf("oracle: mine position %d: %w", m, domain.ErrInvalidCellIndex)
		}
		if values[m] > MineThreshold {
			return nil, fmt.Errorf("oracle: %w: duplicate mine position %d", domain.ErrWrongCount, m)
		}
		values[m] = MineThreshold + 1
	}
	return values, nil
}

// Encrypt registers values and returns their external inputs together with
// the batch proof ImportInputs expects.
func (l *Local) Encrypt(values []uint64) ([]ExternalInput, []byte, error) {
	inputs := make([]ExternalInput, len(values))

	l.mu.Lock()
	for i, v := range values {
		var salt [32]byte
		if _, err := rand.Read(salt[:]); err != nil {
			l.mu.Unlock()
			return nil, nil, err
		}
		inputs[i] = keccak(salt[:])
		l.inputs[inputs[i]] = v
	}
	l.mu.Unlock()

	proof, err := gethcrypto.Sign(inputDigest(inputs), l.coprocessor)
	if err != nil {
		return nil, nil, err
	}
	return inputs, proof, nil
}

// ImportInputs implements Oracle.
func (l *Local) ImportInputs(ctx context.Context, inputs []ExternalInput, proof []byte) ([]domain.Handle, error) {
	if len(proof) != attest.SignatureSize {
		return nil, domain.ErrInvalidProof
	}
	signer, err := attest.RecoverSigner(inputDigest(inputs), proof)
	if err != nil || signer != gethcrypto.PubkeyToAddress(l.coprocessor.PublicKey) {
		return nil, domain.ErrInvalidProof
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	values := make([]uint64, len(inputs))
	for i, in := range inputs {
		v, ok := l.inputs[in]
		if !ok {
			return nil, fmt.Errorf("oracle: input %d: %w", i, ErrUnknownHandle)
		}
		values[i] = v
	}

	l.imports++
	handles := make([]domain.Handle, len(inputs))
	for i, in := range inputs {
		var idx [16]byte
		binary.BigEndian.PutUint64(idx[:8], l.imports)
		binary.BigEndian.PutUint64(idx[8:], uint64(i))
		handles[i] = keccak(in.Bytes(), idx[:])
		l.secrets[handles[i]] = values[i] > MineThreshold
	}
	return handles, nil
}

// AllowPublicDecryption implements Oracle.
func (l *Local) AllowPublicDecryption(ctx context.Context, handle domain.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.secrets[handle]; !ok {
		return ErrUnknownHandle
	}
	l.public[handle] = true
	return nil
}

// Disclose implements Discloser: every KMS key signs the cleartext.
func (l *Local) Disclose(ctx context.Context, handle domain.Handle) (bool, []byte, error) {
	l.mu.RLock()
	value, ok := l.secrets[handle]
	public := l.public[handle]
	l.mu.RUnlock()

	if !ok {
		return false, nil, ErrUnknownHandle
	}
	if !public {
		return false, nil, ErrNotDisclosable
	}

	proof := make([]byte, 0, len(l.kms)*attest.SignatureSize)
	for _, k := range l.kms {
		sig, err := attest.Sign(k, l.domain, handle, value)
		if err != nil {
			return false, nil, err
		}
		proof = append(proof, sig...)
	}
	return value, proof, nil
}

func inputDigest(inputs []ExternalInput) []byte {
	parts := make([][]byte, 0, len(inputs)+1)
	parts = append(parts, inputProofTag)
	for _, in := range inputs {
		parts = append(parts, in.Bytes())
	}
	return keccak(parts...).Bytes()
}

func keccak(parts ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}
