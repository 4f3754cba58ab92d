// Package attest checks that a claimed cleartext belongs to a secret handle.
//
// Disclosures are attested by the oracle's key management service: every KMS
// signer signs the digest of (domain, handle, cleartext) with its secp256k1
// key. A disclosure is trusted once a threshold of distinct registered signers
// have signed it. Verification needs no further oracle interaction.
package attest

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"hidden_mines/internal/domain"
)

// SignatureSize is the length of one R || S || V signature.
const SignatureSize = 65

var (
	ErrNoSigners        = errors.New("attest: signer set is empty")
	ErrThresholdInvalid = errors.New("attest: threshold must be >= 1 and <= number of signers")
)

// Verifier validates a disclosure. Implementations must be pure.
type Verifier interface {
	Verify(handle domain.Handle, cleartext bool, proof []byte) bool
}

// KMSVerifier accepts proofs carrying at least threshold signatures from a
// fixed signer set.
type KMSVerifier struct {
	domain    []byte
	signers   map[common.Address]struct{}
	threshold int
}

func NewKMSVerifier(domainTag string, signers []common.Address, threshold int) (*KMSVerifier, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}
	set := make(map[common.Address]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	if threshold < 1 || threshold > len(set) {
		return nil, ErrThresholdInvalid
	}
	return &KMSVerifier{
		domain:    []byte(domainTag),
		signers:   set,
		threshold: threshold,
	}, nil
}

// ParseSigners reads a comma separated list of hex addresses.
func ParseSigners(list string) ([]common.Address, error) {
	var out []common.Address
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("attest: invalid signer address %q", s)
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}

func (v *KMSVerifier) Threshold() int { return v.threshold }

// Verify recovers every signature in proof and counts distinct registered
// signers. Malformed signatures invalidate the whole proof.
func (v *KMSVerifier) Verify(handle domain.Handle, cleartext bool, proof []byte) bool {
	if len(proof) == 0 || len(proof)%SignatureSize != 0 {
		return false
	}
	digest := Digest(v.domain, handle, cleartext)

	seen := make(map[common.Address]struct{})
	for off := 0; off < len(proof); off += SignatureSize {
		signer, err := RecoverSigner(digest, proof[off:off+SignatureSize])
		if err != nil {
			return false
		}
		if _, ok := v.signers[signer]; !ok {
			continue
		}
		seen[signer] = struct{}{}
	}
	return len(seen) >= v.threshold
}

// Digest is the message every KMS signer signs for one disclosure:
// keccak256(domain || handle || uint256(cleartext)).
func Digest(domainTag []byte, handle domain.Handle, cleartext bool) []byte {
	value := uint256.NewInt(0)
	if cleartext {
		value.SetOne()
	}
	word := value.Bytes32()
	return gethcrypto.Keccak256(domainTag, handle.Bytes(), word[:])
}

// Sign produces one proof segment for the disclosure.
func Sign(key *ecdsa.PrivateKey, domainTag []byte, handle domain.Handle, cleartext bool) ([]byte, error) {
	return gethcrypto.Sign(Digest(domainTag, handle, cleartext), key)
}

// RecoverSigner returns the address that produced a 65-byte signature over digest.
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	normalized := make([]byte, SignatureSize)
	copy(normalized, sig)
	// wallets commonly emit V as 27/28
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := gethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, err
	}
	return gethcrypto.PubkeyToAddress(*pub), nil
}
