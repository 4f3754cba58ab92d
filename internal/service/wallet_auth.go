package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"hidden_mines/internal/domain"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const signInHeader = "Sign in to Hidden Mines"

var (
	ErrMalformedSignIn = errors.New("malformed sign-in message")
	ErrSignInExpired   = errors.New("sign-in message expired")
	ErrSignInReplayed  = errors.New("sign-in nonce already used")
	ErrSignerMismatch  = errors.New("signature does not match address")
)

// WalletAuth verifies personal_sign sign-in messages. Each nonce is
// accepted once within the freshness window.
type WalletAuth struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	used map[string]time.Time
}

func NewWalletAuth(ttl time.Duration) *WalletAuth {
	return &WalletAuth{
		ttl:  ttl,
		now:  time.Now,
		used: make(map[string]time.Time),
	}
}

// Challenge returns the message the wallet has to sign.
func (w *WalletAuth) Challenge(address common.Address) string {
	return SignInMessage(address, w.now(), uuid.NewString())
}

// SignInMessage formats a sign-in message.
func SignInMessage(address common.Address, issuedAt time.Time, nonce string) string {
	return fmt.Sprintf("%s\naddress: %s\nissued-at: %d\nnonce: %s",
		signInHeader, address.Hex(), issuedAt.Unix(), nonce)
}

// Verify checks a signed sign-in message and returns the signing actor.
func (w *WalletAuth) Verify(message string, signature []byte) (domain.Actor, error) {
	address, issuedAt, nonce, err := parseSignIn(message)
	if err != nil {
		return domain.Actor{}, err
	}

	now := w.now()
	if now.Sub(issuedAt) > w.ttl || issuedAt.Sub(now) > time.Minute {
		return domain.Actor{}, ErrSignInExpired
	}

	if len(signature) != crypto.SignatureLength {
		return domain.Actor{}, ErrSignerMismatch
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil || crypto.PubkeyToAddress(*pub) != address {
		return domain.Actor{}, ErrSignerMismatch
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for n, at := range w.used {
		if now.Sub(at) > w.ttl {
			delete(w.used, n)
		}
	}
	if _, ok := w.used[nonce]; ok {
		return domain.Actor{}, ErrSignInReplayed
	}
	w.used[nonce] = issuedAt

	return address, nil
}

func parseSignIn(message string) (common.Address, time.Time, string, error) {
	lines := strings.Split(message, "\n")
	if len(lines) != 4 || lines[0] != signInHeader {
		return common.Address{}, time.Time{}, "", ErrMalformedSignIn
	}

	fields := make(map[string]string, 3)
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			return common.Address{}, time.Time{}, "", ErrMalformedSignIn
		}
		fields[k] = v
	}

	addr := fields["address"]
	if !common.IsHexAddress(addr) {
		return common.Address{}, time.Time{}, "", ErrMalformedSignIn
	}
	ts, err := strconv.ParseInt(fields["issued-at"], 10, 64)
	if err != nil {
		return common.Address{}, time.Time{}, "", ErrMalformedSignIn
	}
	nonce := fields["nonce"]
	if nonce == "" {
		return common.Address{}, time.Time{}, "", ErrMalformedSignIn
	}

	return common.HexToAddress(addr), time.Unix(ts, 0), nonce, nil
}
