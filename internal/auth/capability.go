package auth

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Capability is the authorization context passed into privileged grid
// operations. The zero value grants nothing.
type Capability struct {
	caller     common.Address
	privileged bool
}

// Caller returns the account the capability was issued for.
func (c Capability) Caller() common.Address { return c.caller }

// Privileged reports whether the caller may initialize or reset the grid.
func (c Capability) Privileged() bool { return c.privileged }

// Admins is the set of accounts allowed to manage the grid.
type Admins struct {
	set map[common.Address]struct{}
}

func NewAdmins(addrs ...common.Address) *Admins {
	a := &Admins{set: make(map[common.Address]struct{}, len(addrs))}
	for _, addr := range addrs {
		a.set[addr] = struct{}{}
	}
	return a
}

// ParseAdmins reads a comma separated list of hex addresses. Invalid entries
// are skipped.
func ParseAdmins(list string) *Admins {
	var addrs []common.Address
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if common.IsHexAddress(s) {
			addrs = append(addrs, common.HexToAddress(s))
		}
	}
	return NewAdmins(addrs...)
}

// Authorize issues a capability for caller.
func (a *Admins) Authorize(caller common.Address) Capability {
	_, ok := a.set[caller]
	return Capability{caller: caller, privileged: ok}
}

func (a *Admins) Len() int { return len(a.set) }
