package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

// Authority is an in-memory whitelist authority, standing in for an external
// payment contract that decides who may read.
type Authority struct {
	address common.Address

	mu      sync.RWMutex
	members map[common.Address]struct{}
	failure error
}

var _ feed.Authority = (*Authority)(nil)

// NewAuthority creates an authority that approves the given addresses.
func NewAuthority(address common.Address, members ...common.Address) *Authority {
	a := &Authority{
		address: address,
		members: make(map[common.Address]struct{}, len(members)),
	}
	for _, m := range members {
		a.members[m] = struct{}{}
	}
	return a
}

// Address implements feed.Authority.
func (a *Authority) Address() common.Address { return a.address }

// Add approves addr.
func (a *Authority) Add(addr common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members[addr] = struct{}{}
}

// Remove revokes addr.
func (a *Authority) Remove(addr common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.members, addr)
}

// SetFailure makes every check fail with err until it is cleared with nil.
func (a *Authority) SetFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failure = err
}

// IsWhitelisted implements feed.Authority.
func (a *Authority) IsWhitelisted(_ context.Context, addr common.Address) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.failure != nil {
		return false, a.failure
	}
	_, ok := a.members[addr]
	return ok, nil
}
