// Package ownership implements the two-step owner handshake: the current
// owner nominates a successor, and only that nominee can complete the
// transfer by accepting it.
package ownership

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/pending"
)

// ErrZeroOwner indicates an attempt to use the zero address as owner.
var ErrZeroOwner = errors.New("owner cannot be the zero address")

// Ownable tracks the owner of a component and a nominated successor.
// Like pending.Pending it carries no lock of its own.
type Ownable struct {
	owner   common.Address
	nominee pending.Pending[common.Address]
}

// New returns an Ownable owned by owner.
func New(owner common.Address) (*Ownable, error) {
	if owner == (common.Address{}) {
		return nil, ErrZeroOwner
	}
	return &Ownable{owner: owner}, nil
}

// Owner returns the current owner.
func (o *Ownable) Owner() common.Address {
	return o.owner
}

// PendingOwner returns the nominated successor, if any.
func (o *Ownable) PendingOwner() (common.Address, bool) {
	return o.nominee.Get()
}

// OnlyOwner fails with feed.ErrUnauthorized unless caller is the owner.
func (o *Ownable) OnlyOwner(caller common.Address) error {
	if caller != o.owner {
		return fmt.Errorf("%w: only callable by owner", feed.ErrUnauthorized)
	}
	return nil
}

// TransferOwnership nominates a successor. A later nomination replaces an
// earlier one that was never accepted.
func (o *Ownable) TransferOwnership(caller, nominee common.Address) error {
	if err := o.OnlyOwner(caller); err != nil {
		return err
	}
	o.nominee.Stage(nominee)
	return nil
}

// AcceptOwnership completes the transfer. Only the nominee may call it.
// It returns the previous owner.
func (o *Ownable) AcceptOwnership(caller common.Address) (common.Address, error) {
	_, err := o.nominee.Consume(func(n common.Address) bool { return n == caller })
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: must be proposed owner", feed.ErrUnauthorized)
	}
	previous := o.owner
	o.owner = caller
	return previous, nil
}
