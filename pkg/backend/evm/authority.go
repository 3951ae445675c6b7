package evm

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
)

// Authority asks a payment contract whether an address is whitelisted.
// Every failure, reverts included, is reported as feed.ErrAuthorityUnavailable.
type Authority struct {
	contract
}

var _ feed.Authority = (*Authority)(nil)

// NewAuthority binds a whitelist authority contract at address.
func NewAuthority(caller ethereum.ContractCaller, address common.Address) (*Authority, error) {
	c, err := newContract(caller, address, authorityABIJSON)
	if err != nil {
		return nil, err
	}
	return &Authority{contract: c}, nil
}

// Address implements feed.Authority.
func (a *Authority) Address() common.Address { return a.address }

// IsWhitelisted implements feed.Authority.
func (a *Authority) IsWhitelisted(ctx context.Context, addr common.Address) (bool, error) {
	start := time.Now()
	out, err := a.call(ctx, "isWhitelisted", addr)
	if err != nil {
		metrics.RecordBackendCall(a.address.Hex(), "isWhitelisted", "error", time.Since(start))
		return false, feed.Classify(feed.ErrAuthorityUnavailable, err)
	}
	metrics.RecordBackendCall(a.address.Hex(), "isWhitelisted", "ok", time.Since(start))

	values, err := a.abi.Unpack("isWhitelisted", out)
	if err != nil {
		return false, feed.Classify(feed.ErrAuthorityUnavailable, fmt.Errorf("failed to unpack isWhitelisted result: %w", err))
	}
	if len(values) != 1 {
		return false, feed.Classify(feed.ErrAuthorityUnavailable, ErrUnexpectedOutput)
	}
	ok, isBool := values[0].(bool)
	if !isBool {
		return false, feed.Classify(feed.ErrAuthorityUnavailable, fmt.Errorf("%w: isWhitelisted returned %T", ErrUnexpectedOutput, values[0]))
	}
	return ok, nil
}
