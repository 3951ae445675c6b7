// Package facade adapts a legacy aggregator to the round data interface, so
// an old feed can be rotated onto a proxy whose consumers expect round data.
package facade

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

// Facade serves round data assembled from a legacy aggregator's answer and
// timestamp history. A round counts as present when its timestamp is set;
// startedAt equals updatedAt and answeredInRound equals the round id, since
// the legacy aggregator records nothing more.
type Facade struct {
	address  common.Address
	inner    feed.Backend
	decimals uint8
}

var (
	_ feed.Backend        = (*Facade)(nil)
	_ feed.DecimalsReader = (*Facade)(nil)
)

// New wraps inner. The facade is reachable under its own address.
func New(address common.Address, inner feed.Backend, decimals uint8) (*Facade, error) {
	if inner == nil {
		return nil, feed.ErrNilBackend
	}
	return &Facade{address: address, inner: inner, decimals: decimals}, nil
}

// Address implements feed.Backend.
func (f *Facade) Address() common.Address { return f.address }

// Inner returns the wrapped aggregator.
func (f *Facade) Inner() feed.Backend { return f.inner }

// Decimals implements feed.DecimalsReader.
func (f *Facade) Decimals(_ context.Context) (uint8, error) { return f.decimals, nil }

// LatestAnswer implements feed.Backend.
func (f *Facade) LatestAnswer(ctx context.Context) (*big.Int, error) {
	return f.inner.LatestAnswer(ctx)
}

// LatestTimestamp implements feed.Backend.
func (f *Facade) LatestTimestamp(ctx context.Context) (time.Time, error) {
	return f.inner.LatestTimestamp(ctx)
}

// LatestRound implements feed.Backend.
func (f *Facade) LatestRound(ctx context.Context) (*big.Int, error) {
	return f.inner.LatestRound(ctx)
}

// GetAnswer implements feed.Backend.
func (f *Facade) GetAnswer(ctx context.Context, roundID *big.Int) (*big.Int, error) {
	return f.inner.GetAnswer(ctx, roundID)
}

// GetTimestamp implements feed.Backend.
func (f *Facade) GetTimestamp(ctx context.Context, roundID *big.Int) (time.Time, error) {
	return f.inner.GetTimestamp(ctx, roundID)
}

// GetRoundData implements feed.Backend.
func (f *Facade) GetRoundData(ctx context.Context, roundID *big.Int) (feed.RoundData, error) {
	return f.roundData(ctx, roundID)
}

// LatestRoundData implements feed.Backend.
func (f *Facade) LatestRoundData(ctx context.Context) (feed.RoundData, error) {
	latest, err := f.inner.LatestRound(ctx)
	if err != nil {
		return feed.RoundData{}, err
	}
	return f.roundData(ctx, latest)
}

func (f *Facade) roundData(ctx context.Context, roundID *big.Int) (feed.RoundData, error) {
	answer, err := f.inner.GetAnswer(ctx, roundID)
	if err != nil {
		return feed.RoundData{}, err
	}
	updatedAt, err := f.inner.GetTimestamp(ctx, roundID)
	if err != nil {
		return feed.RoundData{}, err
	}
	if updatedAt.IsZero() || updatedAt.Unix() == 0 {
		return feed.RoundData{}, fmt.Errorf("%w: round %s", feed.ErrRoundNotFound, roundID)
	}
	return feed.RoundData{
		RoundID:         new(big.Int).Set(roundID),
		Answer:          answer,
		StartedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: new(big.Int).Set(roundID),
	}, nil
}
