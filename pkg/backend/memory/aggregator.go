package memory

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

// Aggregator is an in-memory aggregator with full round data support.
type Aggregator struct {
	rounds
	address  common.Address
	decimals uint8
}

var (
	_ feed.Backend        = (*Aggregator)(nil)
	_ feed.DecimalsReader = (*Aggregator)(nil)
)

// NewAggregator creates an aggregator whose first round holds initialAnswer.
func NewAggregator(address common.Address, decimals uint8, initialAnswer *big.Int) *Aggregator {
	a := &Aggregator{
		address:  address,
		decimals: decimals,
	}
	a.init()
	if initialAnswer != nil {
		a.push(initialAnswer)
	}
	return a
}

// Address implements feed.Backend.
func (a *Aggregator) Address() common.Address { return a.address }

// Decimals implements feed.DecimalsReader.
func (a *Aggregator) Decimals(_ context.Context) (uint8, error) {
	return a.decimals, nil
}

// UpdateAnswer records answer as a new round stamped with the current time
// and returns its round id.
func (a *Aggregator) UpdateAnswer(answer *big.Int) *big.Int {
	return a.push(answer)
}

// UpdateRoundData records a round verbatim and makes it the latest round.
func (a *Aggregator) UpdateRoundData(roundID, answer *big.Int, updatedAt, startedAt time.Time) {
	a.put(roundID, answer, updatedAt, startedAt)
}

// SetFailure makes every read fail with err until it is cleared with nil.
func (a *Aggregator) SetFailure(err error) { a.setFailure(err) }

// SetClock replaces the clock used to stamp new rounds.
func (a *Aggregator) SetClock(now func() time.Time) { a.setClock(now) }

// LatestAnswer implements feed.Backend.
func (a *Aggregator) LatestAnswer(_ context.Context) (*big.Int, error) { return a.latestAnswer() }

// LatestTimestamp implements feed.Backend.
func (a *Aggregator) LatestTimestamp(_ context.Context) (time.Time, error) {
	return a.latestTimestamp()
}

// LatestRound implements feed.Backend.
func (a *Aggregator) LatestRound(_ context.Context) (*big.Int, error) { return a.latestRound() }

// GetAnswer implements feed.Backend.
func (a *Aggregator) GetAnswer(_ context.Context, roundID *big.Int) (*big.Int, error) {
	return a.answer(roundID)
}

// GetTimestamp implements feed.Backend.
func (a *Aggregator) GetTimestamp(_ context.Context, roundID *big.Int) (time.Time, error) {
	return a.timestamp(roundID)
}

// GetRoundData implements feed.Backend. Unknown rounds fail with
// feed.ErrRoundNotFound.
func (a *Aggregator) GetRoundData(_ context.Context, roundID *big.Int) (feed.RoundData, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.failure != nil {
		return feed.RoundData{}, a.failure
	}
	return a.roundData(roundID)
}

// LatestRoundData implements feed.Backend.
func (a *Aggregator) LatestRoundData(_ context.Context) (feed.RoundData, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.failure != nil {
		return feed.RoundData{}, a.failure
	}
	return a.roundData(a.latest)
}

// roundData must be called with the read lock held.
func (a *Aggregator) roundData(roundID *big.Int) (feed.RoundData, error) {
	rd, ok := a.get(roundID)
	if !ok {
		return feed.RoundData{}, fmt.Errorf("%w: round %s", feed.ErrRoundNotFound, roundID)
	}
	return feed.RoundData{
		RoundID:         new(big.Int).Set(roundID),
		Answer:          new(big.Int).Set(rd.answer),
		StartedAt:       rd.startedAt,
		UpdatedAt:       rd.updatedAt,
		AnsweredInRound: new(big.Int).Set(roundID),
	}, nil
}
