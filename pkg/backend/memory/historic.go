package memory

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

// Historic is a legacy aggregator: answers and timestamps only, no round
// data and no decimals.
type Historic struct {
	rounds
	address common.Address
}

var _ feed.Backend = (*Historic)(nil)

// NewHistoric creates a legacy aggregator whose first round holds initialAnswer.
func NewHistoric(address common.Address, initialAnswer *big.Int) *Historic {
	h := &Historic{
		address: address,
	}
	h.init()
	if initialAnswer != nil {
		h.push(initialAnswer)
	}
	return h
}

// Address implements feed.Backend.
func (h *Historic) Address() common.Address { return h.address }

// UpdateAnswer records answer as a new round and returns its round id.
func (h *Historic) UpdateAnswer(answer *big.Int) *big.Int {
	return h.push(answer)
}

// SetFailure makes every read fail with err until it is cleared with nil.
func (h *Historic) SetFailure(err error) { h.setFailure(err) }

// SetClock replaces the clock used to stamp new rounds.
func (h *Historic) SetClock(now func() time.Time) { h.setClock(now) }

// LatestAnswer implements feed.Backend.
func (h *Historic) LatestAnswer(_ context.Context) (*big.Int, error) { return h.latestAnswer() }

// LatestTimestamp implements feed.Backend.
func (h *Historic) LatestTimestamp(_ context.Context) (time.Time, error) {
	return h.latestTimestamp()
}

// LatestRound implements feed.Backend.
func (h *Historic) LatestRound(_ context.Context) (*big.Int, error) { return h.latestRound() }

// GetAnswer implements feed.Backend.
func (h *Historic) GetAnswer(_ context.Context, roundID *big.Int) (*big.Int, error) {
	return h.answer(roundID)
}

// GetTimestamp implements feed.Backend.
func (h *Historic) GetTimestamp(_ context.Context, roundID *big.Int) (time.Time, error) {
	return h.timestamp(roundID)
}

// GetRoundData always fails: legacy aggregators have no such method.
func (h *Historic) GetRoundData(_ context.Context, _ *big.Int) (feed.RoundData, error) {
	return feed.RoundData{}, fmt.Errorf("%w: getRoundData on legacy aggregator %s", feed.ErrIncompatibleBackend, h.address.Hex())
}

// LatestRoundData always fails: legacy aggregators have no such method.
func (h *Historic) LatestRoundData(_ context.Context) (feed.RoundData, error) {
	return feed.RoundData{}, fmt.Errorf("%w: latestRoundData on legacy aggregator %s", feed.ErrIncompatibleBackend, h.address.Hex())
}
