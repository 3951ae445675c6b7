package feed

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RoundData is one round of a feed as reported by an aggregator.
// Round ids are passed through verbatim; proxies never renumber them.
type RoundData struct {
	RoundID         *big.Int  `json:"roundId"`
	Answer          *big.Int  `json:"answer"`
	StartedAt       time.Time `json:"startedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	AnsweredInRound *big.Int  `json:"answeredInRound"`
}

// Answer is an answer with its round id and update time. It is read through
// the legacy surface, so every aggregator can serve it.
type Answer struct {
	RoundID   *big.Int
	Answer    *big.Int
	UpdatedAt time.Time
}

// Backend is an aggregator serving reads behind a proxy.
//
// Legacy aggregators only track answers and timestamps. They still satisfy
// Backend, but GetRoundData and LatestRoundData fail with an error matching
// ErrIncompatibleBackend. Proxies call the methods and let that failure
// surface; they never check for support up front.
type Backend interface {
	// Address identifies the aggregator.
	Address() common.Address

	LatestAnswer(ctx context.Context) (*big.Int, error)
	LatestTimestamp(ctx context.Context) (time.Time, error)
	LatestRound(ctx context.Context) (*big.Int, error)
	GetAnswer(ctx context.Context, roundID *big.Int) (*big.Int, error)
	GetTimestamp(ctx context.Context, roundID *big.Int) (time.Time, error)

	GetRoundData(ctx context.Context, roundID *big.Int) (RoundData, error)
	LatestRoundData(ctx context.Context) (RoundData, error)
}

// DecimalsReader is implemented by backends that advertise their own
// decimals. Proxies read it once, at construction, when no explicit value is
// configured.
type DecimalsReader interface {
	Decimals(ctx context.Context) (uint8, error)
}

// Authority answers whether an address may read from a gated proxy.
type Authority interface {
	Address() common.Address
	IsWhitelisted(ctx context.Context, addr common.Address) (bool, error)
}
