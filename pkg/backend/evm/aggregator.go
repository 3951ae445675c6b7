package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/logging"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
)

// Aggregator is a feed.Backend backed by an aggregator contract.
//
// Failures of the round data pair are classified as follows: an empty
// result or a revert without a reason means the contract lacks the method
// (feed.ErrIncompatibleBackend); a revert with a reason is the contract
// rejecting the round; anything else is feed.ErrBackendUnavailable.
type Aggregator struct {
	contract
	logger *logging.Logger
}

var (
	_ feed.Backend        = (*Aggregator)(nil)
	_ feed.DecimalsReader = (*Aggregator)(nil)
)

// NewAggregator binds an aggregator contract at address.
func NewAggregator(caller ethereum.ContractCaller, address common.Address, logger *logging.Logger) (*Aggregator, error) {
	c, err := newContract(caller, address, aggregatorABIJSON)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Aggregator{contract: c, logger: logger}, nil
}

// Address implements feed.Backend.
func (a *Aggregator) Address() common.Address { return a.address }

// Decimals implements feed.DecimalsReader.
func (a *Aggregator) Decimals(ctx context.Context) (uint8, error) {
	var decimals uint8
	if err := a.single(ctx, &decimals, "decimals"); err != nil {
		return 0, err
	}
	return decimals, nil
}

// LatestAnswer implements feed.Backend.
func (a *Aggregator) LatestAnswer(ctx context.Context) (*big.Int, error) {
	return a.bigInt(ctx, "latestAnswer")
}

// LatestTimestamp implements feed.Backend.
func (a *Aggregator) LatestTimestamp(ctx context.Context) (time.Time, error) {
	ts, err := a.bigInt(ctx, "latestTimestamp")
	if err != nil {
		return time.Time{}, err
	}
	return unixTime(ts), nil
}

// LatestRound implements feed.Backend.
func (a *Aggregator) LatestRound(ctx context.Context) (*big.Int, error) {
	return a.bigInt(ctx, "latestRound")
}

// GetAnswer implements feed.Backend.
func (a *Aggregator) GetAnswer(ctx context.Context, roundID *big.Int) (*big.Int, error) {
	return a.bigInt(ctx, "getAnswer", roundID)
}

// GetTimestamp implements feed.Backend.
func (a *Aggregator) GetTimestamp(ctx context.Context, roundID *big.Int) (time.Time, error) {
	ts, err := a.bigInt(ctx, "getTimestamp", roundID)
	if err != nil {
		return time.Time{}, err
	}
	return unixTime(ts), nil
}

// GetRoundData implements feed.Backend.
func (a *Aggregator) GetRoundData(ctx context.Context, roundID *big.Int) (feed.RoundData, error) {
	return a.roundData(ctx, "getRoundData", roundID)
}

// LatestRoundData implements feed.Backend.
func (a *Aggregator) LatestRoundData(ctx context.Context) (feed.RoundData, error) {
	return a.roundData(ctx, "latestRoundData")
}

func (a *Aggregator) roundData(ctx context.Context, method string, args ...interface{}) (feed.RoundData, error) {
	start := time.Now()
	out, err := a.call(ctx, method, args...)
	if err != nil {
		metrics.RecordBackendCall(a.address.Hex(), method, "error", time.Since(start))
		return feed.RoundData{}, a.classifyRoundDataError(method, err)
	}
	metrics.RecordBackendCall(a.address.Hex(), method, "ok", time.Since(start))

	var rd struct {
		RoundId         *big.Int //nolint:revive // field name fixed by the ABI output name
		Answer          *big.Int
		StartedAt       *big.Int
		UpdatedAt       *big.Int
		AnsweredInRound *big.Int
	}
	if err := a.abi.UnpackIntoInterface(&rd, method, out); err != nil {
		return feed.RoundData{}, feed.Unavailable(fmt.Errorf("failed to unpack %s result: %w", method, err))
	}

	return feed.RoundData{
		RoundID:         rd.RoundId,
		Answer:          rd.Answer,
		StartedAt:       unixTime(rd.StartedAt),
		UpdatedAt:       unixTime(rd.UpdatedAt),
		AnsweredInRound: rd.AnsweredInRound,
	}, nil
}

func (a *Aggregator) classifyRoundDataError(method string, err error) error {
	switch {
	case errors.Is(err, ErrEmptyResult):
		return feed.Classify(feed.ErrIncompatibleBackend, err)
	case isRevert(err):
		if reason := revertReason(err); reason != "" {
			a.logger.Debug("Round data call reverted", "aggregator", a.address, "method", method, "reason", reason)
			return feed.Unavailable(fmt.Errorf("%s reverted with %q: %w", method, reason, err))
		}
		return feed.Classify(feed.ErrIncompatibleBackend, err)
	default:
		return feed.Unavailable(err)
	}
}

// bigInt calls a method with a single integer output.
func (a *Aggregator) bigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var v *big.Int
	if err := a.single(ctx, &v, method, args...); err != nil {
		return nil, err
	}
	return v, nil
}

// single calls a method with exactly one output and stores it in dst.
func (a *Aggregator) single(ctx context.Context, dst interface{}, method string, args ...interface{}) error {
	start := time.Now()
	out, err := a.call(ctx, method, args...)
	if err != nil {
		metrics.RecordBackendCall(a.address.Hex(), method, "error", time.Since(start))
		return feed.Unavailable(err)
	}
	metrics.RecordBackendCall(a.address.Hex(), method, "ok", time.Since(start))

	values, err := a.abi.Unpack(method, out)
	if err != nil {
		return feed.Unavailable(fmt.Errorf("failed to unpack %s result: %w", method, err))
	}
	if len(values) != 1 {
		return feed.Unavailable(fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, method, len(values)))
	}

	switch d := dst.(type) {
	case **big.Int:
		v, ok := values[0].(*big.Int)
		if !ok {
			return feed.Unavailable(fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, values[0]))
		}
		*d = v
	case *uint8:
		v, ok := values[0].(uint8)
		if !ok {
			return feed.Unavailable(fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, values[0]))
		}
		*d = v
	default:
		return fmt.Errorf("%w: unsupported destination %T", ErrUnexpectedOutput, dst)
	}
	return nil
}

func unixTime(ts *big.Int) time.Time {
	if ts == nil || !ts.IsInt64() {
		return time.Time{}
	}
	return time.Unix(ts.Int64(), 0)
}
