package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

var addrA = common.HexToAddress("0xaa")

func TestAggregator_InitialRound(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(addrA, 18, big.NewInt(54321))

	answer, err := agg.LatestAnswer(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(54321), answer.Int64())

	round, err := agg.LatestRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), round.Int64())

	ts, err := agg.LatestTimestamp(ctx)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	byRound, err := agg.GetAnswer(ctx, round)
	require.NoError(t, err)
	assert.Equal(t, answer, byRound)

	rd, err := agg.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, round, rd.RoundID)
	assert.Equal(t, round, rd.AnsweredInRound)
	assert.Equal(t, answer, rd.Answer)
	assert.Equal(t, rd.StartedAt, rd.UpdatedAt)
}

func TestAggregator_UpdateRoundData(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(addrA, 18, nil)

	updated := time.Unix(678, 0)
	started := time.Unix(677, 0)
	agg.UpdateRoundData(big.NewInt(17), big.NewInt(54321), updated, started)

	round, err := agg.LatestRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(17), round.Int64())

	rd, err := agg.GetRoundData(ctx, big.NewInt(17))
	require.NoError(t, err)
	assert.Equal(t, int64(54321), rd.Answer.Int64())
	assert.Equal(t, started, rd.StartedAt)
	assert.Equal(t, updated, rd.UpdatedAt)

	ts, err := agg.GetTimestamp(ctx, big.NewInt(17))
	require.NoError(t, err)
	assert.Equal(t, updated, ts)
}

func TestAggregator_UnknownRound(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(addrA, 18, big.NewInt(1))

	answer, err := agg.GetAnswer(ctx, big.NewInt(99))
	require.NoError(t, err)
	assert.Zero(t, answer.Sign())

	_, err = agg.GetRoundData(ctx, big.NewInt(99))
	assert.ErrorIs(t, err, feed.ErrRoundNotFound)
}

func TestAggregator_Failure(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(addrA, 18, big.NewInt(1))
	boom := errors.New("boom")
	agg.SetFailure(boom)

	_, err := agg.LatestAnswer(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = agg.LatestRoundData(ctx)
	assert.ErrorIs(t, err, boom)

	agg.SetFailure(nil)
	_, err = agg.LatestAnswer(ctx)
	assert.NoError(t, err)
}

func TestHistoric_NoRoundData(t *testing.T) {
	ctx := context.Background()
	h := NewHistoric(addrA, big.NewInt(67890))

	answer, err := h.LatestAnswer(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(67890), answer.Int64())

	_, err = h.LatestRoundData(ctx)
	assert.ErrorIs(t, err, feed.ErrIncompatibleBackend)
	_, err = h.GetRoundData(ctx, big.NewInt(1))
	assert.ErrorIs(t, err, feed.ErrIncompatibleBackend)
}

func TestRegistry_CreatesMemoryBackends(t *testing.T) {
	b, err := backend.Create("memory", map[string]interface{}{
		"address":  "0x00000000000000000000000000000000000000aa",
		"decimals": 8,
		"answer":   "100000000",
	})
	require.NoError(t, err)
	require.IsType(t, &Aggregator{}, b)
	assert.Equal(t, addrA, b.Address())

	decimals, err := b.(feed.DecimalsReader).Decimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(8), decimals)

	h, err := backend.Create("historic", map[string]interface{}{
		"address": "0x00000000000000000000000000000000000000aa",
		"answer":  5,
	})
	require.NoError(t, err)
	require.IsType(t, &Historic{}, h)

	_, err = backend.Create("memory", map[string]interface{}{})
	assert.ErrorIs(t, err, backend.ErrAddressRequired)

	_, err = backend.Create("nope", nil)
	assert.ErrorIs(t, err, backend.ErrUnknownBackend)
}

func TestSetClock_StampsNewRounds(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 500_000_000, time.UTC)
	clock := func() time.Time { return fixed }

	agg := NewAggregator(addrA, 18, nil)
	agg.SetClock(clock)
	roundID := agg.UpdateAnswer(big.NewInt(54321))

	rd, err := agg.GetRoundData(ctx, roundID)
	require.NoError(t, err)
	assert.True(t, fixed.Truncate(time.Second).Equal(rd.UpdatedAt))
	assert.True(t, rd.StartedAt.Equal(rd.UpdatedAt))

	h := NewHistoric(addrA, nil)
	h.SetClock(clock)
	roundID = h.UpdateAnswer(big.NewInt(67890))

	ts, err := h.GetTimestamp(ctx, roundID)
	require.NoError(t, err)
	assert.True(t, fixed.Truncate(time.Second).Equal(ts))

	latest, err := h.LatestTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, ts.Equal(latest))
}
