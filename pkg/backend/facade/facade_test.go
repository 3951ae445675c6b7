package facade

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/backend/memory"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

func TestFacade_RoundDataFromLegacyAggregator(t *testing.T) {
	ctx := context.Background()
	legacy := memory.NewHistoric(common.HexToAddress("0x01"), big.NewInt(54321))

	f, err := New(common.HexToAddress("0xfa"), legacy, 18)
	require.NoError(t, err)

	_, err = legacy.LatestRoundData(ctx)
	require.ErrorIs(t, err, feed.ErrIncompatibleBackend)

	roundID, err := legacy.LatestRound(ctx)
	require.NoError(t, err)

	rd, err := f.GetRoundData(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, 0, roundID.Cmp(rd.RoundID))
	assert.Equal(t, int64(54321), rd.Answer.Int64())
	assert.Equal(t, rd.UpdatedAt, rd.StartedAt)
	assert.Equal(t, 0, roundID.Cmp(rd.AnsweredInRound))

	latest, err := f.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, rd, latest)
}

func TestFacade_MissingRound(t *testing.T) {
	legacy := memory.NewHistoric(common.HexToAddress("0x01"), big.NewInt(1))
	f, err := New(common.HexToAddress("0xfa"), legacy, 18)
	require.NoError(t, err)

	_, err = f.GetRoundData(context.Background(), big.NewInt(42))
	assert.ErrorIs(t, err, feed.ErrRoundNotFound)
}

func TestFacade_RequiresInner(t *testing.T) {
	_, err := New(common.HexToAddress("0xfa"), nil, 18)
	assert.ErrorIs(t, err, feed.ErrNilBackend)
}

func TestFacade_FromConfig(t *testing.T) {
	b, err := backend.Create("facade", map[string]interface{}{
		"address":  "0x00000000000000000000000000000000000000fa",
		"decimals": 8,
		"inner": map[string]interface{}{
			"type": "historic",
			"config": map[string]interface{}{
				"address": "0x0000000000000000000000000000000000000001",
				"answer":  7,
			},
		},
	})
	require.NoError(t, err)

	rd, err := b.LatestRoundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), rd.Answer.Int64())

	_, err = backend.Create("facade", map[string]interface{}{
		"address": "0x00000000000000000000000000000000000000fa",
	})
	assert.ErrorIs(t, err, ErrInnerRequired)
}

func TestFacade_Inner(t *testing.T) {
	ctx := context.Background()
	legacy := memory.NewHistoric(common.HexToAddress("0x01"), big.NewInt(1))
	f, err := New(common.HexToAddress("0xfa"), legacy, 18)
	require.NoError(t, err)

	assert.Same(t, legacy, f.Inner())
	assert.Equal(t, common.HexToAddress("0xfa"), f.Address())

	// Updates on the wrapped aggregator show through the facade.
	roundID := legacy.UpdateAnswer(big.NewInt(2))
	rd, err := f.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, roundID.Cmp(rd.RoundID))
	assert.Equal(t, int64(2), rd.Answer.Int64())
}
