package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

// fakeChain answers eth_call with ABI-packed canned outputs keyed by method.
// Methods without a canned response return empty data, as a contract
// without that function and without a fallback would through a node.
type fakeChain struct {
	t         *testing.T
	abi       abi.ABI
	responses map[string][]interface{}
	errs      map[string]error
	calls     []string
}

func newFakeChain(t *testing.T, abiJSON string) *fakeChain {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	return &fakeChain{
		t:         t,
		abi:       parsed,
		responses: make(map[string][]interface{}),
		errs:      make(map[string]error),
	}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	require.GreaterOrEqual(f.t, len(msg.Data), 4)
	method, err := f.abi.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	f.calls = append(f.calls, method.Name)

	if err := f.errs[method.Name]; err != nil {
		return nil, err
	}
	values, ok := f.responses[method.Name]
	if !ok {
		return nil, nil
	}
	return method.Outputs.Pack(values...)
}

var _ ethereum.ContractCaller = (*fakeChain)(nil)

// revertError mimics the JSON-RPC error a node returns for a revert.
type revertError struct {
	msg  string
	data string
}

func (e *revertError) Error() string          { return e.msg }
func (e *revertError) ErrorCode() int         { return 3 }
func (e *revertError) ErrorData() interface{} { return e.data }

func newRevert(t *testing.T, reason string) error {
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return &revertError{
		msg:  "execution reverted: " + reason,
		data: hexutil.Encode(append(selector, packed...)),
	}
}

var aggAddr = common.HexToAddress("0x00000000000000000000000000000000000000a9")

func fluxChain(t *testing.T) *fakeChain {
	chain := newFakeChain(t, aggregatorABIJSON)
	chain.responses["decimals"] = []interface{}{uint8(8)}
	chain.responses["latestAnswer"] = []interface{}{big.NewInt(54321)}
	chain.responses["latestTimestamp"] = []interface{}{big.NewInt(678)}
	chain.responses["latestRound"] = []interface{}{big.NewInt(17)}
	chain.responses["getAnswer"] = []interface{}{big.NewInt(54321)}
	chain.responses["getTimestamp"] = []interface{}{big.NewInt(678)}
	round := []interface{}{big.NewInt(17), big.NewInt(54321), big.NewInt(677), big.NewInt(678), big.NewInt(17)}
	chain.responses["getRoundData"] = round
	chain.responses["latestRoundData"] = round
	return chain
}

func TestAggregator_Reads(t *testing.T) {
	ctx := context.Background()
	agg, err := NewAggregator(fluxChain(t), aggAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, aggAddr, agg.Address())

	decimals, err := agg.Decimals(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), decimals)

	answer, err := agg.LatestAnswer(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(54321), answer.Int64())

	ts, err := agg.LatestTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(678, 0), ts)

	round, err := agg.LatestRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(17), round.Int64())

	byRound, err := agg.GetAnswer(ctx, round)
	require.NoError(t, err)
	assert.Equal(t, int64(54321), byRound.Int64())

	tsByRound, err := agg.GetTimestamp(ctx, round)
	require.NoError(t, err)
	assert.Equal(t, ts, tsByRound)

	rd, err := agg.GetRoundData(ctx, round)
	require.NoError(t, err)
	assert.Equal(t, int64(17), rd.RoundID.Int64())
	assert.Equal(t, int64(54321), rd.Answer.Int64())
	assert.Equal(t, time.Unix(677, 0), rd.StartedAt)
	assert.Equal(t, time.Unix(678, 0), rd.UpdatedAt)
	assert.Equal(t, int64(17), rd.AnsweredInRound.Int64())

	latest, err := agg.LatestRoundData(ctx)
	require.NoError(t, err)
	assert.Equal(t, rd, latest)
}

func TestAggregator_RoundDataErrors(t *testing.T) {
	tests := []struct {
		name      string
		callErr   error
		noData    bool
		wantIs    error
		wantNotIs error
	}{
		{
			name:      "legacy aggregator returns nothing",
			noData:    true,
			wantIs:    feed.ErrIncompatibleBackend,
			wantNotIs: feed.ErrBackendUnavailable,
		},
		{
			name:      "revert without reason",
			callErr:   errors.New("execution reverted"),
			wantIs:    feed.ErrIncompatibleBackend,
			wantNotIs: feed.ErrBackendUnavailable,
		},
		{
			name:      "revert with reason",
			callErr:   newRevert(t, "No data present"),
			wantIs:    feed.ErrBackendUnavailable,
			wantNotIs: feed.ErrIncompatibleBackend,
		},
		{
			name:      "transport failure",
			callErr:   errors.New("dial tcp: connection refused"),
			wantIs:    feed.ErrBackendUnavailable,
			wantNotIs: feed.ErrIncompatibleBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := fluxChain(t)
			if tt.noData {
				delete(chain.responses, "getRoundData")
				delete(chain.responses, "latestRoundData")
			}
			if tt.callErr != nil {
				chain.errs["getRoundData"] = tt.callErr
				chain.errs["latestRoundData"] = tt.callErr
			}
			agg, err := NewAggregator(chain, aggAddr, nil)
			require.NoError(t, err)

			_, err = agg.GetRoundData(context.Background(), big.NewInt(1))
			assert.ErrorIs(t, err, tt.wantIs)
			assert.NotErrorIs(t, err, tt.wantNotIs)

			_, err = agg.LatestRoundData(context.Background())
			assert.ErrorIs(t, err, tt.wantIs)

			// The plain reads keep working on a legacy aggregator.
			_, err = agg.LatestAnswer(context.Background())
			assert.NoError(t, err)
		})
	}
}

func TestAggregator_ReadFailure(t *testing.T) {
	chain := fluxChain(t)
	boom := errors.New("connection reset")
	chain.errs["latestAnswer"] = boom

	agg, err := NewAggregator(chain, aggAddr, nil)
	require.NoError(t, err)

	_, err = agg.LatestAnswer(context.Background())
	assert.ErrorIs(t, err, feed.ErrBackendUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestRevertReason(t *testing.T) {
	assert.Equal(t, "No data present", revertReason(newRevert(t, "No data present")))
	assert.Empty(t, revertReason(errors.New("execution reverted")))
	assert.True(t, isRevert(errors.New("execution reverted")))
	assert.False(t, isRevert(errors.New("timeout")))
}

func TestAuthority_IsWhitelisted(t *testing.T) {
	ctx := context.Background()
	member := common.HexToAddress("0x0000000000000000000000000000000000000001")
	chain := newFakeChain(t, authorityABIJSON)
	chain.responses["isWhitelisted"] = []interface{}{true}

	auth, err := NewAuthority(chain, common.HexToAddress("0x00000000000000000000000000000000000000b0"))
	require.NoError(t, err)

	ok, err := auth.IsWhitelisted(ctx, member)
	require.NoError(t, err)
	assert.True(t, ok)

	chain.responses["isWhitelisted"] = []interface{}{false}
	ok, err = auth.IsWhitelisted(ctx, member)
	require.NoError(t, err)
	assert.False(t, ok)

	chain.errs["isWhitelisted"] = errors.New("execution reverted")
	_, err = auth.IsWhitelisted(ctx, member)
	assert.ErrorIs(t, err, feed.ErrAuthorityUnavailable)

	delete(chain.errs, "isWhitelisted")
	delete(chain.responses, "isWhitelisted")
	_, err = auth.IsWhitelisted(ctx, member)
	assert.ErrorIs(t, err, feed.ErrAuthorityUnavailable)
}

func TestFactories_RequireRPCURL(t *testing.T) {
	_, err := NewAggregatorFromConfig(map[string]interface{}{"address": aggAddr.Hex()})
	assert.ErrorIs(t, err, ErrRPCURLRequired)

	_, err = NewAuthorityFromConfig(map[string]interface{}{"address": aggAddr.Hex()})
	assert.ErrorIs(t, err, ErrRPCURLRequired)
}
