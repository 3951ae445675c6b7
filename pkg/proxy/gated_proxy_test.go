package proxy

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/feedproxy-go/pkg/backend/memory"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

var (
	reader       = common.HexToAddress("0x0b0b")
	paymentAddr  = common.HexToAddress("0xc1")
	payment2Addr = common.HexToAddress("0xc2")
)

func newTestAggregator() *memory.Aggregator {
	agg := memory.NewAggregator(aggregatorAddr, 18, nil)
	agg.UpdateRoundData(big.NewInt(17), big.NewInt(54321), time.Unix(678, 0), time.Unix(677, 0))
	return agg
}

func newLocalGated(t *testing.T, disabled bool, members ...common.Address) *AccessGatedProxy {
	t.Helper()
	p, err := NewAccessGatedProxy(GatedConfig{
		Name:              "ETH/USD",
		Owner:             owner,
		Aggregator:        newTestAggregator(),
		Decimals:          18,
		Whitelist:         members,
		WhitelistDisabled: disabled,
	})
	require.NoError(t, err)
	return p
}

func newDelegatedGated(t *testing.T, authority feed.Authority) *AccessGatedProxy {
	t.Helper()
	p, err := NewAccessGatedProxy(GatedConfig{
		Name:       "ETH/USD",
		Owner:      owner,
		Aggregator: newTestAggregator(),
		Decimals:   18,
		Authority:  authority,
	})
	require.NoError(t, err)
	return p
}

// gatedReads calls every gated read once and returns the errors by method.
func gatedReads(ctx context.Context, p *AccessGatedProxy, caller common.Address) map[string]error {
	round := big.NewInt(17)
	errs := make(map[string]error)
	_, errs["latestAnswer"] = p.LatestAnswer(ctx, caller)
	_, errs["latestTimestamp"] = p.LatestTimestamp(ctx, caller)
	_, errs["latestRound"] = p.LatestRound(ctx, caller)
	_, errs["getAnswer"] = p.GetAnswer(ctx, caller, round)
	_, errs["getTimestamp"] = p.GetTimestamp(ctx, caller, round)
	_, errs["getRoundData"] = p.GetRoundData(ctx, caller, round)
	_, errs["latestRoundData"] = p.LatestRoundData(ctx, caller)
	return errs
}

func TestAccessGatedProxy_EnabledByDefault(t *testing.T) {
	p := newLocalGated(t, false)
	assert.True(t, p.WhitelistEnabled())
	assert.False(t, p.Delegated())

	for method, err := range gatedReads(context.Background(), p, stranger) {
		assert.ErrorIs(t, err, feed.ErrNotWhitelisted, method)
	}
}

func TestAccessGatedProxy_WhitelistedCaller(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, false, reader)

	for method, err := range gatedReads(ctx, p, reader) {
		assert.NoError(t, err, method)
	}

	answer, err := p.LatestAnswer(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(54321), answer.Int64())

	rd, err := p.GetRoundData(ctx, reader, big.NewInt(17))
	require.NoError(t, err)
	assert.Equal(t, int64(17), rd.RoundID.Int64())
	assert.Equal(t, int64(54321), rd.Answer.Int64())
	assert.Equal(t, int64(677), rd.StartedAt.Unix())
	assert.Equal(t, int64(678), rd.UpdatedAt.Unix())
}

func TestAccessGatedProxy_ToggleScenario(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, true)

	_, err := p.LatestAnswer(ctx, reader)
	require.NoError(t, err)

	require.NoError(t, p.EnableWhitelist(owner))
	_, err = p.LatestAnswer(ctx, reader)
	assert.ErrorIs(t, err, feed.ErrNotWhitelisted)

	require.NoError(t, p.AddToWhitelist(owner, reader))
	_, err = p.LatestAnswer(ctx, reader)
	require.NoError(t, err)

	// Disabling keeps the membership for when checks come back on.
	require.NoError(t, p.DisableWhitelist(owner))
	_, err = p.LatestAnswer(ctx, stranger)
	require.NoError(t, err)

	require.NoError(t, p.EnableWhitelist(owner))
	ok, err := p.Whitelisted(ctx, reader)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = p.LatestAnswer(ctx, stranger)
	assert.ErrorIs(t, err, feed.ErrNotWhitelisted)
}

func TestAccessGatedProxy_IdempotentMutations(t *testing.T) {
	p := newLocalGated(t, false)
	events := make(chan feed.Event, 8)
	p.Subscribe(events)

	require.NoError(t, p.AddToWhitelist(owner, reader))
	require.NoError(t, p.AddToWhitelist(owner, reader))
	require.NoError(t, p.RemoveFromWhitelist(owner, reader))
	require.NoError(t, p.RemoveFromWhitelist(owner, reader))
	require.NoError(t, p.EnableWhitelist(owner))
	require.NoError(t, p.DisableWhitelist(owner))
	require.NoError(t, p.DisableWhitelist(owner))

	var types []feed.EventType
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []feed.EventType{
		feed.EventAddedToWhitelist,
		feed.EventRemovedFromWhitelist,
		feed.EventWhitelistDisabled,
	}, types)
}

func TestAccessGatedProxy_IsAuthorized(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, false, reader)

	ok, err := p.IsAuthorized(ctx, reader)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.IsAuthorized(ctx, stranger)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.DisableWhitelist(owner))
	ok, err = p.IsAuthorized(ctx, stranger)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccessGatedProxy_NonOwnerMutations(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, false, reader)
	replacement := memory.NewAggregator(aggregator2Addr, 18, big.NewInt(67890))

	assert.ErrorIs(t, p.AddToWhitelist(stranger, stranger), feed.ErrUnauthorized)
	assert.ErrorIs(t, p.RemoveFromWhitelist(stranger, reader), feed.ErrUnauthorized)
	assert.ErrorIs(t, p.DisableWhitelist(stranger), feed.ErrUnauthorized)
	assert.ErrorIs(t, p.EnableWhitelist(stranger), feed.ErrUnauthorized)
	assert.ErrorIs(t, p.SetAggregator(stranger, replacement), feed.ErrUnauthorized)
	assert.ErrorIs(t, p.TransferOwnership(stranger, stranger), feed.ErrUnauthorized)

	ok, err := p.Whitelisted(ctx, stranger)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = p.Whitelisted(ctx, reader)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, p.WhitelistEnabled())
	assert.Equal(t, aggregatorAddr, p.Aggregator())
	assert.Equal(t, owner, p.Owner())
}

func TestAccessGatedProxy_SetAggregator(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, false, reader)
	events := make(chan feed.Event, 1)
	p.Subscribe(events)

	replacement := memory.NewAggregator(aggregator2Addr, 8, big.NewInt(67890))
	require.NoError(t, p.SetAggregator(owner, replacement))

	answer, err := p.LatestAnswer(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(67890), answer.Int64())
	assert.Equal(t, aggregator2Addr, p.Aggregator())
	assert.Equal(t, uint8(18), p.Decimals())

	event := <-events
	assert.Equal(t, feed.EventAggregatorSet, event.Type)
	assert.Equal(t, aggregatorAddr, event.From)
	assert.Equal(t, aggregator2Addr, event.To)

	assert.ErrorIs(t, p.SetAggregator(owner, nil), feed.ErrNilBackend)
}

func TestAccessGatedProxy_LegacyAggregator(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, false, reader)
	require.NoError(t, p.SetAggregator(owner, memory.NewHistoric(historicAddr, big.NewInt(54321))))

	_, err := p.LatestAnswer(ctx, reader)
	require.NoError(t, err)

	_, err = p.LatestRoundData(ctx, reader)
	assert.ErrorIs(t, err, feed.ErrIncompatibleBackend)

	// The whitelist check comes first.
	_, err = p.LatestRoundData(ctx, stranger)
	assert.ErrorIs(t, err, feed.ErrNotWhitelisted)
}

func TestAccessGatedProxy_Delegated(t *testing.T) {
	ctx := context.Background()
	authority := memory.NewAuthority(paymentAddr)
	p := newDelegatedGated(t, authority)
	assert.True(t, p.Delegated())

	addr, ok := p.Authority()
	require.True(t, ok)
	assert.Equal(t, paymentAddr, addr)

	_, err := p.LatestAnswer(ctx, reader)
	assert.ErrorIs(t, err, feed.ErrNotWhitelisted)

	authority.Add(reader)
	answer, err := p.LatestAnswer(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(54321), answer.Int64())

	// Local mutators do not apply to a delegated whitelist.
	assert.ErrorIs(t, p.AddToWhitelist(owner, stranger), ErrDelegatedWhitelist)
	assert.ErrorIs(t, p.RemoveFromWhitelist(owner, reader), ErrDelegatedWhitelist)

	require.NoError(t, p.DisableWhitelist(owner))
	_, err = p.LatestAnswer(ctx, stranger)
	require.NoError(t, err)
}

func TestAccessGatedProxy_AuthorityFailure(t *testing.T) {
	ctx := context.Background()
	authority := memory.NewAuthority(paymentAddr, reader)
	p := newDelegatedGated(t, authority)

	rpcErr := errors.New("authority timed out")
	authority.SetFailure(rpcErr)

	for method, err := range gatedReads(ctx, p, reader) {
		assert.ErrorIs(t, err, feed.ErrAuthorityUnavailable, method)
		assert.NotErrorIs(t, err, feed.ErrNotWhitelisted, method)
		assert.ErrorIs(t, err, rpcErr, method)
	}

	_, err := p.IsAuthorized(ctx, reader)
	assert.ErrorIs(t, err, feed.ErrAuthorityUnavailable)

	authority.SetFailure(nil)
	_, err = p.LatestAnswer(ctx, reader)
	require.NoError(t, err)
}

func TestAccessGatedProxy_SetAuthority(t *testing.T) {
	ctx := context.Background()
	first := memory.NewAuthority(paymentAddr)
	second := memory.NewAuthority(payment2Addr, reader)
	p := newDelegatedGated(t, first)

	assert.ErrorIs(t, p.SetAuthority(stranger, second), feed.ErrUnauthorized)
	assert.ErrorIs(t, p.SetAuthority(owner, nil), ErrNilAuthority)

	require.NoError(t, p.SetAuthority(owner, second))
	addr, _ := p.Authority()
	assert.Equal(t, payment2Addr, addr)

	_, err := p.LatestAnswer(ctx, reader)
	require.NoError(t, err)

	local := newLocalGated(t, false)
	assert.ErrorIs(t, local.SetAuthority(owner, second), ErrLocalWhitelist)
	_, ok := local.Authority()
	assert.False(t, ok)
}

func TestAccessGatedProxy_Ownership(t *testing.T) {
	p := newLocalGated(t, false)

	require.NoError(t, p.TransferOwnership(owner, nominee))
	assert.ErrorIs(t, p.AcceptOwnership(stranger), feed.ErrUnauthorized)
	require.NoError(t, p.AcceptOwnership(nominee))
	assert.Equal(t, nominee, p.Owner())

	assert.ErrorIs(t, p.AddToWhitelist(owner, reader), feed.ErrUnauthorized)
	require.NoError(t, p.AddToWhitelist(nominee, reader))
}

func TestAccessGatedProxy_MutationsWaitForInFlightRead(t *testing.T) {
	agg2 := memory.NewAggregator(aggregator2Addr, 18, big.NewInt(67890))

	tests := []struct {
		name   string
		mutate func(p *AccessGatedProxy) error
		// after checks the reader's view once the mutation has applied.
		after func(t *testing.T, answer *big.Int, err error)
	}{
		{
			name:   "set aggregator",
			mutate: func(p *AccessGatedProxy) error { return p.SetAggregator(owner, agg2) },
			after: func(t *testing.T, answer *big.Int, err error) {
				require.NoError(t, err)
				assert.Equal(t, int64(67890), answer.Int64())
			},
		},
		{
			name:   "disable whitelist",
			mutate: func(p *AccessGatedProxy) error { return p.DisableWhitelist(owner) },
			after: func(t *testing.T, answer *big.Int, err error) {
				require.NoError(t, err)
				assert.Equal(t, int64(54321), answer.Int64())
			},
		},
		{
			name:   "remove from whitelist",
			mutate: func(p *AccessGatedProxy) error { return p.RemoveFromWhitelist(owner, reader) },
			after: func(t *testing.T, _ *big.Int, err error) {
				assert.ErrorIs(t, err, feed.ErrNotWhitelisted)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			slow := newBlockingBackend(memory.NewAggregator(aggregatorAddr, 18, big.NewInt(54321)))
			p, err := NewAccessGatedProxy(GatedConfig{
				Name:       "ETH/USD",
				Owner:      owner,
				Aggregator: slow,
				Decimals:   18,
				Whitelist:  []common.Address{reader},
			})
			require.NoError(t, err)

			var wg sync.WaitGroup
			var readAnswer *big.Int
			var readErr error
			wg.Add(1)
			go func() {
				defer wg.Done()
				readAnswer, readErr = p.LatestAnswer(ctx, reader)
			}()
			<-slow.entered

			mutated := make(chan error, 1)
			go func() {
				mutated <- tt.mutate(p)
			}()

			select {
			case <-mutated:
				t.Fatal("mutation completed while a gated read was in flight")
			case <-time.After(50 * time.Millisecond):
			}

			close(slow.release)
			wg.Wait()
			require.NoError(t, <-mutated)

			// The in-flight read saw the state from before the mutation.
			require.NoError(t, readErr)
			assert.Equal(t, int64(54321), readAnswer.Int64())

			answer, err := p.LatestAnswer(ctx, reader)
			tt.after(t, answer, err)
		})
	}
}

func TestAccessGatedProxy_ConcurrentReadsDuringToggles(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, false, reader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(caller common.Address) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				answer, err := p.LatestAnswer(ctx, caller)
				if err != nil {
					assert.ErrorIs(t, err, feed.ErrNotWhitelisted)
					continue
				}
				assert.Equal(t, int64(54321), answer.Int64())
			}
		}([]common.Address{reader, stranger}[i%2])
	}

	for j := 0; j < 50; j++ {
		require.NoError(t, p.DisableWhitelist(owner))
		require.NoError(t, p.AddToWhitelist(owner, stranger))
		require.NoError(t, p.EnableWhitelist(owner))
		require.NoError(t, p.RemoveFromWhitelist(owner, stranger))
	}
	wg.Wait()

	_, err := p.LatestAnswer(ctx, stranger)
	assert.ErrorIs(t, err, feed.ErrNotWhitelisted)
	_, err = p.LatestAnswer(ctx, reader)
	assert.NoError(t, err)
}

func TestAccessGatedProxy_AnswerData(t *testing.T) {
	ctx := context.Background()
	p := newLocalGated(t, false, reader)

	_, err := p.LatestAnswerData(ctx, stranger)
	assert.ErrorIs(t, err, feed.ErrNotWhitelisted)

	a, err := p.LatestAnswerData(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, int64(17), a.RoundID.Int64())
	assert.Equal(t, int64(54321), a.Answer.Int64())
	assert.Equal(t, int64(678), a.UpdatedAt.Unix())

	a, err = p.AnswerData(ctx, reader, big.NewInt(17))
	require.NoError(t, err)
	assert.Equal(t, int64(54321), a.Answer.Int64())
}
