package api

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/proxy"
)

// Feed is the surface the API serves. Reads take the caller so gated and
// ungated proxies are served the same way.
type Feed interface {
	Name() string
	Decimals() uint8
	Aggregator() common.Address
	Owner() common.Address
	PendingOwner() (common.Address, bool)

	LatestAnswer(ctx context.Context, caller common.Address) (*big.Int, error)
	LatestTimestamp(ctx context.Context, caller common.Address) (time.Time, error)
	LatestRound(ctx context.Context, caller common.Address) (*big.Int, error)
	GetAnswer(ctx context.Context, caller common.Address, roundID *big.Int) (*big.Int, error)
	GetTimestamp(ctx context.Context, caller common.Address, roundID *big.Int) (time.Time, error)
	GetRoundData(ctx context.Context, caller common.Address, roundID *big.Int) (feed.RoundData, error)
	LatestRoundData(ctx context.Context, caller common.Address) (feed.RoundData, error)
	LatestAnswerData(ctx context.Context, caller common.Address) (feed.Answer, error)
	AnswerData(ctx context.Context, caller common.Address, roundID *big.Int) (feed.Answer, error)

	TransferOwnership(caller, nominee common.Address) error
	AcceptOwnership(caller common.Address) error

	Subscribe(ch chan<- feed.Event)
	Unsubscribe(ch chan<- feed.Event)
}

// rotator is implemented by feeds that rotate through propose/confirm.
type rotator interface {
	ProposedAggregator() (common.Address, bool)
	ProposedLatestRoundData(ctx context.Context) (feed.RoundData, error)
	ProposedGetRoundData(ctx context.Context, roundID *big.Int) (feed.RoundData, error)
	ProposeAggregator(caller common.Address, candidate feed.Backend) error
	ConfirmAggregator(caller, address common.Address) error
}

// gate is implemented by feeds with a whitelist in front of reads.
type gate interface {
	IsAuthorized(ctx context.Context, caller common.Address) (bool, error)
	WhitelistEnabled() bool
	Delegated() bool
	Authority() (common.Address, bool)
	SetAggregator(caller common.Address, next feed.Backend) error
	SetAuthority(caller common.Address, authority feed.Authority) error
	AddToWhitelist(caller, addr common.Address) error
	RemoveFromWhitelist(caller, addr common.Address) error
	EnableWhitelist(caller common.Address) error
	DisableWhitelist(caller common.Address) error
}

var (
	_ Feed    = (*proxy.AccessGatedProxy)(nil)
	_ gate    = (*proxy.AccessGatedProxy)(nil)
	_ Feed    = ungated{}
	_ rotator = ungated{}
)

// ungated serves a FeedProxy through Feed. Anyone may read it, so the
// caller is dropped.
type ungated struct {
	*proxy.FeedProxy
}

// Ungated adapts p to Feed.
func Ungated(p *proxy.FeedProxy) Feed {
	return ungated{p}
}

func (u ungated) LatestAnswer(ctx context.Context, _ common.Address) (*big.Int, error) {
	return u.FeedProxy.LatestAnswer(ctx)
}

func (u ungated) LatestTimestamp(ctx context.Context, _ common.Address) (time.Time, error) {
	return u.FeedProxy.LatestTimestamp(ctx)
}

func (u ungated) LatestRound(ctx context.Context, _ common.Address) (*big.Int, error) {
	return u.FeedProxy.LatestRound(ctx)
}

func (u ungated) GetAnswer(ctx context.Context, _ common.Address, roundID *big.Int) (*big.Int, error) {
	return u.FeedProxy.GetAnswer(ctx, roundID)
}

func (u ungated) GetTimestamp(ctx context.Context, _ common.Address, roundID *big.Int) (time.Time, error) {
	return u.FeedProxy.GetTimestamp(ctx, roundID)
}

func (u ungated) GetRoundData(ctx context.Context, _ common.Address, roundID *big.Int) (feed.RoundData, error) {
	return u.FeedProxy.GetRoundData(ctx, roundID)
}

func (u ungated) LatestRoundData(ctx context.Context, _ common.Address) (feed.RoundData, error) {
	return u.FeedProxy.LatestRoundData(ctx)
}

func (u ungated) LatestAnswerData(ctx context.Context, _ common.Address) (feed.Answer, error) {
	return u.FeedProxy.LatestAnswerData(ctx)
}

func (u ungated) AnswerData(ctx context.Context, _ common.Address, roundID *big.Int) (feed.Answer, error) {
	return u.FeedProxy.AnswerData(ctx, roundID)
}
