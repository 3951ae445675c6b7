package proxy

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/logging"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
	"github.com/StrathCole/feedproxy-go/pkg/ownership"
	"github.com/StrathCole/feedproxy-go/pkg/pending"
)

// Config configures a FeedProxy.
type Config struct {
	Name       string
	Owner      common.Address
	Aggregator feed.Backend
	// Decimals is advertised for the lifetime of the proxy, whatever the
	// decimals of later aggregators.
	Decimals uint8
	Logger   *logging.Logger
}

// FeedProxy gives consumers a stable handle on a feed whose aggregator is
// replaced over time.
//
// Replacing the aggregator takes two steps. The owner proposes a candidate;
// anyone can then read it through ProposedGetRoundData and
// ProposedLatestRoundData and compare it with the live feed; finally the
// owner confirms the exact candidate that was proposed.
//
// All state sits behind one RWMutex. A read holds the read lock for the whole
// backend call, so a confirm never lands in the middle of a read.
type FeedProxy struct {
	name     string
	decimals uint8
	logger   *logging.Logger
	eventHub

	mu       sync.RWMutex
	current  feed.Backend
	proposed pending.Pending[feed.Backend]
	owner    *ownership.Ownable
}

// NewFeedProxy creates a proxy serving reads from cfg.Aggregator.
func NewFeedProxy(cfg Config) (*FeedProxy, error) {
	if cfg.Name == "" {
		return nil, ErrNameRequired
	}
	if cfg.Aggregator == nil {
		return nil, feed.ErrNilBackend
	}
	owner, err := ownership.New(cfg.Owner)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Global()
	}
	logger = logger.With("feed", cfg.Name)

	metrics.RecordProposalPending(cfg.Name, false)

	return &FeedProxy{
		name:     cfg.Name,
		decimals: cfg.Decimals,
		logger:   logger,
		eventHub: eventHub{feed: cfg.Name, logger: logger},
		current:  cfg.Aggregator,
		owner:    owner,
	}, nil
}

// Name returns the feed name.
func (p *FeedProxy) Name() string { return p.name }

// Decimals returns the decimals fixed at construction.
func (p *FeedProxy) Decimals() uint8 { return p.decimals }

// Aggregator returns the address of the aggregator serving reads.
func (p *FeedProxy) Aggregator() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Address()
}

// ProposedAggregator returns the address of the proposed aggregator, if any.
func (p *FeedProxy) ProposedAggregator() (common.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.proposed.Get()
	if !ok {
		return common.Address{}, false
	}
	return b.Address(), true
}

// LatestAnswer returns the latest answer of the current aggregator.
func (p *FeedProxy) LatestAnswer(ctx context.Context) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "latestAnswer", func() (*big.Int, error) {
		return p.current.LatestAnswer(ctx)
	})
}

// LatestTimestamp returns the time of the current aggregator's latest update.
func (p *FeedProxy) LatestTimestamp(ctx context.Context) (time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "latestTimestamp", func() (time.Time, error) {
		return p.current.LatestTimestamp(ctx)
	})
}

// LatestRound returns the current aggregator's latest round id.
func (p *FeedProxy) LatestRound(ctx context.Context) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "latestRound", func() (*big.Int, error) {
		return p.current.LatestRound(ctx)
	})
}

// GetAnswer returns the answer of a past round of the current aggregator.
func (p *FeedProxy) GetAnswer(ctx context.Context, roundID *big.Int) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "getAnswer", func() (*big.Int, error) {
		return p.current.GetAnswer(ctx, roundID)
	})
}

// GetTimestamp returns the update time of a past round of the current aggregator.
func (p *FeedProxy) GetTimestamp(ctx context.Context, roundID *big.Int) (time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "getTimestamp", func() (time.Time, error) {
		return p.current.GetTimestamp(ctx, roundID)
	})
}

// LatestAnswerData returns the latest round id with its answer and update
// time. All three come from the same aggregator, legacy ones included.
func (p *FeedProxy) LatestAnswerData(ctx context.Context) (feed.Answer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "latestAnswerData", func() (feed.Answer, error) {
		return latestAnswerOf(ctx, p.current)
	})
}

// AnswerData returns the answer and update time of a past round of the
// current aggregator.
func (p *FeedProxy) AnswerData(ctx context.Context, roundID *big.Int) (feed.Answer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "answerData", func() (feed.Answer, error) {
		return answerOf(ctx, p.current, roundID)
	})
}

// GetRoundData returns a round of the current aggregator. Legacy aggregators
// fail with feed.ErrIncompatibleBackend; the proxy does not fill in for them.
func (p *FeedProxy) GetRoundData(ctx context.Context, roundID *big.Int) (feed.RoundData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "getRoundData", func() (feed.RoundData, error) {
		return p.current.GetRoundData(ctx, roundID)
	})
}

// LatestRoundData returns the latest round of the current aggregator.
func (p *FeedProxy) LatestRoundData(ctx context.Context) (feed.RoundData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "latestRoundData", func() (feed.RoundData, error) {
		return p.current.LatestRoundData(ctx)
	})
}

// ProposedGetRoundData reads a round from the proposed aggregator. Anyone may
// call it.
func (p *FeedProxy) ProposedGetRoundData(ctx context.Context, roundID *big.Int) (feed.RoundData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "proposedGetRoundData", func() (feed.RoundData, error) {
		b, ok := p.proposed.Get()
		if !ok {
			return feed.RoundData{}, feed.ErrNoProposalPending
		}
		return b.GetRoundData(ctx, roundID)
	})
}

// ProposedLatestRoundData reads the latest round from the proposed
// aggregator. Anyone may call it.
func (p *FeedProxy) ProposedLatestRoundData(ctx context.Context) (feed.RoundData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, "proposedLatestRoundData", func() (feed.RoundData, error) {
		b, ok := p.proposed.Get()
		if !ok {
			return feed.RoundData{}, feed.ErrNoProposalPending
		}
		return b.LatestRoundData(ctx)
	})
}

// ProposeAggregator stages candidate, replacing any earlier proposal. The
// candidate is not exercised here.
func (p *FeedProxy) ProposeAggregator(caller common.Address, candidate feed.Backend) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.onlyOwner("proposeAggregator", caller); err != nil {
		return err
	}
	if candidate == nil {
		return feed.ErrNilBackend
	}

	var previous common.Address
	if b, ok := p.proposed.Get(); ok {
		previous = b.Address()
	}
	p.proposed.Stage(candidate)

	metrics.RecordProposalPending(p.name, true)
	p.logger.Info("Aggregator proposed", "current", p.current.Address(), "proposed", candidate.Address())
	p.publish(feed.EventAggregatorProposed, previous, candidate.Address())
	return nil
}

// ConfirmAggregator switches reads to the proposed aggregator. address must
// be exactly the pending proposal; otherwise nothing changes and
// feed.ErrProposalMismatch is returned. That includes the case where address
// is already the current aggregator.
func (p *FeedProxy) ConfirmAggregator(caller, address common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.onlyOwner("confirmAggregator", caller); err != nil {
		return err
	}

	next, err := p.proposed.Consume(func(b feed.Backend) bool {
		return b.Address() == address
	})
	if err != nil {
		if errors.Is(err, pending.ErrNothingPending) {
			p.logger.Warn("Confirm without proposal", "address", address)
		} else {
			p.logger.Warn("Confirm does not match proposal", "address", address)
		}
		return feed.Classify(feed.ErrProposalMismatch, err)
	}

	previous := p.current
	p.current = next

	metrics.RecordProposalPending(p.name, false)
	metrics.RecordRotation(p.name, "confirm")
	p.logger.Info("Aggregator confirmed", "previous", previous.Address(), "current", next.Address())
	p.publish(feed.EventAggregatorConfirmed, previous.Address(), next.Address())
	return nil
}

// Owner returns the current owner.
func (p *FeedProxy) Owner() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner.Owner()
}

// PendingOwner returns the nominated owner, if any.
func (p *FeedProxy) PendingOwner() (common.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner.PendingOwner()
}

// TransferOwnership nominates a new owner, who must call AcceptOwnership.
func (p *FeedProxy) TransferOwnership(caller, nominee common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return transferOwnership(p.owner, &p.eventHub, p.logger, p.name, caller, nominee)
}

// AcceptOwnership completes an ownership transfer. Only the nominee may call it.
func (p *FeedProxy) AcceptOwnership(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return acceptOwnership(p.owner, &p.eventHub, p.logger, p.name, caller)
}

func (p *FeedProxy) onlyOwner(operation string, caller common.Address) error {
	if err := p.owner.OnlyOwner(caller); err != nil {
		metrics.RecordUnauthorized(p.name, operation)
		p.logger.Warn("Rejected mutation from non-owner", "operation", operation, "caller", caller)
		return err
	}
	return nil
}

// Shared by both proxies; callers hold their write lock.

func transferOwnership(o *ownership.Ownable, hub *eventHub, logger *logging.Logger, name string, caller, nominee common.Address) error {
	if err := o.TransferOwnership(caller, nominee); err != nil {
		metrics.RecordUnauthorized(name, "transferOwnership")
		logger.Warn("Rejected ownership transfer", "caller", caller)
		return err
	}
	logger.Info("Ownership transfer requested", "owner", caller, "nominee", nominee)
	hub.publish(feed.EventOwnershipTransferRequested, caller, nominee)
	return nil
}

func acceptOwnership(o *ownership.Ownable, hub *eventHub, logger *logging.Logger, name string, caller common.Address) error {
	previous, err := o.AcceptOwnership(caller)
	if err != nil {
		metrics.RecordUnauthorized(name, "acceptOwnership")
		logger.Warn("Rejected ownership acceptance", "caller", caller)
		return err
	}
	metrics.RecordOwnershipTransfer(name)
	logger.Info("Ownership transferred", "previous", previous, "owner", caller)
	hub.publish(feed.EventOwnershipTransferred, previous, caller)
	return nil
}
