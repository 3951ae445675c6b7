package proxy

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/logging"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
	"github.com/StrathCole/feedproxy-go/pkg/ownership"
)

// GatedConfig configures an AccessGatedProxy.
//
// Setting Authority delegates every whitelist decision to it; Whitelist is
// then ignored. Without an Authority the proxy keeps its own set, seeded from
// Whitelist. The choice is fixed for the lifetime of the proxy.
type GatedConfig struct {
	Name       string
	Owner      common.Address
	Aggregator feed.Backend
	Decimals   uint8

	Authority feed.Authority
	Whitelist []common.Address
	// WhitelistDisabled starts the proxy with checks off. Checks are on by default.
	WhitelistDisabled bool

	Logger *logging.Logger
}

// AccessGatedProxy serves reads from an aggregator to whitelisted callers only.
//
// Unlike FeedProxy it replaces its aggregator in a single step with
// SetAggregator. There is no proposal to inspect first.
type AccessGatedProxy struct {
	name     string
	decimals uint8
	logger   *logging.Logger
	eventHub

	mu        sync.RWMutex
	current   feed.Backend
	owner     *ownership.Ownable
	enabled   bool
	source    whitelist
	local     *localWhitelist
	delegated *delegatedWhitelist
}

// NewAccessGatedProxy creates a gated proxy serving reads from cfg.Aggregator.
func NewAccessGatedProxy(cfg GatedConfig) (*AccessGatedProxy, error) {
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

	p := &AccessGatedProxy{
		name:     cfg.Name,
		decimals: cfg.Decimals,
		logger:   logger,
		eventHub: eventHub{feed: cfg.Name, logger: logger},
		current:  cfg.Aggregator,
		owner:    owner,
		enabled:  !cfg.WhitelistDisabled,
	}
	if cfg.Authority != nil {
		p.delegated = &delegatedWhitelist{authority: cfg.Authority}
		p.source = p.delegated
	} else {
		p.local = newLocalWhitelist(cfg.Whitelist)
		p.source = p.local
	}
	return p, nil
}

// Name returns the feed name.
func (p *AccessGatedProxy) Name() string { return p.name }

// Decimals returns the decimals fixed at construction.
func (p *AccessGatedProxy) Decimals() uint8 { return p.decimals }

// Aggregator returns the address of the aggregator serving reads.
func (p *AccessGatedProxy) Aggregator() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Address()
}

// Delegated reports whether whitelist decisions are made by an authority.
func (p *AccessGatedProxy) Delegated() bool {
	return p.delegated != nil
}

// WhitelistEnabled reports whether reads are checked against the whitelist.
func (p *AccessGatedProxy) WhitelistEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Whitelisted reports whether addr is on the whitelist, regardless of
// whether checks are enabled.
func (p *AccessGatedProxy) Whitelisted(ctx context.Context, addr common.Address) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source.allows(ctx, addr)
}

// Authority returns the address of the delegated authority, if any.
func (p *AccessGatedProxy) Authority() (common.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.delegated == nil {
		return common.Address{}, false
	}
	return p.delegated.authority.Address(), true
}

// IsAuthorized reports whether caller may read. With checks disabled every
// caller is authorized. A failing authority is an error, not a denial.
func (p *AccessGatedProxy) IsAuthorized(ctx context.Context, caller common.Address) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isAuthorized(ctx, caller)
}

func (p *AccessGatedProxy) isAuthorized(ctx context.Context, caller common.Address) (bool, error) {
	if !p.enabled {
		return true, nil
	}
	ok, err := p.source.allows(ctx, caller)
	if err != nil {
		metrics.RecordAuthorityError(p.name)
		p.logger.Warn("Whitelist authority check failed", "caller", caller, "error", err)
		return false, err
	}
	return ok, nil
}

func (p *AccessGatedProxy) authorize(ctx context.Context, caller common.Address) error {
	ok, err := p.isAuthorized(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		metrics.RecordWhitelistDenial(p.name)
		p.logger.Debug("Read denied", "caller", caller)
		return feed.ErrNotWhitelisted
	}
	return nil
}

// gatedRead checks caller and runs fn against the current aggregator under
// a single read lock.
func gatedRead[T any](ctx context.Context, p *AccessGatedProxy, caller common.Address, method string, fn func(feed.Backend) (T, error)) (T, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return read(p.name, method, func() (T, error) {
		if err := p.authorize(ctx, caller); err != nil {
			var zero T
			return zero, err
		}
		return fn(p.current)
	})
}

// LatestAnswer returns the latest answer if caller is authorized.
func (p *AccessGatedProxy) LatestAnswer(ctx context.Context, caller common.Address) (*big.Int, error) {
	return gatedRead(ctx, p, caller, "latestAnswer", func(b feed.Backend) (*big.Int, error) {
		return b.LatestAnswer(ctx)
	})
}

// LatestTimestamp returns the latest update time if caller is authorized.
func (p *AccessGatedProxy) LatestTimestamp(ctx context.Context, caller common.Address) (time.Time, error) {
	return gatedRead(ctx, p, caller, "latestTimestamp", func(b feed.Backend) (time.Time, error) {
		return b.LatestTimestamp(ctx)
	})
}

// LatestRound returns the latest round id if caller is authorized.
func (p *AccessGatedProxy) LatestRound(ctx context.Context, caller common.Address) (*big.Int, error) {
	return gatedRead(ctx, p, caller, "latestRound", func(b feed.Backend) (*big.Int, error) {
		return b.LatestRound(ctx)
	})
}

// GetAnswer returns the answer of a past round if caller is authorized.
func (p *AccessGatedProxy) GetAnswer(ctx context.Context, caller common.Address, roundID *big.Int) (*big.Int, error) {
	return gatedRead(ctx, p, caller, "getAnswer", func(b feed.Backend) (*big.Int, error) {
		return b.GetAnswer(ctx, roundID)
	})
}

// GetTimestamp returns the update time of a past round if caller is authorized.
func (p *AccessGatedProxy) GetTimestamp(ctx context.Context, caller common.Address, roundID *big.Int) (time.Time, error) {
	return gatedRead(ctx, p, caller, "getTimestamp", func(b feed.Backend) (time.Time, error) {
		return b.GetTimestamp(ctx, roundID)
	})
}

// LatestAnswerData returns the latest round id, answer and update time of
// one aggregator if caller is authorized.
func (p *AccessGatedProxy) LatestAnswerData(ctx context.Context, caller common.Address) (feed.Answer, error) {
	return gatedRead(ctx, p, caller, "latestAnswerData", func(b feed.Backend) (feed.Answer, error) {
		return latestAnswerOf(ctx, b)
	})
}

// AnswerData returns the answer and update time of a past round if caller
// is authorized.
func (p *AccessGatedProxy) AnswerData(ctx context.Context, caller common.Address, roundID *big.Int) (feed.Answer, error) {
	return gatedRead(ctx, p, caller, "answerData", func(b feed.Backend) (feed.Answer, error) {
		return answerOf(ctx, b, roundID)
	})
}

// GetRoundData returns a round if caller is authorized.
func (p *AccessGatedProxy) GetRoundData(ctx context.Context, caller common.Address, roundID *big.Int) (feed.RoundData, error) {
	return gatedRead(ctx, p, caller, "getRoundData", func(b feed.Backend) (feed.RoundData, error) {
		return b.GetRoundData(ctx, roundID)
	})
}

// LatestRoundData returns the latest round if caller is authorized.
func (p *AccessGatedProxy) LatestRoundData(ctx context.Context, caller common.Address) (feed.RoundData, error) {
	return gatedRead(ctx, p, caller, "latestRoundData", func(b feed.Backend) (feed.RoundData, error) {
		return b.LatestRoundData(ctx)
	})
}

// SetAggregator replaces the aggregator immediately.
func (p *AccessGatedProxy) SetAggregator(caller common.Address, next feed.Backend) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.onlyOwner("setAggregator", caller); err != nil {
		return err
	}
	if next == nil {
		return feed.ErrNilBackend
	}

	previous := p.current
	p.current = next

	metrics.RecordRotation(p.name, "set")
	p.logger.Info("Aggregator set", "previous", previous.Address(), "current", next.Address())
	p.publish(feed.EventAggregatorSet, previous.Address(), next.Address())
	return nil
}

// SetAuthority points a delegated proxy at another authority.
func (p *AccessGatedProxy) SetAuthority(caller common.Address, authority feed.Authority) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.onlyOwner("setAuthority", caller); err != nil {
		return err
	}
	if p.delegated == nil {
		return ErrLocalWhitelist
	}
	if authority == nil {
		return ErrNilAuthority
	}

	previous := p.delegated.authority
	p.delegated.authority = authority

	p.logger.Info("Whitelist authority set", "previous", previous.Address(), "current", authority.Address())
	p.publish(feed.EventAuthoritySet, previous.Address(), authority.Address())
	return nil
}

// AddToWhitelist grants addr read access. Adding a member again is a no-op.
func (p *AccessGatedProxy) AddToWhitelist(caller, addr common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.onlyOwner("addToWhitelist", caller); err != nil {
		return err
	}
	if p.local == nil {
		return ErrDelegatedWhitelist
	}
	if p.local.add(addr) {
		p.logger.Info("Added to whitelist", "address", addr)
		p.publish(feed.EventAddedToWhitelist, common.Address{}, addr)
	}
	return nil
}

// RemoveFromWhitelist revokes read access. Removing a non-member is a no-op.
func (p *AccessGatedProxy) RemoveFromWhitelist(caller, addr common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.onlyOwner("removeFromWhitelist", caller); err != nil {
		return err
	}
	if p.local == nil {
		return ErrDelegatedWhitelist
	}
	if p.local.remove(addr) {
		p.logger.Info("Removed from whitelist", "address", addr)
		p.publish(feed.EventRemovedFromWhitelist, addr, common.Address{})
	}
	return nil
}

// EnableWhitelist turns checks on. Membership is left as it is.
func (p *AccessGatedProxy) EnableWhitelist(caller common.Address) error {
	return p.toggle("enableWhitelist", caller, true)
}

// DisableWhitelist turns checks off, letting every caller read. Membership
// is left as it is.
func (p *AccessGatedProxy) DisableWhitelist(caller common.Address) error {
	return p.toggle("disableWhitelist", caller, false)
}

func (p *AccessGatedProxy) toggle(operation string, caller common.Address, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.onlyOwner(operation, caller); err != nil {
		return err
	}
	if p.enabled == enabled {
		return nil
	}
	p.enabled = enabled

	eventType := feed.EventWhitelistDisabled
	if enabled {
		eventType = feed.EventWhitelistEnabled
	}
	p.logger.Info("Whitelist toggled", "enabled", enabled)
	p.publish(eventType, common.Address{}, common.Address{})
	return nil
}

// Owner returns the current owner.
func (p *AccessGatedProxy) Owner() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner.Owner()
}

// PendingOwner returns the nominated owner, if any.
func (p *AccessGatedProxy) PendingOwner() (common.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner.PendingOwner()
}

// TransferOwnership nominates a new owner, who must call AcceptOwnership.
func (p *AccessGatedProxy) TransferOwnership(caller, nominee common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return transferOwnership(p.owner, &p.eventHub, p.logger, p.name, caller, nominee)
}

// AcceptOwnership completes an ownership transfer. Only the nominee may call it.
func (p *AccessGatedProxy) AcceptOwnership(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return acceptOwnership(p.owner, &p.eventHub, p.logger, p.name, caller)
}

func (p *AccessGatedProxy) onlyOwner(operation string, caller common.Address) error {
	if err := p.owner.OnlyOwner(caller); err != nil {
		metrics.RecordUnauthorized(p.name, operation)
		p.logger.Warn("Rejected mutation from non-owner", "operation", operation, "caller", caller)
		return err
	}
	return nil
}
