package proxy

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

// whitelist answers whether a caller may read. A gated proxy picks one
// variant at construction and keeps it for its lifetime.
type whitelist interface {
	allows(ctx context.Context, caller common.Address) (bool, error)
}

// localWhitelist is a set of addresses held by the proxy.
type localWhitelist struct {
	members map[common.Address]struct{}
}

func newLocalWhitelist(members []common.Address) *localWhitelist {
	l := &localWhitelist{members: make(map[common.Address]struct{}, len(members))}
	for _, m := range members {
		l.members[m] = struct{}{}
	}
	return l
}

func (l *localWhitelist) allows(_ context.Context, caller common.Address) (bool, error) {
	_, ok := l.members[caller]
	return ok, nil
}

// add reports whether addr was newly added.
func (l *localWhitelist) add(addr common.Address) bool {
	if _, ok := l.members[addr]; ok {
		return false
	}
	l.members[addr] = struct{}{}
	return true
}

// remove reports whether addr was present.
func (l *localWhitelist) remove(addr common.Address) bool {
	if _, ok := l.members[addr]; !ok {
		return false
	}
	delete(l.members, addr)
	return true
}

// delegatedWhitelist asks an external authority. A failed check is an
// error, never a denial.
type delegatedWhitelist struct {
	authority feed.Authority
}

func (d *delegatedWhitelist) allows(ctx context.Context, caller common.Address) (bool, error) {
	ok, err := d.authority.IsWhitelisted(ctx, caller)
	if err != nil {
		return false, feed.Classify(feed.ErrAuthorityUnavailable, err)
	}
	return ok, nil
}
