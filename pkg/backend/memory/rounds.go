// Package memory provides in-process aggregators. Aggregator serves the full
// round data surface; Historic mimics the legacy aggregators that only kept
// answers and timestamps.
package memory

import (
	"math/big"
	"sync"
	"time"
)

type round struct {
	answer    *big.Int
	startedAt time.Time
	updatedAt time.Time
}

// rounds is the answer history shared by both aggregator flavours.
type rounds struct {
	mu      sync.RWMutex
	latest  *big.Int
	history map[string]round
	failure error
	now     func() time.Time
}

func (r *rounds) init() {
	r.latest = new(big.Int)
	r.history = make(map[string]round)
	r.now = time.Now
}

// push records answer as the next round.
func (r *rounds) push(answer *big.Int) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = new(big.Int).Add(r.latest, big.NewInt(1))
	now := r.now().Truncate(time.Second)
	r.history[r.latest.String()] = round{
		answer:    new(big.Int).Set(answer),
		startedAt: now,
		updatedAt: now,
	}
	return new(big.Int).Set(r.latest)
}

// put records a round verbatim and makes it the latest.
func (r *rounds) put(roundID, answer *big.Int, updatedAt, startedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = new(big.Int).Set(roundID)
	r.history[roundID.String()] = round{
		answer:    new(big.Int).Set(answer),
		startedAt: startedAt,
		updatedAt: updatedAt,
	}
}

func (r *rounds) get(roundID *big.Int) (round, bool) {
	if roundID == nil {
		return round{}, false
	}
	rd, ok := r.history[roundID.String()]
	return rd, ok
}

func (r *rounds) setFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = err
}

func (r *rounds) setClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Unknown rounds read as zero, the same as an unset contract mapping.

func (r *rounds) latestAnswer() (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failure != nil {
		return nil, r.failure
	}
	rd, _ := r.get(r.latest)
	return valueOrZero(rd.answer), nil
}

func (r *rounds) latestTimestamp() (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failure != nil {
		return time.Time{}, r.failure
	}
	rd, _ := r.get(r.latest)
	return rd.updatedAt, nil
}

func (r *rounds) latestRound() (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failure != nil {
		return nil, r.failure
	}
	return new(big.Int).Set(r.latest), nil
}

func (r *rounds) answer(roundID *big.Int) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failure != nil {
		return nil, r.failure
	}
	rd, _ := r.get(roundID)
	return valueOrZero(rd.answer), nil
}

func (r *rounds) timestamp(roundID *big.Int) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failure != nil {
		return time.Time{}, r.failure
	}
	rd, _ := r.get(roundID)
	return rd.updatedAt, nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
