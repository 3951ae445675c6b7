package proxy

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
)

// read runs one backend call on behalf of a proxy and records it. Backend
// failures come back classified: taxonomy errors untouched, anything else
// wrapped with feed.ErrBackendUnavailable.
func read[T any](feedName, method string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	if err != nil {
		err = feed.Unavailable(err)
	}
	metrics.RecordRead(feedName, method, readStatus(err), time.Since(start))
	return v, err
}

// latestAnswerOf reads the latest round of b and the answer and timestamp
// recorded for that round.
func latestAnswerOf(ctx context.Context, b feed.Backend) (feed.Answer, error) {
	roundID, err := b.LatestRound(ctx)
	if err != nil {
		return feed.Answer{}, err
	}
	return answerOf(ctx, b, roundID)
}

// answerOf reads the answer and timestamp of a round of b.
func answerOf(ctx context.Context, b feed.Backend, roundID *big.Int) (feed.Answer, error) {
	answer, err := b.GetAnswer(ctx, roundID)
	if err != nil {
		return feed.Answer{}, err
	}
	updatedAt, err := b.GetTimestamp(ctx, roundID)
	if err != nil {
		return feed.Answer{}, err
	}
	return feed.Answer{RoundID: roundID, Answer: answer, UpdatedAt: updatedAt}, nil
}

func readStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, feed.ErrIncompatibleBackend):
		return "incompatible"
	case errors.Is(err, feed.ErrNoProposalPending):
		return "no_proposal"
	case errors.Is(err, feed.ErrNotWhitelisted):
		return "denied"
	case errors.Is(err, feed.ErrAuthorityUnavailable):
		return "authority_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// DecimalsFrom asks an aggregator for its decimals. Proxies call it once,
// when no decimals are configured, and never again.
func DecimalsFrom(ctx context.Context, b feed.Backend) (uint8, error) {
	reader, ok := b.(feed.DecimalsReader)
	if !ok {
		return 0, ErrDecimalsUnknown
	}
	decimals, err := reader.Decimals(ctx)
	if err != nil {
		return 0, feed.Unavailable(err)
	}
	return decimals, nil
}
