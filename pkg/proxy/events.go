package proxy

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/logging"
)

// eventHub fans proxy events out to subscribers. Sends never block: a full
// subscriber channel drops the event.
type eventHub struct {
	feed   string
	logger *logging.Logger

	mu          sync.RWMutex
	subscribers []chan<- feed.Event
}

// Subscribe registers ch for events published after this call.
func (h *eventHub) Subscribe(ch chan<- feed.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, ch)
}

// Unsubscribe removes ch.
func (h *eventHub) Unsubscribe(ch chan<- feed.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, subscriber := range h.subscribers {
		if subscriber == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			break
		}
	}
}

func (h *eventHub) publish(eventType feed.EventType, from, to common.Address) {
	event := feed.Event{
		Feed:      h.feed,
		Type:      eventType,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.Warn("Subscriber channel full, dropping event", "type", string(eventType))
		}
	}
}
