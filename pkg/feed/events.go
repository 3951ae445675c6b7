package feed

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names a state change on a proxy.
type EventType string

const (
	EventAggregatorProposed         EventType = "aggregator_proposed"
	EventAggregatorConfirmed        EventType = "aggregator_confirmed"
	EventAggregatorSet              EventType = "aggregator_set"
	EventOwnershipTransferRequested EventType = "ownership_transfer_requested"
	EventOwnershipTransferred       EventType = "ownership_transferred"
	EventWhitelistEnabled           EventType = "whitelist_enabled"
	EventWhitelistDisabled          EventType = "whitelist_disabled"
	EventAddedToWhitelist           EventType = "added_to_whitelist"
	EventRemovedFromWhitelist       EventType = "removed_from_whitelist"
	EventAuthoritySet               EventType = "authority_set"
)

// Event is published after a proxy mutation has been applied.
type Event struct {
	Feed      string         `json:"feed"`
	Type      EventType      `json:"type"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Timestamp time.Time      `json:"timestamp"`
}
