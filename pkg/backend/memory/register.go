package memory

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

func init() {
	backend.Register("memory", NewAggregatorFromConfig)
	backend.Register("historic", NewHistoricFromConfig)
	backend.RegisterAuthority("memory", NewAuthorityFromConfig)
}

// NewAggregatorFromConfig builds an Aggregator from a backend config map.
// Keys: address, decimals (default 18), answer.
func NewAggregatorFromConfig(config map[string]interface{}) (feed.Backend, error) {
	address, err := backend.GetAddress(config, "address")
	if err != nil {
		return nil, err
	}
	decimals, err := backend.GetUint8(config, "decimals", 18)
	if err != nil {
		return nil, err
	}
	answer, err := backend.GetBigInt(config, "answer", nil)
	if err != nil {
		return nil, fmt.Errorf("memory aggregator %s: %w", address.Hex(), err)
	}
	return NewAggregator(address, decimals, answer), nil
}

// NewHistoricFromConfig builds a Historic aggregator from a backend config map.
// Keys: address, answer.
func NewHistoricFromConfig(config map[string]interface{}) (feed.Backend, error) {
	address, err := backend.GetAddress(config, "address")
	if err != nil {
		return nil, err
	}
	answer, err := backend.GetBigInt(config, "answer", big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("historic aggregator %s: %w", address.Hex(), err)
	}
	return NewHistoric(address, answer), nil
}

// NewAuthorityFromConfig builds an Authority from a config map.
// Keys: address, members (list of hex addresses).
func NewAuthorityFromConfig(config map[string]interface{}) (feed.Authority, error) {
	address, err := backend.GetAddress(config, "address")
	if err != nil {
		return nil, err
	}
	var members []common.Address
	if raw, ok := config["members"].([]interface{}); ok {
		for i, item := range raw {
			s, ok := item.(string)
			if !ok || !common.IsHexAddress(s) {
				return nil, fmt.Errorf("%w: members[%d]", backend.ErrInvalidAddress, i)
			}
			members = append(members, common.HexToAddress(s))
		}
	}
	return NewAuthority(address, members...), nil
}
