package facade

import (
	"fmt"

	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

func init() {
	backend.Register("facade", NewFromConfig)
}

// NewFromConfig builds a Facade from a backend config map.
// Keys: address, decimals (default 18), inner: {type, config}.
func NewFromConfig(config map[string]interface{}) (feed.Backend, error) {
	address, err := backend.GetAddress(config, "address")
	if err != nil {
		return nil, err
	}
	decimals, err := backend.GetUint8(config, "decimals", 18)
	if err != nil {
		return nil, err
	}

	innerRaw, ok := config["inner"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: facade %s", ErrInnerRequired, address.Hex())
	}
	innerType := backend.GetString(innerRaw, "type", "")
	innerConfig, _ := innerRaw["config"].(map[string]interface{})
	if innerConfig == nil {
		innerConfig = make(map[string]interface{})
	}
	if l, ok := config["logger"]; ok {
		innerConfig["logger"] = l
	}

	inner, err := backend.Create(innerType, innerConfig)
	if err != nil {
		return nil, fmt.Errorf("facade %s inner backend: %w", address.Hex(), err)
	}
	return New(address, inner, decimals)
}
