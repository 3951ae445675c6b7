package backend

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StrathCole/feedproxy-go/pkg/logging"
)

// Config helpers shared by the backend factories. YAML decodes numbers as
// int or float64 and addresses as strings, so every getter accepts the shapes
// yaml.v3 produces.

// GetAddress reads a required hex address.
func GetAddress(config map[string]interface{}, key string) (common.Address, error) {
	raw, ok := config[key].(string)
	if !ok || raw == "" {
		return common.Address{}, fmt.Errorf("%w: %s", ErrAddressRequired, key)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s=%q", ErrInvalidAddress, key, raw)
	}
	return common.HexToAddress(raw), nil
}

// GetString reads an optional string.
func GetString(config map[string]interface{}, key, defaultValue string) string {
	if s, ok := config[key].(string); ok && s != "" {
		return s
	}
	return defaultValue
}

// GetInt reads an optional integer.
func GetInt(config map[string]interface{}, key string, defaultValue int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v) // #nosec G115 -- config values are small
	case float64:
		return int(v)
	}
	return defaultValue
}

// GetBigInt reads an optional integer that may exceed 64 bits. Strings are
// parsed in base 10, or base 16 with a 0x prefix.
func GetBigInt(config map[string]interface{}, key string, defaultValue *big.Int) (*big.Int, error) {
	switch v := config[key].(type) {
	case nil:
		return defaultValue, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		return big.NewInt(int64(v)), nil
	case string:
		n, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, key, v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: %s has type %T", ErrInvalidNumber, key, v)
	}
}

// GetUint8 reads an optional uint8 such as decimals.
func GetUint8(config map[string]interface{}, key string, defaultValue uint8) (uint8, error) {
	if _, ok := config[key]; !ok {
		return defaultValue, nil
	}
	n := GetInt(config, key, -1)
	if s, ok := config[key].(string); ok {
		parsed, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, key, s)
		}
		return uint8(parsed), nil
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("%w: %s must be 0-255", ErrInvalidNumber, key)
	}
	return uint8(n), nil // #nosec G115 -- bounds checked above
}

// GetLogger returns the logger injected into a backend config, or a no-op logger.
func GetLogger(config map[string]interface{}) *logging.Logger {
	if l, ok := config["logger"].(*logging.Logger); ok && l != nil {
		return l
	}
	return logging.NewNoopLogger()
}
