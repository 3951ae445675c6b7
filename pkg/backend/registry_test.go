package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
)

type stubAuthority struct{ address common.Address }

func (a stubAuthority) Address() common.Address { return a.address }

func (a stubAuthority) IsWhitelisted(_ context.Context, _ common.Address) (bool, error) {
	return true, nil
}

func TestRegistry_CreateAndList(t *testing.T) {
	errBuild := errors.New("build failed")
	var received map[string]interface{}
	Register("registry-test-a", func(config map[string]interface{}) (feed.Backend, error) {
		received = config
		return nil, errBuild
	})
	Register("registry-test-b", func(map[string]interface{}) (feed.Backend, error) {
		return nil, nil
	})

	names := List()
	assert.Contains(t, names, "registry-test-a")
	assert.Contains(t, names, "registry-test-b")
	assert.IsIncreasing(t, names)

	_, err := Create("registry-test-a", nil)
	assert.ErrorIs(t, err, errBuild)
	assert.NotNil(t, received, "factories never see a nil config")

	_, err = Create("registry-test-missing", nil)
	require.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), "registry-test-missing")
	assert.Contains(t, err.Error(), "registry-test-a, registry-test-b")
}

func TestRegistry_CreateAuthority(t *testing.T) {
	want := common.HexToAddress("0xaa")
	RegisterAuthority("registry-test", func(config map[string]interface{}) (feed.Authority, error) {
		addr, err := GetAddress(config, "address")
		if err != nil {
			return nil, err
		}
		return stubAuthority{address: addr}, nil
	})

	a, err := CreateAuthority("registry-test", map[string]interface{}{"address": want.Hex()})
	require.NoError(t, err)
	assert.Equal(t, want, a.Address())

	_, err = CreateAuthority("registry-test", nil)
	assert.ErrorIs(t, err, ErrAddressRequired)

	_, err = CreateAuthority("registry-test-missing", nil)
	assert.ErrorIs(t, err, ErrUnknownAuthority)
}
