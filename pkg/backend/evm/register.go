package evm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/version"
)

func init() {
	backend.Register("evm", NewAggregatorFromConfig)
	backend.RegisterAuthority("evm", NewAuthorityFromConfig)
}

var (
	clients   = make(map[string]*ethclient.Client)
	clientsMu sync.Mutex
)

// clientFor returns a shared client per RPC URL. Dialing an HTTP endpoint
// does not open a connection, so this does not block on the network.
func clientFor(rpcURL string) (*ethclient.Client, error) {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	if c, ok := clients[rpcURL]; ok {
		return c, nil
	}
	rc, err := rpc.DialOptions(context.Background(), rpcURL, rpc.WithHeader("User-Agent", version.AgentString()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	c := ethclient.NewClient(rc)
	clients[rpcURL] = c
	return c, nil
}

// CloseClients closes every RPC client opened by the factories.
func CloseClients() {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	for url, c := range clients {
		c.Close()
		delete(clients, url)
	}
}

// NewAggregatorFromConfig builds an Aggregator from a backend config map.
// Keys: rpc_url, address.
func NewAggregatorFromConfig(config map[string]interface{}) (feed.Backend, error) {
	rpcURL := backend.GetString(config, "rpc_url", "")
	if rpcURL == "" {
		return nil, ErrRPCURLRequired
	}
	address, err := backend.GetAddress(config, "address")
	if err != nil {
		return nil, err
	}
	client, err := clientFor(rpcURL)
	if err != nil {
		return nil, err
	}
	return NewAggregator(client, address, backend.GetLogger(config))
}

// NewAuthorityFromConfig builds an Authority from a config map.
// Keys: rpc_url, address.
func NewAuthorityFromConfig(config map[string]interface{}) (feed.Authority, error) {
	rpcURL := backend.GetString(config, "rpc_url", "")
	if rpcURL == "" {
		return nil, ErrRPCURLRequired
	}
	address, err := backend.GetAddress(config, "address")
	if err != nil {
		return nil, err
	}
	client, err := clientFor(rpcURL)
	if err != nil {
		return nil, err
	}
	return NewAuthority(client, address)
}
