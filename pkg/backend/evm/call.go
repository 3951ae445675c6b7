package evm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// contract is a read-only handle on one deployed contract.
type contract struct {
	caller  ethereum.ContractCaller
	address common.Address
	abi     abi.ABI
}

func newContract(caller ethereum.ContractCaller, address common.Address, abiJSON string) (contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return contract{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return contract{caller: caller, address: address, abi: parsed}, nil
}

// call packs method, runs eth_call against the latest block and returns the
// raw output. An empty output is reported as ErrEmptyResult.
func (c contract) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	to := c.address
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil) // nil = latest block
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrEmptyResult, method, c.address.Hex())
	}
	return out, nil
}

// isRevert reports whether err is an execution revert rather than a
// transport failure.
func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

// revertReason extracts the Error(string) reason carried by a revert, if any.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	raw, ok := dataErr.ErrorData().(string)
	if !ok {
		return ""
	}
	data, decodeErr := hexutil.Decode(raw)
	if decodeErr != nil {
		return ""
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return ""
	}
	return reason
}
