package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc20ABI carries only the view function we call.
const erc20ABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// ERC20Caller reads token balances straight from the chain. Writes go
// through the custody relay; this client never signs anything.
type ERC20Caller struct {
	client *ethclient.Client
	abi    abi.ABI
}

// NewERC20Caller dials the RPC node and prepares the minimal ABI.
func NewERC20Caller(rpcURL string) (*ERC20Caller, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC node: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	return &ERC20Caller{client: client, abi: parsedABI}, nil
}

// BalanceOf calls balanceOf(account) on the given token contract.
func (c *ERC20Caller) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	callData, err := c.abi.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	var balance *big.Int
	if err := c.abi.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	return balance, nil
}

// Close releases the underlying RPC connection.
func (c *ERC20Caller) Close() {
	c.client.Close()
}
