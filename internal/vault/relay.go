package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
)

// TokenProvider hands out bearer tokens for relay calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// RelayVault moves ERC-20 tokens through the custody relay and reads
// custody balances directly from the chain. The relay owns the keys;
// this side only instructs and observes.
type RelayVault struct {
	baseURL string
	custody common.Address
	erc20   *chain.ERC20Caller
	tokens  TokenProvider
	client  *http.Client
	log     *logger.Logger
}

func NewRelayVault(baseURL string, custody common.Address, erc20 *chain.ERC20Caller, tokens TokenProvider, client *http.Client, log *logger.Logger) *RelayVault {
	if client == nil {
		client = http.DefaultClient
	}
	return &RelayVault{
		baseURL: baseURL,
		custody: custody,
		erc20:   erc20,
		tokens:  tokens,
		client:  client,
		log:     log,
	}
}

// HeldBalance reads balanceOf(custody) on the token contract. This is
// the ground truth the excess-withdrawal guard compares against.
func (v *RelayVault) HeldBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	return v.erc20.BalanceOf(ctx, token, v.custody)
}

// Pull moves amount of token from the given wallet into custody.
func (v *RelayVault) Pull(ctx context.Context, token, from common.Address, amount *big.Int) error {
	req := models.TransferRequest{
		Token:  chain.Hex(token),
		From:   chain.Hex(from),
		To:     chain.Hex(v.custody),
		Amount: amount.String(),
	}
	return v.post(ctx, "/api/v1/transfers/pull", req)
}

// Pay moves amount of token from custody out to the given wallet.
func (v *RelayVault) Pay(ctx context.Context, token, to common.Address, amount *big.Int) error {
	req := models.TransferRequest{
		Token:  chain.Hex(token),
		From:   chain.Hex(v.custody),
		To:     chain.Hex(to),
		Amount: amount.String(),
	}
	return v.post(ctx, "/api/v1/transfers/pay", req)
}

func (v *RelayVault) post(ctx context.Context, path string, payload models.TransferRequest) error {
	token, err := v.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("relay auth failed: %w", err)
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", v.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		v.log.Error("VAULT", fmt.Sprintf("relay %s returned status %d", path, resp.StatusCode))
		return fmt.Errorf("relay %s failed: status %d", path, resp.StatusCode)
	}

	v.log.LogLedger("TRANSFER", payload.Token, fmt.Sprintf("%s amount=%s", path, payload.Amount))
	return nil
}
