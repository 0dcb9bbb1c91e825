package minter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
)

// TokenProvider hands out bearer tokens for relay calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// RelayMinter forwards mint and burn instructions to the custody
// relay, which holds the signing keys for the Stubs and Points
// contracts. This service never signs transactions itself.
type RelayMinter struct {
	baseURL string
	tokens  TokenProvider
	client  *http.Client
	log     *logger.Logger

	mu     sync.RWMutex
	stubs  common.Address
	points common.Address
}

func NewRelayMinter(baseURL string, stubs, points common.Address, tokens TokenProvider, client *http.Client, log *logger.Logger) *RelayMinter {
	if client == nil {
		client = http.DefaultClient
	}
	return &RelayMinter{
		baseURL: baseURL,
		tokens:  tokens,
		client:  client,
		log:     log,
		stubs:   stubs,
		points:  points,
	}
}

// SetContracts swaps the target reward contracts. Existing balances on
// the old contracts are unaffected.
func (m *RelayMinter) SetContracts(stubs, points common.Address) {
	m.mu.Lock()
	m.stubs = stubs
	m.points = points
	m.mu.Unlock()
	m.log.LogMint("CONTRACTS", chain.Hex(stubs), fmt.Sprintf("points contract now %s", chain.Hex(points)))
}

func (m *RelayMinter) MintStub(ctx context.Context, account common.Address, stubID, qty uint64) error {
	m.mu.RLock()
	contract := m.stubs
	m.mu.RUnlock()

	req := models.MintRequest{
		Contract: chain.Hex(contract),
		Account:  chain.Hex(account),
		StubID:   stubID,
		Amount:   strconv.FormatUint(qty, 10),
	}
	return m.post(ctx, "/api/v1/stubs/mint", req)
}

func (m *RelayMinter) BurnStub(ctx context.Context, account common.Address, stubID, qty uint64) error {
	m.mu.RLock()
	contract := m.stubs
	m.mu.RUnlock()

	req := models.MintRequest{
		Contract: chain.Hex(contract),
		Account:  chain.Hex(account),
		StubID:   stubID,
		Amount:   strconv.FormatUint(qty, 10),
	}
	return m.post(ctx, "/api/v1/stubs/burn", req)
}

func (m *RelayMinter) MintPoints(ctx context.Context, account common.Address, amount uint64) error {
	m.mu.RLock()
	contract := m.points
	m.mu.RUnlock()

	req := models.MintRequest{
		Contract: chain.Hex(contract),
		Account:  chain.Hex(account),
		Amount:   strconv.FormatUint(amount, 10),
	}
	return m.post(ctx, "/api/v1/points/mint", req)
}

func (m *RelayMinter) BurnPoints(ctx context.Context, account common.Address, amount uint64) error {
	m.mu.RLock()
	contract := m.points
	m.mu.RUnlock()

	req := models.MintRequest{
		Contract: chain.Hex(contract),
		Account:  chain.Hex(account),
		Amount:   strconv.FormatUint(amount, 10),
	}
	return m.post(ctx, "/api/v1/points/burn", req)
}

func (m *RelayMinter) post(ctx context.Context, path string, payload models.MintRequest) error {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("relay auth failed: %w", err)
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		m.log.Error("MINT", fmt.Sprintf("relay %s returned status %d", path, resp.StatusCode))
		return fmt.Errorf("relay %s failed: status %d", path, resp.StatusCode)
	}

	m.log.LogMint("RELAY", payload.Account, fmt.Sprintf("%s amount=%s", path, payload.Amount))
	return nil
}
