package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/hurley87/irl-protocol/internal/auth"
	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/ledger"
	"github.com/hurley87/irl-protocol/internal/ledger/api"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/vault"
)

var (
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	adminAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	userAddr    = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	otherAddr   = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	secondToken = common.HexToAddress("0x00000000000000000000000000000000000000e6")
)

// nullStore accepts every write and loads nothing.
type nullStore struct{}

func (nullStore) SaveAdmin(ctx context.Context, admin models.Admin) error { return nil }
func (nullStore) DeleteAdmin(ctx context.Context, address string) error   { return nil }
func (nullStore) ApplyBalance(ctx context.Context, bal models.Balance, total models.TokenTotal) error {
	return nil
}
func (nullStore) ApplyClaim(ctx context.Context, wallet, token string, total models.TokenTotal, xfer models.Transfer) error {
	return nil
}
func (nullStore) RevertClaim(ctx context.Context, bal models.Balance, total models.TokenTotal, xferID string) error {
	return nil
}
func (nullStore) SaveTransfer(ctx context.Context, xfer models.Transfer) error { return nil }
func (nullStore) DeleteTransfer(ctx context.Context, id string) error          { return nil }
func (nullStore) Load(ctx context.Context) (*models.LedgerSnapshot, error) {
	return &models.LedgerSnapshot{}, nil
}

type nopFacts struct{}

func (nopFacts) PublishBalanceChanged(fact models.BalanceFact) error { return nil }
func (nopFacts) PublishTransfer(xfer models.Transfer) error          { return nil }

// fakeAuth injects a wallet the way the OIDC middleware would.
func fakeAuth(wallet string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithWallet(r.Context(), wallet)))
		})
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testEnv struct {
	handler *api.Handler
	led     *ledger.Ledger
	vault   *vault.MemoryVault
}

func setupAPI(t *testing.T) *testEnv {
	t.Helper()
	vlt := vault.NewMemoryVault()
	led := ledger.NewLedger(ownerAddr, custodyAddr, nullStore{}, vlt, nopFacts{}, logger.NewTestLogger())
	led.SetClock(func() time.Time { return time.Unix(1_800_000_000, 0) })
	return &testEnv{
		handler: api.NewHandler(led, logger.NewTestLogger()),
		led:     led,
		vault:   vlt,
	}
}

func (e *testEnv) request(wallet, method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()

	r := chi.NewRouter()
	e.handler.RegisterRoutes(r, fakeAuth(wallet))
	r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) requestRaw(wallet, method, target, rawBody string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(rawBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r := chi.NewRouter()
	e.handler.RegisterRoutes(r, fakeAuth(wallet))
	r.ServeHTTP(w, req)
	return w
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestAdminEndpoints(t *testing.T) {
	env := setupAPI(t)

	t.Run("Owner adds and removes an admin", func(t *testing.T) {
		w := env.request(chain.Hex(ownerAddr), "POST", "/api/v1/admins", map[string]string{
			"address": chain.Hex(adminAddr),
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "Admin added")

		w = env.request("", "GET", "/api/v1/admins", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		var admins []string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &admins))
		assert.Equal(t, []string{chain.Hex(adminAddr)}, admins)

		w = env.request("", "GET", "/api/v1/admins/"+chain.Hex(adminAddr), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"admin":true`)

		w = env.request(chain.Hex(ownerAddr), "DELETE", "/api/v1/admins/"+chain.Hex(adminAddr), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.request("", "GET", "/api/v1/admins/"+chain.Hex(adminAddr), nil)
		assert.Contains(t, w.Body.String(), `"admin":false`)
	})

	t.Run("Duplicate admin is a conflict", func(t *testing.T) {
		env := setupAPI(t)
		w := env.request(chain.Hex(ownerAddr), "POST", "/api/v1/admins", map[string]string{
			"address": chain.Hex(adminAddr),
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/admins", map[string]string{
			"address": chain.Hex(adminAddr),
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Removing an unknown admin is not found", func(t *testing.T) {
		env := setupAPI(t)
		w := env.request(chain.Hex(ownerAddr), "DELETE", "/api/v1/admins/"+chain.Hex(adminAddr), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Non-admin cannot manage admins", func(t *testing.T) {
		env := setupAPI(t)
		w := env.request(chain.Hex(otherAddr), "POST", "/api/v1/admins", map[string]string{
			"address": chain.Hex(adminAddr),
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Missing wallet", func(t *testing.T) {
		env := setupAPI(t)
		w := env.request("", "POST", "/api/v1/admins", map[string]string{
			"address": chain.Hex(adminAddr),
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Malformed admin address", func(t *testing.T) {
		env := setupAPI(t)
		w := env.request(chain.Hex(ownerAddr), "POST", "/api/v1/admins", map[string]string{
			"address": "junk",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBalanceEndpoints(t *testing.T) {
	env := setupAPI(t)

	set := func(amount string) *httptest.ResponseRecorder {
		return env.request(chain.Hex(ownerAddr), "PUT", "/api/v1/balances", map[string]string{
			"wallet": chain.Hex(userAddr),
			"token":  chain.Hex(tokenAddr),
			"amount": amount,
		})
	}

	// Set, then adjust both ways
	w := set(tokens(100).String())
	assert.Equal(t, http.StatusOK, w.Code)
	resp := struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, tokens(100).String(), resp.Data.Amount)

	w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/balances/increase", map[string]string{
		"wallet": chain.Hex(userAddr),
		"token":  chain.Hex(tokenAddr),
		"amount": tokens(50).String(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tokens(150), env.led.GetBalance(userAddr, tokenAddr))

	w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/balances/reduce", map[string]string{
		"wallet": chain.Hex(userAddr),
		"token":  chain.Hex(tokenAddr),
		"amount": tokens(30).String(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tokens(120), env.led.GetBalance(userAddr, tokenAddr))

	// Reducing past the balance is a conflict
	w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/balances/reduce", map[string]string{
		"wallet": chain.Hex(userAddr),
		"token":  chain.Hex(tokenAddr),
		"amount": tokens(1000).String(),
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = set("-5")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Custody is not a reward wallet
	w = env.request(chain.Hex(ownerAddr), "PUT", "/api/v1/balances", map[string]string{
		"wallet": chain.Hex(custodyAddr),
		"token":  chain.Hex(tokenAddr),
		"amount": "10",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = set("not-a-number")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = set("")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "amount is required")

	w = env.request(chain.Hex(otherAddr), "PUT", "/api/v1/balances", map[string]string{
		"wallet": chain.Hex(userAddr),
		"token":  chain.Hex(tokenAddr),
		"amount": "10",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Reads reflect the surviving amount
	w = env.request("", "GET", "/api/v1/wallets/"+chain.Hex(userAddr)+"/balances", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var held []models.TokenBalance
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &held))
	assert.Equal(t, []models.TokenBalance{{Token: chain.Hex(tokenAddr), Amount: tokens(120).String()}}, held)

	w = env.request("", "GET", "/api/v1/wallets/"+chain.Hex(userAddr)+"/balances/"+chain.Hex(tokenAddr), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tokens(120).String())

	w = env.request("", "GET", "/api/v1/tokens/totals", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var totals []models.TokenBalance
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &totals))
	assert.Equal(t, []models.TokenBalance{{Token: chain.Hex(tokenAddr), Amount: tokens(120).String()}}, totals)

	w = env.request("", "GET", "/api/v1/tokens/"+chain.Hex(tokenAddr)+"/wallets", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var wallets []models.WalletBalance
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &wallets))
	assert.Equal(t, []models.WalletBalance{{Wallet: chain.Hex(userAddr), Amount: tokens(120).String()}}, wallets)
}

func TestFundAndClaimEndpoints(t *testing.T) {
	env := setupAPI(t)
	env.vault.Credit(tokenAddr, ownerAddr, tokens(500))

	w := env.request(chain.Hex(ownerAddr), "POST", "/api/v1/funds", map[string]string{
		"token":  chain.Hex(tokenAddr),
		"amount": tokens(500).String(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Funds received")

	held, err := env.vault.HeldBalance(context.Background(), tokenAddr)
	assert.NoError(t, err)
	assert.Equal(t, tokens(500), held)

	// Earmark and claim
	w = env.request(chain.Hex(ownerAddr), "PUT", "/api/v1/balances", map[string]string{
		"wallet": chain.Hex(userAddr),
		"token":  chain.Hex(tokenAddr),
		"amount": tokens(200).String(),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.request(chain.Hex(userAddr), "POST", "/api/v1/claims", map[string]string{
		"token": chain.Hex(tokenAddr),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amount":"`+tokens(200).String()+`"`)
	assert.Equal(t, tokens(200), env.vault.WalletBalance(tokenAddr, userAddr))

	// Claiming again sweeps nothing
	w = env.request(chain.Hex(userAddr), "POST", "/api/v1/claims", map[string]string{
		"token": chain.Hex(tokenAddr),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amount":"0"`)

	// Both movements are journaled
	w = env.request("", "GET", "/api/v1/transfers", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var xfers []models.Transfer
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &xfers))
	assert.Len(t, xfers, 2)

	w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/funds", map[string]string{
		"token":  "0x0000000000000000000000000000000000000000",
		"amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimAllEndpoint(t *testing.T) {
	env := setupAPI(t)
	env.vault.Deposit(tokenAddr, tokens(100))
	env.vault.Deposit(secondToken, tokens(50))

	for token, amount := range map[common.Address]*big.Int{
		tokenAddr:   tokens(100),
		secondToken: tokens(50),
	} {
		w := env.request(chain.Hex(ownerAddr), "PUT", "/api/v1/balances", map[string]string{
			"wallet": chain.Hex(userAddr),
			"token":  chain.Hex(token),
			"amount": amount.String(),
		})
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := env.request(chain.Hex(userAddr), "POST", "/api/v1/claims/all", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp apiEnvelope
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var claimed []models.TokenBalance
	assert.NoError(t, json.Unmarshal(resp.Data, &claimed))
	assert.Len(t, claimed, 2)

	assert.Equal(t, tokens(100), env.vault.WalletBalance(tokenAddr, userAddr))
	assert.Equal(t, tokens(50), env.vault.WalletBalance(secondToken, userAddr))
}

func TestWithdrawEndpoint(t *testing.T) {
	env := setupAPI(t)
	env.vault.Deposit(tokenAddr, tokens(1000))

	w := env.request(chain.Hex(ownerAddr), "PUT", "/api/v1/balances", map[string]string{
		"wallet": chain.Hex(userAddr),
		"token":  chain.Hex(tokenAddr),
		"amount": tokens(400).String(),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Only the unearmarked excess can leave
	w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/withdrawals", map[string]string{
		"token":     chain.Hex(tokenAddr),
		"amount":    tokens(600).String(),
		"recipient": chain.Hex(otherAddr),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tokens(600), env.vault.WalletBalance(tokenAddr, otherAddr))

	w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/withdrawals", map[string]string{
		"token":     chain.Hex(tokenAddr),
		"amount":    "1",
		"recipient": chain.Hex(otherAddr),
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.request(chain.Hex(userAddr), "POST", "/api/v1/withdrawals", map[string]string{
		"token":     chain.Hex(tokenAddr),
		"amount":    "1",
		"recipient": chain.Hex(otherAddr),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.request(chain.Hex(ownerAddr), "POST", "/api/v1/withdrawals", map[string]string{
		"token":     chain.Hex(tokenAddr),
		"amount":    "1",
		"recipient": "junk",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadEndpointsRejectBadAddresses(t *testing.T) {
	env := setupAPI(t)

	w := env.request("", "GET", "/api/v1/wallets/junk/balances", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request("", "GET", "/api/v1/tokens/junk/wallets", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request("", "GET", "/api/v1/admins/junk", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidJSONBodies(t *testing.T) {
	env := setupAPI(t)

	w := env.requestRaw(chain.Hex(ownerAddr), "PUT", "/api/v1/balances", `{"wallet":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")

	w = env.requestRaw(chain.Hex(ownerAddr), "POST", "/api/v1/funds", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
