package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/hurley87/irl-protocol/internal/auth"
	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/ledger"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/utils"
)

type Handler struct {
	Ledger *ledger.Ledger
	Logger *logger.Logger
}

func NewHandler(l *ledger.Ledger, log *logger.Logger) *Handler {
	return &Handler{Ledger: l, Logger: log}
}

// RegisterRoutes mounts the balance API. Reads are public; every
// mutation goes through the OIDC middleware.
func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/admins", h.ListAdmins)
		r.Get("/admins/{address}", h.IsAdmin)
		r.Get("/wallets/{wallet}/balances", h.WalletBalances)
		r.Get("/wallets/{wallet}/balances/{token}", h.WalletBalance)
		r.Get("/tokens/totals", h.TokenTotals)
		r.Get("/tokens/{token}/wallets", h.TokenWallets)
		r.Get("/transfers", h.ListTransfers)

		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Post("/admins", h.AddAdmin)
			r.Delete("/admins/{address}", h.RemoveAdmin)

			r.Put("/balances", h.SetBalance)
			r.Post("/balances/increase", h.IncreaseBalance)
			r.Post("/balances/reduce", h.ReduceBalance)

			r.Post("/funds", h.Fund)
			r.Post("/claims", h.Claim)
			r.Post("/claims/all", h.ClaimAll)
			r.Post("/withdrawals", h.WithdrawExcess)
		})
	})
}

// ---------------- ADMINS ----------------

func (h *Handler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	admin, err := chain.ParseAddress(body.Address)
	if err != nil {
		http.Error(w, "invalid admin address", http.StatusBadRequest)
		return
	}

	if err := h.Ledger.AddAdmin(r.Context(), caller, admin); err != nil {
		h.writeError(w, "AddAdmin", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Admin added", nil))
}

func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}
	admin, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid admin address", http.StatusBadRequest)
		return
	}

	if err := h.Ledger.RemoveAdmin(r.Context(), caller, admin); err != nil {
		h.writeError(w, "RemoveAdmin", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Admin removed", nil))
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Ledger.GetAllAdmins())
}

func (h *Handler) IsAdmin(w http.ResponseWriter, r *http.Request) {
	addr, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		Address string `json:"address"`
		Admin   bool   `json:"admin"`
	}{Address: chain.Hex(addr), Admin: h.Ledger.IsAdmin(addr)})
}

// ---------------- BALANCE WRITES ----------------

type balanceRequest struct {
	Wallet string `json:"wallet"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	h.applyBalance(w, r, "SetBalance", h.Ledger.SetBalance)
}

func (h *Handler) IncreaseBalance(w http.ResponseWriter, r *http.Request) {
	h.applyBalance(w, r, "IncreaseBalance", h.Ledger.IncreaseBalance)
}

func (h *Handler) ReduceBalance(w http.ResponseWriter, r *http.Request) {
	h.applyBalance(w, r, "ReduceBalance", h.Ledger.ReduceBalance)
}

func (h *Handler) applyBalance(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, caller, user, token common.Address, amount *big.Int) error) {

	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	var body balanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	wallet, err := chain.ParseAddress(body.Wallet)
	if err != nil {
		http.Error(w, "invalid wallet address", http.StatusBadRequest)
		return
	}
	token, err := chain.ParseAddress(body.Token)
	if err != nil {
		http.Error(w, "invalid token address", http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := fn(r.Context(), caller, wallet, token, amount); err != nil {
		h.writeError(w, op, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Balance updated", struct {
		Wallet string `json:"wallet"`
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}{Wallet: chain.Hex(wallet), Token: chain.Hex(token), Amount: h.Ledger.GetBalance(wallet, token).String()}))
}

// ---------------- TOKEN FLOWS ----------------

func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	var body struct {
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	token, err := chain.ParseAddress(body.Token)
	if err != nil {
		http.Error(w, "invalid token address", http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Ledger.Fund(r.Context(), caller, token, amount); err != nil {
		h.writeError(w, "Fund", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Funds received", nil))
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	token, err := chain.ParseAddress(body.Token)
	if err != nil {
		http.Error(w, "invalid token address", http.StatusBadRequest)
		return
	}

	amount, err := h.Ledger.Claim(r.Context(), caller, token)
	if err != nil {
		h.writeError(w, "Claim", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Claim processed", struct {
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}{Token: chain.Hex(token), Amount: amount.String()}))
}

func (h *Handler) ClaimAll(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	claimed, err := h.Ledger.ClaimAll(r.Context(), caller)
	if err != nil {
		h.writeError(w, "ClaimAll", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Claims processed", claimed))
}

func (h *Handler) WithdrawExcess(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	var body struct {
		Token     string `json:"token"`
		Amount    string `json:"amount"`
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	token, err := chain.ParseAddress(body.Token)
	if err != nil {
		http.Error(w, "invalid token address", http.StatusBadRequest)
		return
	}
	recipient, err := chain.ParseAddress(body.Recipient)
	if err != nil {
		http.Error(w, "invalid recipient address", http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Ledger.WithdrawExcess(r.Context(), caller, token, amount, recipient); err != nil {
		h.writeError(w, "WithdrawExcess", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Withdrawal sent", nil))
}

// ---------------- READS ----------------

func (h *Handler) WalletBalances(w http.ResponseWriter, r *http.Request) {
	wallet, err := chain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		http.Error(w, "invalid wallet address", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Ledger.GetBalancesForWallet(wallet))
}

func (h *Handler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	wallet, err := chain.ParseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		http.Error(w, "invalid wallet address", http.StatusBadRequest)
		return
	}
	token, err := chain.ParseAddress(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "invalid token address", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		Wallet string `json:"wallet"`
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}{Wallet: chain.Hex(wallet), Token: chain.Hex(token), Amount: h.Ledger.GetBalance(wallet, token).String()})
}

func (h *Handler) TokenTotals(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Ledger.GetAllTotalBalances())
}

func (h *Handler) TokenWallets(w http.ResponseWriter, r *http.Request) {
	token, err := chain.ParseAddress(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "invalid token address", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Ledger.GetBalancesForToken(token))
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Ledger.GetTransfers())
}

// ---------------- HELPERS ----------------

func (h *Handler) caller(r *http.Request) (common.Address, error) {
	wallet := auth.Wallet(r.Context())
	if wallet == "" {
		return common.Address{}, errors.New("no wallet in request context")
	}
	return chain.ParseAddress(wallet)
}

func (h *Handler) unauthorized(w http.ResponseWriter, err error) {
	h.Logger.Warn("API", fmt.Sprintf("caller resolution failed: %v", err))
	http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	h.writeJSON(w, status, utils.ErrorResponse(http.StatusText(status), err.Error()))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAdminNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAdminExists),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientExcess):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidUser),
		errors.Is(err, ledger.ErrZeroAddress),
		errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, ledger.ErrNotPayable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseAmount reads a base-10 token amount. Sign handling is left to
// the ledger so negative deltas map to the same error everywhere.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("amount is required")
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}
