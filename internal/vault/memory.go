package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryVault simulates token custody in process for mock mode and
// tests. Wallet balances model the outside world; held balances model
// custody. Direct deposits can push held above what the ledger has
// earmarked, which is exactly how real excess arises.
type MemoryVault struct {
	mu      sync.Mutex
	held    map[common.Address]*big.Int
	wallets map[common.Address]map[common.Address]*big.Int
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		held:    make(map[common.Address]*big.Int),
		wallets: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (v *MemoryVault) HeldBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.held[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (v *MemoryVault) Pull(ctx context.Context, token, from common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	bal := v.walletBalanceLocked(token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("wallet %s holds %s of %s, cannot pull %s", from, bal, token, amount)
	}
	bal.Sub(bal, amount)
	v.addHeldLocked(token, amount)
	return nil
}

func (v *MemoryVault) Pay(ctx context.Context, token, to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	held := v.held[token]
	if held == nil || held.Cmp(amount) < 0 {
		return fmt.Errorf("custody holds %s of %s, cannot pay %s", held, token, amount)
	}
	held.Sub(held, amount)
	v.walletBalanceLocked(token, to).Add(v.walletBalanceLocked(token, to), amount)
	return nil
}

// Deposit credits custody directly, bypassing the ledger. Mirrors a
// plain ERC-20 transfer to the custody address.
func (v *MemoryVault) Deposit(token common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.addHeldLocked(token, amount)
}

// Credit gives an external wallet tokens to fund with.
func (v *MemoryVault) Credit(token, wallet common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.walletBalanceLocked(token, wallet).Add(v.walletBalanceLocked(token, wallet), amount)
}

// WalletBalance reports what a wallet holds outside custody.
func (v *MemoryVault) WalletBalance(token, wallet common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.walletBalanceLocked(token, wallet))
}

func (v *MemoryVault) addHeldLocked(token common.Address, amount *big.Int) {
	if v.held[token] == nil {
		v.held[token] = new(big.Int)
	}
	v.held[token].Add(v.held[token], amount)
}

func (v *MemoryVault) walletBalanceLocked(token, wallet common.Address) *big.Int {
	if v.wallets[token] == nil {
		v.wallets[token] = make(map[common.Address]*big.Int)
	}
	if v.wallets[token][wallet] == nil {
		v.wallets[token][wallet] = new(big.Int)
	}
	return v.wallets[token][wallet]
}
