package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/utils"
)

type Store interface {
	SaveAdmin(ctx context.Context, admin models.Admin) error
	DeleteAdmin(ctx context.Context, address string) error
	// ApplyBalance writes one balance row and its token total in a
	// single transaction. Amount "0" deletes the row.
	ApplyBalance(ctx context.Context, bal models.Balance, total models.TokenTotal) error
	// ApplyClaim removes the balance row, rewrites the total and
	// journals the payout in a single transaction.
	ApplyClaim(ctx context.Context, wallet, token string, total models.TokenTotal, xfer models.Transfer) error
	// RevertClaim undoes ApplyClaim after a failed payout.
	RevertClaim(ctx context.Context, bal models.Balance, total models.TokenTotal, xferID string) error
	SaveTransfer(ctx context.Context, xfer models.Transfer) error
	DeleteTransfer(ctx context.Context, id string) error
	Load(ctx context.Context) (*models.LedgerSnapshot, error)
}

// TokenVault moves real ERC-20 tokens in and out of custody. The
// ledger itself only ever earmarks amounts; the vault is where value
// actually sits.
type TokenVault interface {
	HeldBalance(ctx context.Context, token common.Address) (*big.Int, error)
	Pull(ctx context.Context, token, from common.Address, amount *big.Int) error
	Pay(ctx context.Context, token, to common.Address, amount *big.Int) error
}

type FactPublisher interface {
	PublishBalanceChanged(fact models.BalanceFact) error
	PublishTransfer(xfer models.Transfer) error
}

// holding is one live amount plus the sequence number that fixes its
// place in first-seen order.
type holding struct {
	amount *big.Int
	seq    int64
}

// Ledger tracks reward earmarks per (wallet, token) against tokens
// held in custody. All state lives in memory under one lock, written
// through to the store on each mutation and replayed on startup.
// Aggregate queries return first-seen insertion order; entries vanish
// the moment their amount reaches zero.
type Ledger struct {
	mu      sync.Mutex
	owner   common.Address
	custody common.Address
	nextSeq int64

	admins     map[common.Address]bool
	adminOrder []common.Address

	balances     map[common.Address]map[common.Address]*holding
	totals       map[common.Address]*holding
	walletTokens map[common.Address][]common.Address
	tokenWallets map[common.Address][]common.Address
	tokenOrder   []common.Address

	transfers []models.Transfer

	store Store
	vault TokenVault
	facts FactPublisher
	log   *logger.Logger
	clock func() time.Time
}

func NewLedger(owner, custody common.Address, store Store, vault TokenVault, facts FactPublisher, log *logger.Logger) *Ledger {
	return &Ledger{
		owner:        owner,
		custody:      custody,
		nextSeq:      1,
		admins:       make(map[common.Address]bool),
		balances:     make(map[common.Address]map[common.Address]*holding),
		totals:       make(map[common.Address]*holding),
		walletTokens: make(map[common.Address][]common.Address),
		tokenWallets: make(map[common.Address][]common.Address),
		store:        store,
		vault:        vault,
		facts:        facts,
		log:          log,
		clock:        time.Now,
	}
}

// SetClock replaces the time source. Tests pin it to fixed instants;
// each operation reads the clock exactly once.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.clock = clock
}

// Load replays the stored snapshot into memory. Totals are verified
// against the balance rows they summarize; a divergent total is
// corrected to the recomputed sum.
func (l *Ledger) Load(ctx context.Context) error {
	snap, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger snapshot: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, admin := range snap.Admins {
		addr := common.HexToAddress(admin.Address)
		l.admins[addr] = true
		l.adminOrder = append(l.adminOrder, addr)
		l.bumpSeq(admin.Seq)
	}

	sums := make(map[common.Address]*big.Int)
	var sumOrder []common.Address
	for _, row := range snap.Balances {
		wallet := common.HexToAddress(row.Wallet)
		token := common.HexToAddress(row.Token)
		amount, ok := new(big.Int).SetString(row.Amount, 10)
		if !ok {
			return fmt.Errorf("corrupt balance amount %q for %s/%s", row.Amount, row.Wallet, row.Token)
		}
		if l.balances[wallet] == nil {
			l.balances[wallet] = make(map[common.Address]*holding)
		}
		l.balances[wallet][token] = &holding{amount: amount, seq: row.Seq}
		l.walletTokens[wallet] = append(l.walletTokens[wallet], token)
		l.tokenWallets[token] = append(l.tokenWallets[token], wallet)
		if sums[token] == nil {
			sums[token] = new(big.Int)
			sumOrder = append(sumOrder, token)
		}
		sums[token].Add(sums[token], amount)
		l.bumpSeq(row.Seq)
	}

	for _, row := range snap.Totals {
		token := common.HexToAddress(row.Token)
		amount, ok := new(big.Int).SetString(row.Amount, 10)
		if !ok {
			return fmt.Errorf("corrupt token total %q for %s", row.Amount, row.Token)
		}
		if sum := sums[token]; sum != nil && sum.Cmp(amount) != 0 {
			l.log.Error("LEDGER", fmt.Sprintf("total for %s diverged from balance rows (%s vs %s), using recomputed sum", row.Token, amount, sum))
			amount = sum
		}
		l.totals[token] = &holding{amount: amount, seq: row.Seq}
		l.tokenOrder = append(l.tokenOrder, token)
		l.bumpSeq(row.Seq)
	}
	for _, token := range sumOrder {
		if l.totals[token] != nil {
			continue
		}
		l.log.Error("LEDGER", fmt.Sprintf("no total row for %s, using recomputed sum %s", chain.Hex(token), sums[token]))
		l.totals[token] = &holding{amount: sums[token]}
		l.tokenOrder = append(l.tokenOrder, token)
	}

	l.transfers = append(l.transfers, snap.Transfers...)

	l.log.Info("LEDGER", fmt.Sprintf("Loaded %d admins, %d balances, %d tokens, %d transfers",
		len(snap.Admins), len(snap.Balances), len(snap.Totals), len(snap.Transfers)))
	return nil
}

// ---------------- ADMINS ----------------

func (l *Ledger) AddAdmin(ctx context.Context, caller, admin common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()

	if caller != l.owner {
		return ErrUnauthorized
	}
	if chain.IsZero(admin) {
		return ErrZeroAddress
	}
	if l.admins[admin] {
		return fmt.Errorf("%s: %w", chain.Hex(admin), ErrAdminExists)
	}

	seq := l.nextSeq
	if err := l.store.SaveAdmin(ctx, models.Admin{Address: chain.Hex(admin), Seq: seq, AddedAt: now}); err != nil {
		return fmt.Errorf("failed to persist admin: %w", err)
	}
	l.admins[admin] = true
	l.adminOrder = append(l.adminOrder, admin)
	l.nextSeq = seq + 1

	l.log.LogLedger("ADD_ADMIN", "", fmt.Sprintf("%s added as admin", chain.Hex(admin)))
	return nil
}

func (l *Ledger) RemoveAdmin(ctx context.Context, caller, admin common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrUnauthorized
	}
	if !l.admins[admin] {
		return fmt.Errorf("%s: %w", chain.Hex(admin), ErrAdminNotFound)
	}

	if err := l.store.DeleteAdmin(ctx, chain.Hex(admin)); err != nil {
		return fmt.Errorf("failed to remove admin: %w", err)
	}
	delete(l.admins, admin)
	l.adminOrder = removeAddress(l.adminOrder, admin)

	l.log.LogLedger("REMOVE_ADMIN", "", fmt.Sprintf("%s removed as admin", chain.Hex(admin)))
	return nil
}

// IsAdmin reports whether addr can mutate balances. The owner always
// can, listed as an admin or not.
func (l *Ledger) IsAdmin(addr common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isAdminLocked(addr)
}

func (l *Ledger) isAdminLocked(addr common.Address) bool {
	return addr == l.owner || l.admins[addr]
}

// ---------------- BALANCE MUTATIONS ----------------

// SetBalance overwrites a wallet's earmark for one token. The token
// total moves by the difference between the new and old amounts.
func (l *Ledger) SetBalance(ctx context.Context, caller, user, token common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()

	if !l.isAdminLocked(caller) {
		return ErrUnauthorized
	}
	if err := l.validateTarget(user, token, amount); err != nil {
		return err
	}
	return l.writeAmount(ctx, user, token, new(big.Int).Set(amount), "set", now)
}

func (l *Ledger) IncreaseBalance(ctx context.Context, caller, user, token common.Address, delta *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()

	if !l.isAdminLocked(caller) {
		return ErrUnauthorized
	}
	if err := l.validateTarget(user, token, delta); err != nil {
		return err
	}
	next := new(big.Int).Add(l.amountLocked(user, token), delta)
	return l.writeAmount(ctx, user, token, next, "increase", now)
}

func (l *Ledger) ReduceBalance(ctx context.Context, caller, user, token common.Address, delta *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()

	if !l.isAdminLocked(caller) {
		return ErrUnauthorized
	}
	if err := l.validateTarget(user, token, delta); err != nil {
		return err
	}
	current := l.amountLocked(user, token)
	if delta.Cmp(current) > 0 {
		return fmt.Errorf("reduce %s below balance %s: %w", delta, current, ErrInsufficientBalance)
	}
	next := new(big.Int).Sub(current, delta)
	return l.writeAmount(ctx, user, token, next, "reduce", now)
}

// ---------------- FUND / CLAIM / WITHDRAW ----------------

// Fund pulls real tokens from the caller into custody. Earmarked
// balances are untouched; funding is how admins back what they have
// promised. Open to any caller.
func (l *Ledger) Fund(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()

	if chain.IsZero(token) {
		return ErrNotPayable
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	if err := l.vault.Pull(ctx, token, caller, amount); err != nil {
		return fmt.Errorf("funding transfer failed: %w", err)
	}

	xfer := models.Transfer{
		ID:        utils.GenerateTransferID(),
		Kind:      models.TransferKindFund,
		Token:     chain.Hex(token),
		Wallet:    chain.Hex(caller),
		Amount:    amount.String(),
		CreatedAt: now,
	}
	if err := l.store.SaveTransfer(ctx, xfer); err != nil {
		if perr := l.vault.Pay(ctx, token, caller, amount); perr != nil {
			l.log.Error("VAULT", fmt.Sprintf("refund after failed funding journal: %v", perr))
		}
		return fmt.Errorf("failed to journal funding: %w", err)
	}
	l.transfers = append(l.transfers, xfer)

	l.log.LogLedger("FUND", xfer.Token, fmt.Sprintf("%s funded %s", xfer.Wallet, xfer.Amount))
	if err := l.facts.PublishTransfer(xfer); err != nil {
		l.log.Error("KAFKA", fmt.Sprintf("funding publish failed: %v", err))
	}
	return nil
}

// Claim pays the caller their entire earmarked balance for one token
// and zeroes it. A zero balance is a no-op, not an error, so wallets
// can sweep tokens blindly.
func (l *Ledger) Claim(ctx context.Context, caller, token common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	return l.claimLocked(ctx, caller, token, now)
}

// ClaimAll sweeps every token the caller holds a nonzero balance for,
// in the order the tokens were first earmarked. A failed payout stops
// the sweep; completed payouts stand.
func (l *Ledger) ClaimAll(ctx context.Context, caller common.Address) ([]models.TokenBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()

	tokens := make([]common.Address, len(l.walletTokens[caller]))
	copy(tokens, l.walletTokens[caller])

	claimed := make([]models.TokenBalance, 0, len(tokens))
	for _, token := range tokens {
		amount, err := l.claimLocked(ctx, caller, token, now)
		if err != nil {
			return claimed, err
		}
		if amount.Sign() > 0 {
			claimed = append(claimed, models.TokenBalance{Token: chain.Hex(token), Amount: amount.String()})
		}
	}
	return claimed, nil
}

func (l *Ledger) claimLocked(ctx context.Context, caller, token common.Address, now time.Time) (*big.Int, error) {
	hold := l.balances[caller][token]
	if hold == nil || hold.amount.Sign() == 0 {
		return new(big.Int), nil
	}
	amount := new(big.Int).Set(hold.amount)

	total := l.totals[token]
	newTotal := new(big.Int).Sub(total.amount, amount)
	totalRow := models.TokenTotal{Token: chain.Hex(token), Amount: newTotal.String(), Seq: total.seq}

	xfer := models.Transfer{
		ID:        utils.GenerateTransferID(),
		Kind:      models.TransferKindClaim,
		Token:     chain.Hex(token),
		Wallet:    chain.Hex(caller),
		Recipient: chain.Hex(caller),
		Amount:    amount.String(),
		CreatedAt: now,
	}
	if err := l.store.ApplyClaim(ctx, chain.Hex(caller), chain.Hex(token), totalRow, xfer); err != nil {
		return nil, fmt.Errorf("failed to persist claim: %w", err)
	}

	if err := l.vault.Pay(ctx, token, caller, amount); err != nil {
		balRow := models.Balance{Wallet: chain.Hex(caller), Token: chain.Hex(token), Amount: amount.String(), Seq: hold.seq}
		prevTotal := models.TokenTotal{Token: chain.Hex(token), Amount: total.amount.String(), Seq: total.seq}
		if rerr := l.store.RevertClaim(ctx, balRow, prevTotal, xfer.ID); rerr != nil {
			l.log.Error("LEDGER", fmt.Sprintf("claim revert failed after payout error: %v", rerr))
		}
		return nil, fmt.Errorf("claim payout failed: %w", err)
	}

	delete(l.balances[caller], token)
	if len(l.balances[caller]) == 0 {
		delete(l.balances, caller)
	}
	l.walletTokens[caller] = removeAddress(l.walletTokens[caller], token)
	l.tokenWallets[token] = removeAddress(l.tokenWallets[token], caller)
	if newTotal.Sign() == 0 {
		delete(l.totals, token)
		l.tokenOrder = removeAddress(l.tokenOrder, token)
	} else {
		total.amount = newTotal
	}
	l.transfers = append(l.transfers, xfer)

	l.log.LogLedger("CLAIM", xfer.Token, fmt.Sprintf("%s claimed %s", xfer.Wallet, xfer.Amount))
	if err := l.facts.PublishTransfer(xfer); err != nil {
		l.log.Error("KAFKA", fmt.Sprintf("claim publish failed: %v", err))
	}
	return amount, nil
}

// WithdrawExcess pays out custody holdings above the earmarked total.
// The guard is the ledger's core promise: tokens promised to wallets
// can never leave through this door.
func (l *Ledger) WithdrawExcess(ctx context.Context, caller, token common.Address, amount *big.Int, recipient common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()

	if !l.isAdminLocked(caller) {
		return ErrUnauthorized
	}
	if chain.IsZero(token) || chain.IsZero(recipient) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	held, err := l.vault.HeldBalance(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to read held balance: %w", err)
	}
	earmarked := new(big.Int)
	if total := l.totals[token]; total != nil {
		earmarked.Set(total.amount)
	}
	excess := new(big.Int).Sub(held, earmarked)
	if amount.Cmp(excess) > 0 {
		return fmt.Errorf("withdraw %s with excess %s: %w", amount, excess, ErrInsufficientExcess)
	}

	xfer := models.Transfer{
		ID:        utils.GenerateTransferID(),
		Kind:      models.TransferKindWithdraw,
		Token:     chain.Hex(token),
		Wallet:    chain.Hex(caller),
		Recipient: chain.Hex(recipient),
		Amount:    amount.String(),
		CreatedAt: now,
	}
	if err := l.store.SaveTransfer(ctx, xfer); err != nil {
		return fmt.Errorf("failed to journal withdrawal: %w", err)
	}
	if err := l.vault.Pay(ctx, token, recipient, amount); err != nil {
		if derr := l.store.DeleteTransfer(ctx, xfer.ID); derr != nil {
			l.log.Error("LEDGER", fmt.Sprintf("journal cleanup after failed withdrawal: %v", derr))
		}
		return fmt.Errorf("withdrawal payout failed: %w", err)
	}
	l.transfers = append(l.transfers, xfer)

	l.log.LogLedger("WITHDRAW", xfer.Token, fmt.Sprintf("%s withdrew %s to %s", xfer.Wallet, xfer.Amount, xfer.Recipient))
	if err := l.facts.PublishTransfer(xfer); err != nil {
		l.log.Error("KAFKA", fmt.Sprintf("withdrawal publish failed: %v", err))
	}
	return nil
}

// ---------------- QUERIES ----------------

// GetBalance returns the earmarked amount, zero when absent.
func (l *Ledger) GetBalance(wallet, token common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.amountLocked(wallet, token))
}

// GetBalancesForWallet lists a wallet's nonzero earmarks in the order
// the tokens were first earmarked for it.
func (l *Ledger) GetBalancesForWallet(wallet common.Address) []models.TokenBalance {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]models.TokenBalance, 0, len(l.walletTokens[wallet]))
	for _, token := range l.walletTokens[wallet] {
		result = append(result, models.TokenBalance{
			Token:  chain.Hex(token),
			Amount: l.balances[wallet][token].amount.String(),
		})
	}
	return result
}

// GetBalancesForToken lists every wallet holding the token, in the
// order they first received an earmark.
func (l *Ledger) GetBalancesForToken(token common.Address) []models.WalletBalance {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]models.WalletBalance, 0, len(l.tokenWallets[token]))
	for _, wallet := range l.tokenWallets[token] {
		result = append(result, models.WalletBalance{
			Wallet: chain.Hex(wallet),
			Amount: l.balances[wallet][token].amount.String(),
		})
	}
	return result
}

// GetAllTotalBalances lists the running total per token, in the order
// tokens first carried value.
func (l *Ledger) GetAllTotalBalances() []models.TokenBalance {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]models.TokenBalance, 0, len(l.tokenOrder))
	for _, token := range l.tokenOrder {
		result = append(result, models.TokenBalance{
			Token:  chain.Hex(token),
			Amount: l.totals[token].amount.String(),
		})
	}
	return result
}

// GetAllAdmins lists admins in the order they were added. The owner is
// not listed unless explicitly added.
func (l *Ledger) GetAllAdmins() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]string, 0, len(l.adminOrder))
	for _, addr := range l.adminOrder {
		result = append(result, chain.Hex(addr))
	}
	return result
}

func (l *Ledger) GetTokensForUser(wallet common.Address) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]string, 0, len(l.walletTokens[wallet]))
	for _, token := range l.walletTokens[wallet] {
		result = append(result, chain.Hex(token))
	}
	return result
}

func (l *Ledger) GetUsersForToken(token common.Address) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]string, 0, len(l.tokenWallets[token]))
	for _, wallet := range l.tokenWallets[token] {
		result = append(result, chain.Hex(wallet))
	}
	return result
}

// GetTransfers returns the journal in chronological order.
func (l *Ledger) GetTransfers() []models.Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]models.Transfer, len(l.transfers))
	copy(result, l.transfers)
	return result
}

// Custody returns the address real tokens are held at.
func (l *Ledger) Custody() common.Address {
	return l.custody
}

// ---------------- INTERNAL ----------------

func (l *Ledger) validateTarget(user, token common.Address, amount *big.Int) error {
	if chain.IsZero(user) || chain.IsZero(token) {
		return ErrZeroAddress
	}
	if user == l.custody {
		return fmt.Errorf("%s: %w", chain.Hex(user), ErrInvalidUser)
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (l *Ledger) amountLocked(wallet, token common.Address) *big.Int {
	if hold := l.balances[wallet][token]; hold != nil {
		return hold.amount
	}
	return new(big.Int)
}

// writeAmount moves one (wallet, token) earmark to an absolute new
// amount: persists the row and the adjusted total together, then
// commits memory and membership. Caller holds the lock and has
// validated everything.
func (l *Ledger) writeAmount(ctx context.Context, user, token common.Address, next *big.Int, op string, now time.Time) error {
	hold := l.balances[user][token]
	old := new(big.Int)
	if hold != nil {
		old.Set(hold.amount)
	}
	if next.Cmp(old) == 0 {
		return nil
	}

	delta := new(big.Int).Sub(next, old)
	total := l.totals[token]
	oldTotal := new(big.Int)
	if total != nil {
		oldTotal.Set(total.amount)
	}
	newTotal := new(big.Int).Add(oldTotal, delta)

	drew := int64(0)
	pairSeq := int64(0)
	if hold != nil {
		pairSeq = hold.seq
	} else if next.Sign() > 0 {
		pairSeq = l.nextSeq
		drew++
	}
	totalSeq := int64(0)
	if total != nil {
		totalSeq = total.seq
	} else if newTotal.Sign() > 0 {
		totalSeq = l.nextSeq + drew
		drew++
	}

	balRow := models.Balance{Wallet: chain.Hex(user), Token: chain.Hex(token), Amount: next.String(), Seq: pairSeq}
	totalRow := models.TokenTotal{Token: chain.Hex(token), Amount: newTotal.String(), Seq: totalSeq}
	if err := l.store.ApplyBalance(ctx, balRow, totalRow); err != nil {
		return fmt.Errorf("failed to persist balance: %w", err)
	}

	switch {
	case next.Sign() == 0:
		delete(l.balances[user], token)
		if len(l.balances[user]) == 0 {
			delete(l.balances, user)
		}
		l.walletTokens[user] = removeAddress(l.walletTokens[user], token)
		l.tokenWallets[token] = removeAddress(l.tokenWallets[token], user)
	case hold != nil:
		hold.amount = next
	default:
		if l.balances[user] == nil {
			l.balances[user] = make(map[common.Address]*holding)
		}
		l.balances[user][token] = &holding{amount: next, seq: pairSeq}
		l.walletTokens[user] = append(l.walletTokens[user], token)
		l.tokenWallets[token] = append(l.tokenWallets[token], user)
	}

	switch {
	case newTotal.Sign() == 0:
		delete(l.totals, token)
		l.tokenOrder = removeAddress(l.tokenOrder, token)
	case total != nil:
		total.amount = newTotal
	default:
		l.totals[token] = &holding{amount: newTotal, seq: totalSeq}
		l.tokenOrder = append(l.tokenOrder, token)
	}
	l.nextSeq += drew

	l.log.LogLedger(op, balRow.Token, fmt.Sprintf("%s balance %s -> %s", balRow.Wallet, old, next))
	fact := models.BalanceFact{
		Wallet:     balRow.Wallet,
		Token:      balRow.Token,
		Amount:     next.String(),
		Operation:  op,
		OccurredAt: now,
	}
	if err := l.facts.PublishBalanceChanged(fact); err != nil {
		l.log.Error("KAFKA", fmt.Sprintf("balance publish failed: %v", err))
	}
	return nil
}

func (l *Ledger) bumpSeq(seq int64) {
	if seq >= l.nextSeq {
		l.nextSeq = seq + 1
	}
}

func removeAddress(list []common.Address, addr common.Address) []common.Address {
	for i, a := range list {
		if a == addr {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
