package minter

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryMinter keeps stub and point balances in process. It backs
// mock mode and tests, where no relay or chain is available.
type MemoryMinter struct {
	mu     sync.Mutex
	stubs  map[common.Address]map[uint64]uint64
	points map[common.Address]uint64
}

func NewMemoryMinter() *MemoryMinter {
	return &MemoryMinter{
		stubs:  make(map[common.Address]map[uint64]uint64),
		points: make(map[common.Address]uint64),
	}
}

func (m *MemoryMinter) MintStub(ctx context.Context, account common.Address, stubID, qty uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stubs[account] == nil {
		m.stubs[account] = make(map[uint64]uint64)
	}
	m.stubs[account][stubID] += qty
	return nil
}

func (m *MemoryMinter) BurnStub(ctx context.Context, account common.Address, stubID, qty uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.stubs[account][stubID]
	if held < qty {
		return fmt.Errorf("cannot burn %d of stub %d: only %d held", qty, stubID, held)
	}
	m.stubs[account][stubID] = held - qty
	return nil
}

func (m *MemoryMinter) MintPoints(ctx context.Context, account common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[account] += amount
	return nil
}

func (m *MemoryMinter) BurnPoints(ctx context.Context, account common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.points[account]
	if held < amount {
		return fmt.Errorf("cannot burn %d points: only %d held", amount, held)
	}
	m.points[account] = held - amount
	return nil
}

func (m *MemoryMinter) SetContracts(stubs, points common.Address) {}

// StubBalance reports how many of a stub an account holds.
func (m *MemoryMinter) StubBalance(account common.Address, stubID uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stubs[account][stubID]
}

// PointsBalance reports an account's point total.
func (m *MemoryMinter) PointsBalance(account common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points[account]
}
