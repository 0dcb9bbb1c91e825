package registry

import (
	"github.com/ethereum/go-ethereum/common"
)

// allowlist holds per-event attendee gates. It is owned by the
// Registry and only touched under the Registry's lock.
type allowlist struct {
	entries map[uint64]map[common.Address]bool
}

func newAllowlist() *allowlist {
	return &allowlist{entries: make(map[uint64]map[common.Address]bool)}
}

// set flips the bit for every address. Revoked addresses are removed
// outright so the map never accumulates false entries.
func (a *allowlist) set(eventID uint64, addrs []common.Address, allowed bool) {
	if a.entries[eventID] == nil {
		a.entries[eventID] = make(map[common.Address]bool)
	}
	for _, addr := range addrs {
		if allowed {
			a.entries[eventID][addr] = true
		} else {
			delete(a.entries[eventID], addr)
		}
	}
}

func (a *allowlist) allowed(eventID uint64, addr common.Address) bool {
	return a.entries[eventID][addr]
}

// drop discards every entry for the event.
func (a *allowlist) drop(eventID uint64) {
	delete(a.entries, eventID)
}
