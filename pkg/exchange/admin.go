package exchange

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Admin owns the process-wide administrative state: the fee recipient
// consulted by external settlement, and the emergency switch gating the
// matching engine. Both are mutated only through authenticated setters; the
// authorized identities are fixed at construction.
type Admin struct {
	mu            sync.RWMutex
	administrator common.Address
	feeSetter     common.Address
	feeTo         common.Address
	halted        bool
}

func NewAdmin(administrator, feeSetter, feeTo common.Address) *Admin {
	return &Admin{
		administrator: administrator,
		feeSetter:     feeSetter,
		feeTo:         feeTo,
	}
}

// Restore loads persisted mutable state at boot.
func (a *Admin) Restore(feeTo common.Address, halted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if feeTo != (common.Address{}) {
		a.feeTo = feeTo
	}
	a.halted = halted
}

func (a *Admin) Administrator() common.Address { return a.administrator }
func (a *Admin) FeeSetter() common.Address     { return a.feeSetter }

func (a *Admin) FeeTo() common.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.feeTo
}

// Halted reports whether the emergency switch is engaged. Matching is gated
// on this; submission and cancellation never are, so participants can always
// withdraw intent during an emergency.
func (a *Admin) Halted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.halted
}

// SetFeeTo updates the fee recipient. Only the designated fee setter may call.
func (a *Admin) SetFeeTo(caller, feeTo common.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.feeSetter {
		return ErrUnauthorized
	}
	a.feeTo = feeTo
	return nil
}

// SetHalt toggles the emergency switch. Only the administrator may call.
func (a *Admin) SetHalt(caller common.Address, halted bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.administrator {
		return ErrUnauthorized
	}
	a.halted = halted
	return nil
}
