package exchange

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry exclusively owns per-hash order state. It records the maker
// alongside each open order so cancel authorization and restart recovery can
// resolve makers without trusting caller-supplied payloads.
//
// The registry itself is in-memory; the ledger persists every transition
// through the store before applying it here, and restores the maps on boot.
type Registry struct {
	mu     sync.RWMutex
	states map[common.Hash]OrderState
	makers map[common.Hash]common.Address
}

func NewRegistry() *Registry {
	return &Registry{
		states: make(map[common.Hash]OrderState),
		makers: make(map[common.Hash]common.Address),
	}
}

// Restore loads previously persisted entries. Called once at boot, before
// the registry is shared.
func (r *Registry) Restore(states map[common.Hash]OrderState, makers map[common.Hash]common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, s := range states {
		r.states[h] = s
	}
	for h, m := range makers {
		r.makers[h] = m
	}
}

// StateOf returns the current state for a hash, defaulting to StateUnknown.
func (r *Registry) StateOf(hash common.Hash) OrderState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[hash]
}

// MakerOf returns the maker recorded at submission time for an order hash.
func (r *Registry) MakerOf(hash common.Hash) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.makers[hash]
	return m, ok
}

// RecordOpen transitions Unknown -> Open. Any prior state (Open, Cancelled,
// Filled) means this exact payload was seen before: replay protection rests
// on the salt-differentiated hash, so the transition fails with
// ErrDuplicateOrder.
func (r *Registry) RecordOpen(hash common.Hash, maker common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states[hash] != StateUnknown {
		return ErrDuplicateOrder
	}
	r.states[hash] = StateOpen
	r.makers[hash] = maker
	return nil
}

// RecordCancelled transitions Open -> Cancelled. The requester must be the
// maker recorded at submission.
func (r *Registry) RecordCancelled(hash common.Hash, requester common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states[hash] != StateOpen {
		return ErrNotOpen
	}
	if r.makers[hash] != requester {
		return ErrUnauthorized
	}
	r.states[hash] = StateCancelled
	return nil
}

// RecordFilled transitions Open -> Filled.
func (r *Registry) RecordFilled(hash common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states[hash] != StateOpen {
		return ErrNotOpen
	}
	r.states[hash] = StateFilled
	return nil
}

// Len returns the number of tracked orders (for status/metrics).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
