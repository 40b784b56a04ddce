package exchange

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	hashA  = common.HexToHash("0xaa")
	makerA = common.HexToAddress("0x01")
	makerB = common.HexToAddress("0x02")
)

func TestRegistryDefaultsUnknown(t *testing.T) {
	r := NewRegistry()

	if got := r.StateOf(hashA); got != StateUnknown {
		t.Errorf("state = %v, want unknown", got)
	}
	if _, ok := r.MakerOf(hashA); ok {
		t.Error("maker resolved for unseen hash")
	}
}

func TestRegistryOpenThenDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.RecordOpen(hashA, makerA); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if got := r.StateOf(hashA); got != StateOpen {
		t.Errorf("state = %v, want open", got)
	}

	// Re-opening any previously seen hash is a duplicate
	if err := r.RecordOpen(hashA, makerA); !errors.Is(err, ErrDuplicateOrder) {
		t.Errorf("err = %v, want ErrDuplicateOrder", err)
	}
}

func TestRegistryCancelAuthorization(t *testing.T) {
	r := NewRegistry()
	r.RecordOpen(hashA, makerA)

	// Non-maker cancel fails and leaves the order open
	if err := r.RecordCancelled(hashA, makerB); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if got := r.StateOf(hashA); got != StateOpen {
		t.Errorf("state after unauthorized cancel = %v, want open", got)
	}

	// Maker cancel succeeds
	if err := r.RecordCancelled(hashA, makerA); err != nil {
		t.Fatalf("maker cancel failed: %v", err)
	}
	if got := r.StateOf(hashA); got != StateCancelled {
		t.Errorf("state = %v, want cancelled", got)
	}
}

func TestRegistryCancelIdempotenceBoundary(t *testing.T) {
	r := NewRegistry()
	r.RecordOpen(hashA, makerA)
	r.RecordCancelled(hashA, makerA)

	// Second cancel observes the terminal state
	if err := r.RecordCancelled(hashA, makerA); !errors.Is(err, ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
	if got := r.StateOf(hashA); got != StateCancelled {
		t.Errorf("state = %v, want cancelled", got)
	}
}

func TestRegistryFillTransitions(t *testing.T) {
	r := NewRegistry()

	// Fill before open
	if err := r.RecordFilled(hashA); !errors.Is(err, ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}

	r.RecordOpen(hashA, makerA)
	if err := r.RecordFilled(hashA); err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if got := r.StateOf(hashA); got != StateFilled {
		t.Errorf("state = %v, want filled", got)
	}

	// Terminal states never revert
	if err := r.RecordFilled(hashA); !errors.Is(err, ErrNotOpen) {
		t.Errorf("refill err = %v, want ErrNotOpen", err)
	}
	if err := r.RecordCancelled(hashA, makerA); !errors.Is(err, ErrNotOpen) {
		t.Errorf("cancel-after-fill err = %v, want ErrNotOpen", err)
	}
}

func TestRegistryRestore(t *testing.T) {
	r := NewRegistry()
	r.Restore(
		map[common.Hash]OrderState{hashA: StateOpen},
		map[common.Hash]common.Address{hashA: makerA},
	)

	if got := r.StateOf(hashA); got != StateOpen {
		t.Errorf("restored state = %v, want open", got)
	}
	maker, ok := r.MakerOf(hashA)
	if !ok || maker != makerA {
		t.Errorf("restored maker = %v, want %v", maker, makerA)
	}
}
