package exchange

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/pkg/crypto"
)

type engineFixture struct {
	engine   *Engine
	registry *Registry
	admin    *Admin
	eip712   *crypto.EIP712Signer
	clock    *fakeClock
	settler  *countingSettler
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	registry := NewRegistry()
	admin := NewAdmin(common.HexToAddress("0xad"), common.HexToAddress("0xfe"), common.Address{})
	eip712 := crypto.NewEIP712Signer(testDomain())
	clock := &fakeClock{now: baseTime.Add(time.Minute)}
	settler := &countingSettler{}
	return &engineFixture{
		engine:   NewEngine(registry, admin, eip712, clock, nil, settler),
		registry: registry,
		admin:    admin,
		eip712:   eip712,
		clock:    clock,
		settler:  settler,
	}
}

// openPair submits a compatible offer/request pair and returns the match unit.
func (f *engineFixture) openPair(t *testing.T, offerKey, requestKey *crypto.Signer, saltBase int64) MatchPair {
	t.Helper()
	offer := testOrder(offerKey.Address(), saltBase, true)
	request := testOrder(requestKey.Address(), saltBase+1, false)

	offerSide := signedSide(t, f.eip712, offerKey, offer)
	requestSide := signedSide(t, f.eip712, requestKey, request)

	if err := f.registry.RecordOpen(offerSide.Hash, offer.Maker); err != nil {
		t.Fatalf("open offer: %v", err)
	}
	if err := f.registry.RecordOpen(requestSide.Hash, request.Maker); err != nil {
		t.Fatalf("open request: %v", err)
	}
	return MatchPair{Offer: offerSide, Request: requestSide}
}

func TestMatchBatchFillsPair(t *testing.T) {
	f := newEngineFixture(t)
	provider := mustKey(t)
	consumer := mustKey(t)
	pair := f.openPair(t, provider, consumer, 1)

	filled, err := f.engine.MatchBatch([]MatchPair{pair})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}

	if len(filled) != 2 {
		t.Fatalf("filled %d orders, want 2", len(filled))
	}
	if f.settler.calls != 2 {
		t.Errorf("settler invoked %d times, want 2 (once per side)", f.settler.calls)
	}
	for _, h := range filled {
		if got := f.registry.StateOf(h); got != StateFilled {
			t.Errorf("state of %s = %v, want filled", h.Hex(), got)
		}
	}

	// Re-matching a settled pair fails and changes nothing
	if _, err := f.engine.MatchBatch([]MatchPair{pair}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("rematch err = %v, want ErrNotOpen", err)
	}
	if f.settler.calls != 2 {
		t.Errorf("settler invoked on failed rematch")
	}
}

func TestMatchBatchEmergencyHalt(t *testing.T) {
	f := newEngineFixture(t)
	provider := mustKey(t)
	consumer := mustKey(t)
	pair := f.openPair(t, provider, consumer, 1)

	if err := f.admin.SetHalt(f.admin.Administrator(), true); err != nil {
		t.Fatalf("halt: %v", err)
	}

	if _, err := f.engine.MatchBatch([]MatchPair{pair}); !errors.Is(err, ErrEmergencyHalted) {
		t.Errorf("err = %v, want ErrEmergencyHalted", err)
	}
	if f.settler.calls != 0 {
		t.Error("settler invoked while halted")
	}
	if got := f.registry.StateOf(pair.Offer.Hash); got != StateOpen {
		t.Errorf("offer state = %v, want open", got)
	}

	// Lifting the halt restores matching
	f.admin.SetHalt(f.admin.Administrator(), false)
	if _, err := f.engine.MatchBatch([]MatchPair{pair}); err != nil {
		t.Errorf("match after halt lifted failed: %v", err)
	}
}

func TestMatchBatchOrderMismatch(t *testing.T) {
	f := newEngineFixture(t)
	provider := mustKey(t)
	consumer := mustKey(t)
	pair := f.openPair(t, provider, consumer, 1)

	// Tamper with the payload: it no longer reproduces the claimed hash
	pair.Offer.Order.OrderData = []byte("dataset:ais-stream:baltic")

	if _, err := f.engine.MatchBatch([]MatchPair{pair}); !errors.Is(err, ErrOrderMismatch) {
		t.Errorf("err = %v, want ErrOrderMismatch", err)
	}
	if f.settler.calls != 0 {
		t.Error("settler invoked for mismatched payload")
	}
}

func TestMatchBatchWindowChecks(t *testing.T) {
	f := newEngineFixture(t)
	provider := mustKey(t)
	consumer := mustKey(t)
	pair := f.openPair(t, provider, consumer, 1)

	// Before the listing window
	f.clock.now = baseTime.Add(-time.Minute)
	if _, err := f.engine.MatchBatch([]MatchPair{pair}); !errors.Is(err, ErrNotYetListed) {
		t.Errorf("err = %v, want ErrNotYetListed", err)
	}

	// After expiration
	f.clock.now = baseTime.Add(2 * time.Hour)
	if _, err := f.engine.MatchBatch([]MatchPair{pair}); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}

	// Neither attempt touched state
	if got := f.registry.StateOf(pair.Offer.Hash); got != StateOpen {
		t.Errorf("offer state = %v, want open", got)
	}
	if got := f.registry.StateOf(pair.Request.Hash); got != StateOpen {
		t.Errorf("request state = %v, want open", got)
	}
}

func TestMatchBatchCompatibility(t *testing.T) {
	f := newEngineFixture(t)
	provider := mustKey(t)
	other := mustKey(t)

	// Two offers cannot settle against each other
	offerA := testOrder(provider.Address(), 1, true)
	offerB := testOrder(other.Address(), 2, true)
	sideA := signedSide(t, f.eip712, provider, offerA)
	sideB := signedSide(t, f.eip712, other, offerB)
	f.registry.RecordOpen(sideA.Hash, offerA.Maker)
	f.registry.RecordOpen(sideB.Hash, offerB.Maker)

	if _, err := f.engine.MatchBatch([]MatchPair{{Offer: sideA, Request: sideB}}); !errors.Is(err, ErrIncompatible) {
		t.Errorf("same-direction err = %v, want ErrIncompatible", err)
	}

	// Mismatched asset terms
	consumer := mustKey(t)
	request := testOrder(consumer.Address(), 3, false)
	request.AssetData = []byte("erc20:USDC:9999999")
	sideR := signedSide(t, f.eip712, consumer, request)
	f.registry.RecordOpen(sideR.Hash, request.Maker)

	if _, err := f.engine.MatchBatch([]MatchPair{{Offer: sideA, Request: sideR}}); !errors.Is(err, ErrIncompatible) {
		t.Errorf("asset mismatch err = %v, want ErrIncompatible", err)
	}
}

func TestMatchBatchSignatureCheck(t *testing.T) {
	f := newEngineFixture(t)
	provider := mustKey(t)
	consumer := mustKey(t)
	pair := f.openPair(t, provider, consumer, 1)

	// Swap in a forged signature on the request side
	impostor := mustKey(t)
	pair.Request.Signature = mustSign(t, f.eip712, impostor, &pair.Request.Order)

	if _, err := f.engine.MatchBatch([]MatchPair{pair}); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
	if f.settler.calls != 0 {
		t.Error("settler invoked for forged signature")
	}
}

func TestMatchBatchAllOrNothing(t *testing.T) {
	f := newEngineFixture(t)
	k1, k2, k3, k4 := mustKey(t), mustKey(t), mustKey(t), mustKey(t)
	good := f.openPair(t, k1, k2, 1)
	bad := f.openPair(t, k3, k4, 10)

	// Invalidate the second pair only
	bad.Request.Order.OrderData = []byte("tampered")

	if _, err := f.engine.MatchBatch([]MatchPair{good, bad}); !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("err = %v, want ErrOrderMismatch", err)
	}

	// The valid first pair must be untouched: the whole batch aborted
	if got := f.registry.StateOf(good.Offer.Hash); got != StateOpen {
		t.Errorf("good offer state = %v, want open", got)
	}
	if f.settler.calls != 0 {
		t.Error("settler invoked despite batch abort")
	}
}

func TestMatchBatchTransferFailureAborts(t *testing.T) {
	f := newEngineFixture(t)
	k1, k2, k3, k4 := mustKey(t), mustKey(t), mustKey(t), mustKey(t)
	first := f.openPair(t, k1, k2, 1)
	second := f.openPair(t, k3, k4, 10)

	// Fail on the third delivery (second pair, offer side)
	f.settler.failAfter = 2

	if _, err := f.engine.MatchBatch([]MatchPair{first, second}); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}

	// No fill is recorded for either pair
	for _, h := range []common.Hash{first.Offer.Hash, first.Request.Hash, second.Offer.Hash, second.Request.Hash} {
		if got := f.registry.StateOf(h); got != StateOpen {
			t.Errorf("state of %s = %v, want open", h.Hex(), got)
		}
	}
}

func TestMatchBatchRejectsDuplicateHashInBatch(t *testing.T) {
	f := newEngineFixture(t)
	provider := mustKey(t)
	c1 := mustKey(t)
	pair := f.openPair(t, provider, c1, 1)

	// The same offer order paired twice in one batch would double-fill
	c2 := mustKey(t)
	request2 := testOrder(c2.Address(), 20, false)
	side2 := signedSide(t, f.eip712, c2, request2)
	f.registry.RecordOpen(side2.Hash, request2.Maker)
	dup := MatchPair{Offer: pair.Offer, Request: side2}

	if _, err := f.engine.MatchBatch([]MatchPair{pair, dup}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("err = %v, want ErrNotOpen", err)
	}
	if f.settler.calls != 0 {
		t.Error("settler invoked despite duplicate order in batch")
	}
	if got := f.registry.StateOf(pair.Offer.Hash); got != StateOpen {
		t.Errorf("offer state = %v, want open", got)
	}
}

func TestMatchBatchMultiplePairs(t *testing.T) {
	f := newEngineFixture(t)
	k1, k2, k3, k4 := mustKey(t), mustKey(t), mustKey(t), mustKey(t)
	first := f.openPair(t, k1, k2, 1)
	second := f.openPair(t, k3, k4, 10)

	filled, err := f.engine.MatchBatch([]MatchPair{first, second})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(filled) != 4 {
		t.Fatalf("filled %d orders, want 4", len(filled))
	}
	if f.settler.calls != 4 {
		t.Errorf("settler invoked %d times, want 4", f.settler.calls)
	}
}
