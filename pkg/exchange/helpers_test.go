package exchange

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/pkg/crypto"
)

// fakeClock pins the ledger clock so window checks are deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// baseTime is an arbitrary fixed instant all window tests hang off.
var baseTime = time.Unix(1_700_000_000, 0)

func testDomain() crypto.EIP712Domain {
	return crypto.DefaultDomain()
}

// testOrder builds an order listed at baseTime and expiring an hour later.
func testOrder(maker common.Address, salt int64, offer bool) *Order {
	return &Order{
		Maker:          maker,
		Salt:           big.NewInt(salt),
		ListingTime:    uint64(baseTime.Unix()),
		ExpirationTime: uint64(baseTime.Add(time.Hour).Unix()),
		Offer:          offer,
		AssetData:      []byte("erc20:USDC:5000000"),
		OrderData:      []byte("dataset:ais-stream:north-sea"),
		CallData:       []byte("deliver:feed-1199"),
		CallTarget:     common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
}

func mustHash(t *testing.T, e *crypto.EIP712Signer, o *Order) common.Hash {
	t.Helper()
	digest, err := e.HashOrder(o.ToEIP712())
	if err != nil {
		t.Fatalf("hash order: %v", err)
	}
	return common.BytesToHash(digest)
}

func mustSign(t *testing.T, e *crypto.EIP712Signer, signer *crypto.Signer, o *Order) []byte {
	t.Helper()
	sig, err := e.SignOrder(signer, o.ToEIP712())
	if err != nil {
		t.Fatalf("sign order: %v", err)
	}
	return sig
}

func mustKey(t *testing.T) *crypto.Signer {
	t.Helper()
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return signer
}

// signedSide assembles one match side from an order and its maker's key.
func signedSide(t *testing.T, e *crypto.EIP712Signer, signer *crypto.Signer, o *Order) SignedOrder {
	t.Helper()
	return SignedOrder{
		Order:     *o,
		Hash:      mustHash(t, e, o),
		Signature: mustSign(t, e, signer, o),
	}
}

// countingSettler records hook invocations and optionally fails after a
// number of calls.
type countingSettler struct {
	calls     int
	failAfter int // fail when calls exceeds this; 0 = never fail
}

func (s *countingSettler) TransferAndDeliver(assetData, callData []byte, callTarget common.Address, orderData []byte) error {
	s.calls++
	if s.failAfter > 0 && s.calls > s.failAfter {
		return ErrTransferFailed
	}
	return nil
}

// memStore is an in-memory exchange.Store for ledger tests.
type memStore struct {
	states map[common.Hash]OrderState
	makers map[common.Hash]common.Address
	feeTo  common.Address
	halted bool
	nonce  uint64
}

func newMemStore() *memStore {
	return &memStore{
		states: make(map[common.Hash]OrderState),
		makers: make(map[common.Hash]common.Address),
	}
}

func (s *memStore) Commit(cs *Changeset) error {
	for _, rec := range cs.Orders {
		s.states[rec.Hash] = rec.State
		s.makers[rec.Hash] = rec.Maker
	}
	if cs.FeeTo != nil {
		s.feeTo = *cs.FeeTo
	}
	if cs.Halted != nil {
		s.halted = *cs.Halted
	}
	if cs.AdminNonce != nil {
		s.nonce = *cs.AdminNonce
	}
	return nil
}

func (s *memStore) LoadOrders() (map[common.Hash]OrderState, map[common.Hash]common.Address, error) {
	states := make(map[common.Hash]OrderState, len(s.states))
	for h, st := range s.states {
		states[h] = st
	}
	makers := make(map[common.Hash]common.Address, len(s.makers))
	for h, m := range s.makers {
		makers[h] = m
	}
	return states, makers, nil
}

func (s *memStore) LoadAdmin() (common.Address, bool, uint64, error) {
	return s.feeTo, s.halted, s.nonce, nil
}
