package exchange

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/pkg/crypto"
	"github.com/oceandex/oceandex/pkg/util"
)

// Settler performs the actual value/data exchange for one matched side.
// Concrete asset-transfer and delivery semantics live outside the core; the
// engine only guarantees the hook is invoked with validated, matched
// parameters. A hook must not externalize effects until the whole batch call
// has returned success - settlement and registry transition commit together
// or not at all.
type Settler interface {
	TransferAndDeliver(assetData, callData []byte, callTarget common.Address, orderData []byte) error
}

// SettlerFunc adapts a function to the Settler interface.
type SettlerFunc func(assetData, callData []byte, callTarget common.Address, orderData []byte) error

func (f SettlerFunc) TransferAndDeliver(assetData, callData []byte, callTarget common.Address, orderData []byte) error {
	return f(assetData, callData, callTarget, orderData)
}

// Compatibility decides whether two counter-orders may settle against each
// other. Asset semantics are pluggable; the engine only fixes the structural
// rules (opposite offer flags, matching dataset terms).
type Compatibility interface {
	Compatible(offer, request *Order) error
}

// StrictCompatibility is the default predicate: opposite offer flags,
// byte-equal asset and dataset terms, distinct makers.
type StrictCompatibility struct{}

func (StrictCompatibility) Compatible(offer, request *Order) error {
	if !offer.Offer || request.Offer {
		return ErrIncompatible
	}
	if offer.Maker == request.Maker {
		return ErrIncompatible
	}
	if !bytes.Equal(offer.AssetData, request.AssetData) {
		return ErrIncompatible
	}
	if !bytes.Equal(offer.OrderData, request.OrderData) {
		return ErrIncompatible
	}
	return nil
}

// Engine consumes batches of matched order pairs and settles them.
//
// Batch policy is all-or-nothing: the first failing pair aborts the entire
// call and no registry mutation from any pair survives. The engine gets this
// by running three phases - validate every pair, invoke every settlement
// hook, then record every fill - so nothing is recorded until the whole
// batch has settled. The serial ledger guarantees registry state cannot
// shift between phases.
type Engine struct {
	registry *Registry
	admin    *Admin
	eip712   *crypto.EIP712Signer
	clock    util.Clock
	compat   Compatibility
	settler  Settler
}

func NewEngine(registry *Registry, admin *Admin, eip712 *crypto.EIP712Signer, clock util.Clock, compat Compatibility, settler Settler) *Engine {
	if compat == nil {
		compat = StrictCompatibility{}
	}
	return &Engine{
		registry: registry,
		admin:    admin,
		eip712:   eip712,
		clock:    clock,
		compat:   compat,
		settler:  settler,
	}
}

// MatchBatch settles one or more order pairs. On success it returns the
// hashes of every filled order, offer side before request side per pair.
func (e *Engine) MatchBatch(pairs []MatchPair) ([]common.Hash, error) {
	if e.admin.Halted() {
		return nil, ErrEmergencyHalted
	}

	now := uint64(e.clock.Now().Unix())

	// Phase 1: validate every pair. No side effects. An order hash appearing
	// twice anywhere in the batch would double-fill, so it is rejected here
	// rather than left for phase 3 to trip over.
	seen := make(map[common.Hash]struct{}, len(pairs)*2)
	for i := range pairs {
		if err := e.validatePair(&pairs[i], now); err != nil {
			return nil, err
		}
		for _, h := range []common.Hash{pairs[i].Offer.Hash, pairs[i].Request.Hash} {
			if _, dup := seen[h]; dup {
				return nil, ErrNotOpen
			}
			seen[h] = struct{}{}
		}
	}

	// Phase 2: settle. A hook failure aborts before anything is recorded.
	for i := range pairs {
		for _, side := range []*SignedOrder{&pairs[i].Offer, &pairs[i].Request} {
			o := &side.Order
			if err := e.settler.TransferAndDeliver(o.AssetData, o.CallData, o.CallTarget, o.OrderData); err != nil {
				return nil, ErrTransferFailed
			}
		}
	}

	// Phase 3: record fills. Phase 1 pinned every order Open and the serial
	// ledger excludes interleaved writers, so these transitions cannot fail.
	filled := make([]common.Hash, 0, len(pairs)*2)
	for i := range pairs {
		for _, side := range []*SignedOrder{&pairs[i].Offer, &pairs[i].Request} {
			if err := e.registry.RecordFilled(side.Hash); err != nil {
				return nil, err
			}
			filled = append(filled, side.Hash)
		}
	}
	return filled, nil
}

func (e *Engine) validatePair(p *MatchPair, now uint64) error {
	for _, side := range []*SignedOrder{&p.Offer, &p.Request} {
		o := &side.Order

		// The registry never trusts a cached payload: the supplied fields
		// must reproduce the hash registered at submission.
		digest, err := e.eip712.HashOrder(o.ToEIP712())
		if err != nil {
			return ErrOrderMismatch
		}
		if common.BytesToHash(digest) != side.Hash {
			return ErrOrderMismatch
		}

		if e.registry.StateOf(side.Hash) != StateOpen {
			return ErrNotOpen
		}

		if now < o.ListingTime {
			return ErrNotYetListed
		}
		if now > o.ExpirationTime {
			return ErrExpired
		}
	}

	if err := e.compat.Compatible(&p.Offer.Order, &p.Request.Order); err != nil {
		return err
	}

	for _, side := range []*SignedOrder{&p.Offer, &p.Request} {
		if !crypto.VerifySignature(side.Order.Maker, side.Hash.Bytes(), side.Signature) {
			return ErrInvalidSignature
		}
	}

	return nil
}
