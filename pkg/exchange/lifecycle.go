package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/pkg/crypto"
	"github.com/oceandex/oceandex/pkg/util"
)

// Lifecycle implements order submission and cancellation against the
// registry: window checks, hash derivation, signature verification, and the
// Open/Cancelled transitions.
type Lifecycle struct {
	registry *Registry
	eip712   *crypto.EIP712Signer
	clock    util.Clock
}

func NewLifecycle(registry *Registry, eip712 *crypto.EIP712Signer, clock util.Clock) *Lifecycle {
	return &Lifecycle{registry: registry, eip712: eip712, clock: clock}
}

// HashOrder derives the order's registry identity from its payload.
func (l *Lifecycle) HashOrder(order *Order) (common.Hash, error) {
	digest, err := l.eip712.HashOrder(order.ToEIP712())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash order: %w", err)
	}
	return common.BytesToHash(digest), nil
}

// Submit validates an order and records it Open, returning its hash.
//
// caller identifies the already-authenticated originator of this call. When
// caller equals the order's maker the explicit signature check may be
// skipped (the transport layer proved control of the maker key); any other
// caller must supply a valid maker signature over the order hash. This is an
// optimization only, never a relaxation of authenticity.
func (l *Lifecycle) Submit(order *Order, signature []byte, caller common.Address) (common.Hash, error) {
	if order.ListingTime >= order.ExpirationTime {
		return common.Hash{}, ErrInvalidWindow
	}
	now := uint64(l.clock.Now().Unix())
	if order.ExpirationTime <= now {
		return common.Hash{}, ErrInvalidWindow
	}

	hash, err := l.HashOrder(order)
	if err != nil {
		return common.Hash{}, err
	}

	if caller != order.Maker || len(signature) != 0 {
		if !crypto.VerifySignature(order.Maker, hash.Bytes(), signature) {
			return common.Hash{}, ErrInvalidSignature
		}
	}

	if err := l.registry.RecordOpen(hash, order.Maker); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Cancel removes an open order from future matching, permanently. The
// requester must present a maker signature over the cancel payload; a
// requester that is the already-authenticated maker (caller == maker on
// record) may omit it.
func (l *Lifecycle) Cancel(hash common.Hash, signature []byte, caller common.Address) error {
	maker, ok := l.registry.MakerOf(hash)
	if !ok {
		return ErrNotOpen
	}

	requester := caller
	if caller != maker {
		digest, err := l.eip712.HashCancel(&crypto.CancelEIP712{OrderHash: hash, Maker: maker})
		if err != nil {
			return fmt.Errorf("hash cancel: %w", err)
		}
		recovered, err := crypto.RecoverAddress(digest, signature)
		if err != nil {
			return ErrUnauthorized
		}
		requester = recovered
	}

	return l.registry.RecordCancelled(hash, requester)
}
