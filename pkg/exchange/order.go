// Package exchange implements the order lifecycle and matching core of the
// maritime data exchange: submission, cancellation, batched pair matching
// with signature verification, and the emergency halt gate.
package exchange

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/pkg/crypto"
)

// Failure kinds surfaced to callers. Every failed precondition aborts the
// whole call with no state mutation; retry is the caller's responsibility.
var (
	ErrInvalidWindow    = errors.New("invalid order window")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrDuplicateOrder   = errors.New("duplicate order")
	ErrNotOpen          = errors.New("order not open")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrExpired          = errors.New("order expired")
	ErrNotYetListed     = errors.New("order not yet listed")
	ErrOrderMismatch    = errors.New("order hash mismatch")
	ErrEmergencyHalted  = errors.New("matching halted")
	ErrTransferFailed   = errors.New("transfer failed")
	ErrIncompatible     = errors.New("orders not compatible")
)

// Order is a signed statement of intent to offer or request a maritime
// dataset under a time window and asset terms. Immutable once created; only
// its hash and derived state are persisted, so the full payload must be
// re-supplied (and re-hashed) at match time.
type Order struct {
	Maker          common.Address // Party who authored the order
	Salt           *big.Int       // Random nonce; distinct salts => distinct hashes
	ListingTime    uint64         // Window start (Unix seconds)
	ExpirationTime uint64         // Window end (Unix seconds); must exceed ListingTime
	Offer          bool           // true = supplying data, false = requesting data
	AssetData      []byte         // Opaque encoding of the value/token exchanged
	OrderData      []byte         // Opaque dataset category metadata
	CallData       []byte         // Opaque delivery invocation payload
	CallTarget     common.Address // Delivery invocation target
}

// ToEIP712 converts the order to its typed-data form for hashing and signing.
func (o *Order) ToEIP712() *crypto.OrderEIP712 {
	salt := o.Salt
	if salt == nil {
		salt = big.NewInt(0)
	}
	return &crypto.OrderEIP712{
		Maker:          o.Maker,
		Salt:           salt,
		ListingTime:    new(big.Int).SetUint64(o.ListingTime),
		ExpirationTime: new(big.Int).SetUint64(o.ExpirationTime),
		Offer:          o.Offer,
		AssetData:      o.AssetData,
		OrderData:      o.OrderData,
		CallData:       o.CallData,
		CallTarget:     o.CallTarget,
	}
}

// OrderState tracks an order hash through its lifecycle. Transitions are
// monotonic: Unknown -> Open -> Cancelled | Filled, terminal states never
// revert.
type OrderState uint8

const (
	StateUnknown OrderState = iota
	StateOpen
	StateCancelled
	StateFilled
)

func (s OrderState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCancelled:
		return "cancelled"
	case StateFilled:
		return "filled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s OrderState) Terminal() bool {
	return s == StateCancelled || s == StateFilled
}

// SignedOrder pairs an order payload with its claimed hash and the maker's
// signature, as supplied to the matching engine.
type SignedOrder struct {
	Order     Order
	Hash      common.Hash
	Signature []byte
}

// MatchPair groups two counter-orders into one match unit: the offer side
// (Offer=true) supplying a dataset and the request side (Offer=false)
// asking for it.
type MatchPair struct {
	Offer   SignedOrder
	Request SignedOrder
}
