package exchange

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// TxType classifies signed transaction envelopes on the wire.
type TxType string

const (
	TxTypeSubmit TxType = "submit" // Submit order (maker-signed)
	TxTypeCancel TxType = "cancel" // Cancel order (maker-signed)
	TxTypeMatch  TxType = "match"  // Match batch (relayer-submitted, per-order signatures inside)
	TxTypeAdmin  TxType = "admin"  // Administrative command (admin/fee-setter signed)
)

// SignedTransaction is the JSON envelope accepted by the node. Exactly one
// payload field is set, selected by Type.
type SignedTransaction struct {
	Type   TxType         `json:"type"`
	Submit *SubmitPayload `json:"submit,omitempty"`
	Cancel *CancelPayload `json:"cancel,omitempty"`
	Match  *MatchPayload  `json:"match,omitempty"`
	Admin  *AdminPayload  `json:"admin,omitempty"`
}

// OrderPayload is the wire form of an Order. Byte fields are 0x-hex.
type OrderPayload struct {
	Maker          string `json:"maker"`
	Salt           string `json:"salt"` // BigInt as decimal string
	ListingTime    uint64 `json:"listingTime"`
	ExpirationTime uint64 `json:"expirationTime"`
	Offer          bool   `json:"offer"`
	AssetData      string `json:"assetData"`
	OrderData      string `json:"orderData"`
	CallData       string `json:"callData"`
	CallTarget     string `json:"callTarget"`
}

// SubmitPayload carries an order plus the maker's signature over its hash.
type SubmitPayload struct {
	Order     OrderPayload `json:"order"`
	Signature string       `json:"signature"` // Hex-encoded 65-byte signature
}

// CancelPayload carries the hash to cancel plus a maker signature over the
// EIP-712 CancelOrder struct.
type CancelPayload struct {
	OrderHash string `json:"orderHash"`
	Signature string `json:"signature"`
}

// SignedOrderPayload is one side of a match pair: the full order payload,
// its claimed hash, and the maker's signature.
type SignedOrderPayload struct {
	Order     OrderPayload `json:"order"`
	Hash      string       `json:"hash"`
	Signature string       `json:"signature"`
}

// PairPayload groups the two counter-orders of one match unit.
type PairPayload struct {
	Offer   SignedOrderPayload `json:"offer"`
	Request SignedOrderPayload `json:"request"`
}

// MatchPayload carries a batch of matched pairs.
type MatchPayload struct {
	Pairs []PairPayload `json:"pairs"`
}

// AdminPayload carries an administrative command. The signature is over
// AdminDigest(op, value, nonce); the nonce must strictly increase, which is
// the replay protection for admin commands.
type AdminPayload struct {
	Op        string `json:"op"`    // "feeto" or "halt"
	Value     string `json:"value"` // address hex, or "true"/"false"
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

const (
	AdminOpFeeTo = "feeto"
	AdminOpHalt  = "halt"
)

// AdminDigest is the 32-byte message an administrator signs for a command.
func AdminDigest(op, value string, nonce uint64) []byte {
	message := fmt.Sprintf("OCEANDEX_ADMIN:%s:%s:%d", op, value, nonce)
	return ethCrypto.Keccak256([]byte(message))
}

// ToOrder converts the wire form to the domain Order.
func (p *OrderPayload) ToOrder() (*Order, error) {
	salt, ok := new(big.Int).SetString(p.Salt, 10)
	if !ok {
		return nil, fmt.Errorf("invalid salt: %s", p.Salt)
	}
	assetData, err := decodeHex(p.AssetData)
	if err != nil {
		return nil, fmt.Errorf("invalid assetData: %w", err)
	}
	orderData, err := decodeHex(p.OrderData)
	if err != nil {
		return nil, fmt.Errorf("invalid orderData: %w", err)
	}
	callData, err := decodeHex(p.CallData)
	if err != nil {
		return nil, fmt.Errorf("invalid callData: %w", err)
	}

	return &Order{
		Maker:          common.HexToAddress(p.Maker),
		Salt:           salt,
		ListingTime:    p.ListingTime,
		ExpirationTime: p.ExpirationTime,
		Offer:          p.Offer,
		AssetData:      assetData,
		OrderData:      orderData,
		CallData:       callData,
		CallTarget:     common.HexToAddress(p.CallTarget),
	}, nil
}

// FromOrder converts a domain Order to its wire form.
func FromOrder(o *Order) *OrderPayload {
	salt := "0"
	if o.Salt != nil {
		salt = o.Salt.String()
	}
	return &OrderPayload{
		Maker:          o.Maker.Hex(),
		Salt:           salt,
		ListingTime:    o.ListingTime,
		ExpirationTime: o.ExpirationTime,
		Offer:          o.Offer,
		AssetData:      encodeHex(o.AssetData),
		OrderData:      encodeHex(o.OrderData),
		CallData:       encodeHex(o.CallData),
		CallTarget:     o.CallTarget.Hex(),
	}
}

// ToSignedOrder converts one match side to its domain form.
func (p *SignedOrderPayload) ToSignedOrder() (*SignedOrder, error) {
	order, err := p.Order.ToOrder()
	if err != nil {
		return nil, err
	}
	sig, err := DecodeSignature(p.Signature)
	if err != nil {
		return nil, err
	}
	return &SignedOrder{
		Order:     *order,
		Hash:      common.HexToHash(p.Hash),
		Signature: sig,
	}, nil
}

// ToPairs converts the wire batch to engine match pairs.
func (p *MatchPayload) ToPairs() ([]MatchPair, error) {
	pairs := make([]MatchPair, 0, len(p.Pairs))
	for i := range p.Pairs {
		offer, err := p.Pairs[i].Offer.ToSignedOrder()
		if err != nil {
			return nil, fmt.Errorf("pair %d offer: %w", i, err)
		}
		request, err := p.Pairs[i].Request.ToSignedOrder()
		if err != nil {
			return nil, fmt.Errorf("pair %d request: %w", i, err)
		}
		pairs = append(pairs, MatchPair{Offer: *offer, Request: *request})
	}
	return pairs, nil
}

// ParseTransaction parses JSON bytes into a SignedTransaction and checks the
// envelope shape.
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Serialize converts a SignedTransaction to JSON bytes
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Validate performs structural validation on the envelope
func (tx *SignedTransaction) Validate() error {
	switch tx.Type {
	case TxTypeSubmit:
		if tx.Submit == nil {
			return fmt.Errorf("submit type requires submit payload")
		}
		if tx.Submit.Order.Maker == "" {
			return fmt.Errorf("missing order maker")
		}
	case TxTypeCancel:
		if tx.Cancel == nil {
			return fmt.Errorf("cancel type requires cancel payload")
		}
		if tx.Cancel.OrderHash == "" {
			return fmt.Errorf("missing cancel order hash")
		}
	case TxTypeMatch:
		if tx.Match == nil {
			return fmt.Errorf("match type requires match payload")
		}
		if len(tx.Match.Pairs) == 0 {
			return fmt.Errorf("match payload has no pairs")
		}
	case TxTypeAdmin:
		if tx.Admin == nil {
			return fmt.Errorf("admin type requires admin payload")
		}
		if tx.Admin.Op != AdminOpFeeTo && tx.Admin.Op != AdminOpHalt {
			return fmt.Errorf("unknown admin op: %s", tx.Admin.Op)
		}
	case "":
		return fmt.Errorf("missing transaction type")
	default:
		return fmt.Errorf("unsupported transaction type: %s", tx.Type)
	}
	return nil
}

// DecodeSignature decodes a hex-encoded signature (with or without 0x prefix)
func DecodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
