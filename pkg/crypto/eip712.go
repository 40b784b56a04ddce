package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/deployments
type EIP712Domain struct {
	Name              string         // Protocol name (e.g., "OceanDEX")
	Version           string         // Protocol version (e.g., "1")
	ChainID           *big.Int       // Chain ID (1337 for local)
	VerifyingContract common.Address // Settlement address (or zero for off-chain)
}

// OrderEIP712 is the typed data a maker signs to offer or request a dataset.
// The EIP-712 digest of this struct is also the order's registry identity:
// every byte field participates in the hash (byte strings are keccak-hashed
// per the EIP-712 encoding), so two orders differing only in Salt get
// distinct identities.
type OrderEIP712 struct {
	Maker          common.Address // Party authoring the order
	Salt           *big.Int       // Random uniqueness nonce
	ListingTime    *big.Int       // Window start (Unix seconds)
	ExpirationTime *big.Int       // Window end (Unix seconds)
	Offer          bool           // true = supplying data, false = requesting
	AssetData      []byte         // Encoded value/token exchanged
	OrderData      []byte         // Dataset category metadata (AIS, ETA, imagery, ...)
	CallData       []byte         // Delivery invocation payload
	CallTarget     common.Address // Delivery invocation target
}

// CancelEIP712 is the typed data a maker signs to withdraw an open order.
type CancelEIP712 struct {
	OrderHash common.Hash    // Order to cancel
	Maker     common.Address // Order maker address
}

// EIP712Signer handles EIP-712 typed data hashing and signing for orders
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a new EIP-712 signer with given domain
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain for OceanDEX
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "OceanDEX",
		Version:           "1",
		ChainID:           big.NewInt(1337), // Local dev chain
		VerifyingContract: common.Address{}, // Zero address for off-chain signing
	}
}

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "maker", Type: "address"},
		{Name: "salt", Type: "uint256"},
		{Name: "listingTime", Type: "uint256"},
		{Name: "expirationTime", Type: "uint256"},
		{Name: "offer", Type: "bool"},
		{Name: "assetData", Type: "bytes"},
		{Name: "orderData", Type: "bytes"},
		{Name: "callData", Type: "bytes"},
		{Name: "callTarget", Type: "address"},
	},
}

var cancelTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"CancelOrder": []apitypes.Type{
		{Name: "orderHash", Type: "bytes32"},
		{Name: "maker", Type: "address"},
	},
}

func (e *EIP712Signer) typedDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

// HashOrder hashes an order according to EIP-712 spec
// Returns the 32-byte digest that is signed and that keys the registry
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain:      e.typedDomain(),
		Message: apitypes.TypedDataMessage{
			"maker":          order.Maker.Hex(),
			"salt":           order.Salt.String(),
			"listingTime":    order.ListingTime.String(),
			"expirationTime": order.ExpirationTime.String(),
			"offer":          order.Offer,
			"assetData":      hexutil.Encode(order.AssetData),
			"orderData":      hexutil.Encode(order.OrderData),
			"callData":       hexutil.Encode(order.CallData),
			"callTarget":     order.CallTarget.Hex(),
		},
	}

	return e.digest(typedData)
}

// HashCancel hashes a cancel request according to EIP-712 spec
func (e *EIP712Signer) HashCancel(cancel *CancelEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       cancelTypes,
		PrimaryType: "CancelOrder",
		Domain:      e.typedDomain(),
		Message: apitypes.TypedDataMessage{
			"orderHash": hexutil.Encode(cancel.OrderHash[:]),
			"maker":     cancel.Maker.Hex(),
		},
	}

	return e.digest(typedData)
}

func (e *EIP712Signer) digest(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// SignOrder signs an order and returns the signature
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	return signature, nil
}

// SignCancel signs a cancel request and returns the signature
func (e *EIP712Signer) SignCancel(signer *Signer, cancel *CancelEIP712) ([]byte, error) {
	hash, err := e.HashCancel(cancel)
	if err != nil {
		return nil, fmt.Errorf("failed to hash cancel: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign cancel: %w", err)
	}

	return signature, nil
}

// VerifyOrderSignature verifies that an order signature is valid
// Returns true if the recovered signer matches the order's maker
func (e *EIP712Signer) VerifyOrderSignature(order *OrderEIP712, signature []byte) (bool, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return false, fmt.Errorf("failed to hash order: %w", err)
	}

	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	return recoveredAddr == order.Maker, nil
}

// VerifyCancelSignature verifies that a cancel signature is valid
// Returns true if the recovered signer matches the claimed maker
func (e *EIP712Signer) VerifyCancelSignature(cancel *CancelEIP712, signature []byte) (bool, error) {
	hash, err := e.HashCancel(cancel)
	if err != nil {
		return false, fmt.Errorf("failed to hash cancel: %w", err)
	}

	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	return recoveredAddr == cancel.Maker, nil
}
