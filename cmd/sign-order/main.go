package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/pkg/crypto"
	"github.com/oceandex/oceandex/pkg/exchange"
)

// Produces a ready-to-POST signed submit envelope for a sample dataset
// offer, printing the generated maker key along the way.
func main() {
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", crypto.EIP55(signer.Address().Bytes()))
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	salt, err := crypto.GenerateSalt()
	if err != nil {
		fmt.Printf("Error generating salt: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().Unix()
	order := &exchange.Order{
		Maker:          signer.Address(),
		Salt:           salt,
		ListingTime:    uint64(now),
		ExpirationTime: uint64(now + 3600),
		Offer:          true,
		AssetData:      []byte("erc20:USDC:25000000"),
		OrderData:      []byte("dataset:ais-stream:north-sea"),
		CallData:       []byte("deliver:s3://oceandex-feeds/ais/north-sea"),
		CallTarget:     common.HexToAddress("0x00000000000000000000000000000000000d47a1"),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Maker: %s\n", crypto.EIP55(order.Maker.Bytes()))
	fmt.Printf("  Salt: %s\n", order.Salt.String())
	fmt.Printf("  Window: [%d, %d]\n", order.ListingTime, order.ExpirationTime)
	fmt.Printf("  Offer: %v\n", order.Offer)
	fmt.Printf("  AssetData: %s\n", order.AssetData)
	fmt.Printf("  OrderData: %s\n\n", order.OrderData)

	// Sign the EIP-712 order digest (which is also the registry key)
	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	signature, err := eip712Signer.SignOrder(signer, order.ToEIP712())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	hash, err := eip712Signer.HashOrder(order.ToEIP712())
	if err != nil {
		fmt.Printf("Error hashing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Order Hash: 0x%x\n", hash)
	fmt.Printf("Signature: 0x%x\n\n", signature)

	signedTx := &exchange.SignedTransaction{
		Type: exchange.TxTypeSubmit,
		Submit: &exchange.SubmitPayload{
			Order:     *exchange.FromOrder(order),
			Signature: fmt.Sprintf("0x%x", signature),
		},
	}

	txJSON, err := json.MarshalIndent(signedTx, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Transaction (JSON):")
	fmt.Println(string(txJSON))
	fmt.Println()

	fmt.Println("Verifying signature...")
	valid, err := eip712Signer.VerifyOrderSignature(order.ToEIP712(), signature)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}

	if !valid {
		fmt.Println("Signature INVALID")
		os.Exit(1)
	}

	fmt.Println("Signature VALID")
	fmt.Printf("\nSubmit with:\n  curl -X POST http://localhost:8547/api/v1/orders -d @order.json\n")
}
