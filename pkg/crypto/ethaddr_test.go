package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEIP55KnownVectors(t *testing.T) {
	// Mixed-case checksum vectors from the EIP-55 reference set
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		addr := common.HexToAddress(want)
		if got := EIP55(addr.Bytes()); got != want {
			t.Errorf("EIP55(%s) = %s", want, got)
		}
	}
}

func TestEIP55MatchesAddressHex(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := signer.Address()
	if got := EIP55(addr.Bytes()); got != addr.Hex() {
		t.Errorf("EIP55 = %s, want %s", got, addr.Hex())
	}
}
