package crypto

import (
	"bytes"
	"testing"
)

func TestAttestAndVerify(t *testing.T) {
	a := NewAttestorFromSeed(bytes.Repeat([]byte{0x01}, 32))
	digest := keccakOf([]byte("settled-batch"))

	sig := a.Attest(digest)
	if len(sig) == 0 {
		t.Fatal("empty attestation")
	}

	if !VerifyAttestation(a.Pubkey(), sig, digest) {
		t.Error("attestation did not verify")
	}
	if VerifyAttestation(a.Pubkey(), sig, keccakOf([]byte("other-batch"))) {
		t.Error("attestation verified for a different digest")
	}
}

func TestAggregateAttestations(t *testing.T) {
	digest := keccakOf([]byte("settled-batch"))

	a1 := NewAttestorFromSeed(bytes.Repeat([]byte{0x01}, 32))
	a2 := NewAttestorFromSeed(bytes.Repeat([]byte{0x02}, 32))

	agg := AggregateAttestations([][]byte{a1.Attest(digest), a2.Attest(digest)})
	if agg == nil {
		t.Fatal("aggregation failed")
	}

	pks := []*BLSPubKey{a1.Pubkey(), a2.Pubkey()}
	if !VerifyAggregateAttestation(pks, digest, agg) {
		t.Error("aggregate attestation did not verify")
	}
}
