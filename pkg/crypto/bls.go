package crypto

import (
	bls "github.com/cloudflare/circl/sign/bls"
)

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]
type BLSSignature = []byte

// Attestor holds the node's BLS key used to attest settled batches.
// Downstream auditors aggregate attestations from multiple operators over
// the same settlement digest.
type Attestor struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

func NewAttestorFromSeed(seed []byte) *Attestor {
	sk, _ := bls.KeyGen[scheme](seed, nil, nil)
	pk := sk.PublicKey()
	return &Attestor{sk: sk, pk: pk}
}

func (a *Attestor) Pubkey() *BLSPubKey { return a.pk }

func (a *Attestor) PubkeyBytes() []byte {
	b, _ := a.pk.MarshalBinary()
	return b
}

func (a *Attestor) Attest(digest []byte) []byte {
	return bls.Sign(a.sk, digest)
}

func VerifyAttestation(pk *BLSPubKey, sigBytes, digest []byte) bool {
	return bls.Verify(pk, digest, bls.Signature(sigBytes))
}

// AggregateAttestations aggregates signatures from multiple operators over
// the same settlement digest.
func AggregateAttestations(sigBytesList [][]byte) []byte {
	sigs := make([]bls.Signature, 0, len(sigBytesList))
	for _, sb := range sigBytesList {
		if len(sb) == 0 {
			continue
		}
		sigs = append(sigs, bls.Signature(sb))
	}
	agg, err := bls.Aggregate(bls.G1{}, sigs)
	if err != nil {
		return nil
	}
	return agg
}

func VerifyAggregateAttestation(pks []*BLSPubKey, digest []byte, aggSig []byte) bool {
	msgs := make([][]byte, len(pks))
	for i := range msgs {
		msgs[i] = digest
	}
	return bls.VerifyAggregate(pks, msgs, bls.Signature(aggSig))
}
