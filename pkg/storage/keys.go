package storage

import (
	"github.com/ethereum/go-ethereum/common"
)

// Key schema for Pebble storage:
//
//   os:<32-byte hash> → OrderState (1 byte)
//   om:<32-byte hash> → maker address (20 bytes)
//   adm:feeto         → fee recipient address (20 bytes)
//   adm:halt          → emergency switch (1 byte)
//   adm:nonce         → last applied admin nonce (8 bytes, big-endian)

const (
	prefixOrderState = "os:"
	prefixOrderMaker = "om:"
)

func orderStateKey(h common.Hash) []byte { return append([]byte(prefixOrderState), h[:]...) }
func orderMakerKey(h common.Hash) []byte { return append([]byte(prefixOrderMaker), h[:]...) }

func kFeeTo() []byte      { return []byte("adm:feeto") }
func kHalt() []byte       { return []byte("adm:halt") }
func kAdminNonce() []byte { return []byte("adm:nonce") }

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
