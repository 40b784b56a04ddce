package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/oceandex/oceandex/pkg/exchange"
)

// PebbleStore persists registry and admin state. A ledger changeset maps to
// one pebble write batch committed with Sync, which is what makes a failed
// call leave nothing behind across restarts.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// Commit writes one ledger changeset atomically.
func (s *PebbleStore) Commit(cs *exchange.Changeset) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, rec := range cs.Orders {
		if err := batch.Set(orderStateKey(rec.Hash), []byte{byte(rec.State)}, nil); err != nil {
			return fmt.Errorf("stage order state: %w", err)
		}
		if err := batch.Set(orderMakerKey(rec.Hash), rec.Maker[:], nil); err != nil {
			return fmt.Errorf("stage order maker: %w", err)
		}
	}
	if cs.FeeTo != nil {
		if err := batch.Set(kFeeTo(), cs.FeeTo[:], nil); err != nil {
			return fmt.Errorf("stage fee recipient: %w", err)
		}
	}
	if cs.Halted != nil {
		v := byte(0)
		if *cs.Halted {
			v = 1
		}
		if err := batch.Set(kHalt(), []byte{v}, nil); err != nil {
			return fmt.Errorf("stage halt flag: %w", err)
		}
	}
	if cs.AdminNonce != nil {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], *cs.AdminNonce)
		if err := batch.Set(kAdminNonce(), buf[:], nil); err != nil {
			return fmt.Errorf("stage admin nonce: %w", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}
	return nil
}

// LoadOrders restores all persisted order states and makers.
func (s *PebbleStore) LoadOrders() (map[common.Hash]exchange.OrderState, map[common.Hash]common.Address, error) {
	states := make(map[common.Hash]exchange.OrderState)
	makers := make(map[common.Hash]common.Address)

	prefix := []byte(prefixOrderState)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, nil, err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefixOrderState)+common.HashLength || len(iter.Value()) != 1 {
			continue
		}
		var h common.Hash
		copy(h[:], key[len(prefixOrderState):])
		states[h] = exchange.OrderState(iter.Value()[0])
	}
	if err := iter.Close(); err != nil {
		return nil, nil, err
	}

	prefix = []byte(prefixOrderMaker)
	iter, err = s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, nil, err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefixOrderMaker)+common.HashLength || len(iter.Value()) != common.AddressLength {
			continue
		}
		var h common.Hash
		copy(h[:], key[len(prefixOrderMaker):])
		makers[h] = common.BytesToAddress(iter.Value())
	}
	if err := iter.Close(); err != nil {
		return nil, nil, err
	}

	return states, makers, nil
}

// LoadAdmin restores the persisted admin state.
func (s *PebbleStore) LoadAdmin() (common.Address, bool, uint64, error) {
	var feeTo common.Address
	val, closer, err := s.db.Get(kFeeTo())
	if err == nil {
		feeTo = common.BytesToAddress(val)
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return common.Address{}, false, 0, err
	}

	halted := false
	val, closer, err = s.db.Get(kHalt())
	if err == nil {
		halted = len(val) == 1 && val[0] == 1
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return common.Address{}, false, 0, err
	}

	var nonce uint64
	val, closer, err = s.db.Get(kAdminNonce())
	if err == nil {
		if len(val) == 8 {
			nonce = binary.BigEndian.Uint64(val)
		}
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return common.Address{}, false, 0, err
	}

	return feeTo, halted, nonce, nil
}

var _ exchange.Store = (*PebbleStore)(nil)
