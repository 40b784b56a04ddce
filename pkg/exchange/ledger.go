package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/oceandex/oceandex/pkg/crypto"
	"github.com/oceandex/oceandex/pkg/util"
)

// Store persists ledger state. All mutations inside one Changeset commit
// atomically or not at all.
type Store interface {
	Commit(cs *Changeset) error
	LoadOrders() (map[common.Hash]OrderState, map[common.Hash]common.Address, error)
	LoadAdmin() (feeTo common.Address, halted bool, nonce uint64, err error)
}

// Changeset is the staged set of writes for one applied call. Nil pointer
// fields are untouched.
type Changeset struct {
	Orders     []OrderRecord
	FeeTo      *common.Address
	Halted     *bool
	AdminNonce *uint64
}

// OrderRecord is one persisted order-state entry.
type OrderRecord struct {
	Hash  common.Hash
	State OrderState
	Maker common.Address
}

// WAL is the append-only audit log of applied calls.
type WAL interface {
	Append(line string)
}

// Events receives lifecycle notifications after a call commits.
type Events interface {
	Publish(Event)
}

// Event is a committed lifecycle notification, broadcast to subscribers.
type Event struct {
	Type        string   `json:"type"` // "order_open", "order_cancelled", "orders_filled"
	Hashes      []string `json:"hashes"`
	Attestation string   `json:"attestation,omitempty"`
}

type NopEvents struct{}

func (NopEvents) Publish(Event) {}

// MatchResult is the outcome of a committed match call.
type MatchResult struct {
	Filled      []common.Hash
	Attestation []byte
}

// Deps wires a Ledger. Registry and Admin are constructed internally;
// everything else is supplied.
type Deps struct {
	Store         Store
	WAL           WAL
	Events        Events
	Clock         util.Clock
	Domain        crypto.EIP712Domain
	Administrator common.Address
	FeeSetter     common.Address
	FeeTo         common.Address
	Settler       Settler
	Compatibility Compatibility // nil = StrictCompatibility
	Attestor      *crypto.Attestor
	Logger        *zap.SugaredLogger
}

// Ledger is the serial executor at the top of the core. Every exposed
// operation runs under one mutex, mirroring the single-writer ledger
// environment the protocol assumes: one call at a time, each either
// completing fully or failing with no visible mutation. Persistence goes
// through an atomic store changeset before the call returns.
type Ledger struct {
	mu         sync.Mutex
	registry   *Registry
	admin      *Admin
	lifecycle  *Lifecycle
	engine     *Engine
	store      Store
	wal        WAL
	events     Events
	eip712     *crypto.EIP712Signer
	attestor   *crypto.Attestor
	log        *zap.SugaredLogger
	adminNonce uint64
}

// NewLedger builds the ledger and restores persisted state.
func NewLedger(d Deps) (*Ledger, error) {
	if d.Events == nil {
		d.Events = NopEvents{}
	}
	if d.WAL == nil {
		d.WAL = nopWAL{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}

	registry := NewRegistry()
	admin := NewAdmin(d.Administrator, d.FeeSetter, d.FeeTo)
	eip712 := crypto.NewEIP712Signer(d.Domain)

	l := &Ledger{
		registry:  registry,
		admin:     admin,
		lifecycle: NewLifecycle(registry, eip712, d.Clock),
		engine:    NewEngine(registry, admin, eip712, d.Clock, d.Compatibility, d.Settler),
		store:     d.Store,
		wal:       d.WAL,
		events:    d.Events,
		eip712:    eip712,
		attestor:  d.Attestor,
		log:       d.Logger,
	}

	states, makers, err := d.Store.LoadOrders()
	if err != nil {
		return nil, fmt.Errorf("restore orders: %w", err)
	}
	registry.Restore(states, makers)

	feeTo, halted, nonce, err := d.Store.LoadAdmin()
	if err != nil {
		return nil, fmt.Errorf("restore admin state: %w", err)
	}
	admin.Restore(feeTo, halted)
	l.adminNonce = nonce

	l.log.Infow("ledger_restored", "orders", registry.Len(), "halted", halted)
	return l, nil
}

type nopWAL struct{}

func (nopWAL) Append(string) {}

// HashOrder derives an order's registry identity without submitting it.
func (l *Ledger) HashOrder(order *Order) (common.Hash, error) {
	return l.lifecycle.HashOrder(order)
}

// StateOf returns the registry state for a hash.
func (l *Ledger) StateOf(hash common.Hash) OrderState {
	return l.registry.StateOf(hash)
}

func (l *Ledger) FeeTo() common.Address { return l.admin.FeeTo() }
func (l *Ledger) Halted() bool          { return l.admin.Halted() }
func (l *Ledger) OrderCount() int       { return l.registry.Len() }

// AttestationPubkey returns the node's BLS attestation public key, if any.
func (l *Ledger) AttestationPubkey() []byte {
	if l.attestor == nil {
		return nil
	}
	return l.attestor.PubkeyBytes()
}

// Submit validates an order and records it Open. See Lifecycle.Submit for
// the caller/signature contract.
func (l *Ledger) Submit(order *Order, signature []byte, caller common.Address) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash, err := l.lifecycle.Submit(order, signature, caller)
	if err != nil {
		return common.Hash{}, err
	}

	l.commit(&Changeset{Orders: []OrderRecord{{Hash: hash, State: StateOpen, Maker: order.Maker}}})
	l.appendWAL("submit", []common.Hash{hash})
	l.events.Publish(Event{Type: "order_open", Hashes: []string{hash.Hex()}})
	l.log.Infow("order_open", "hash", hash.Hex(), "maker", order.Maker.Hex(), "offer", order.Offer)
	return hash, nil
}

// Cancel removes an open order from future matching.
func (l *Ledger) Cancel(hash common.Hash, signature []byte, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lifecycle.Cancel(hash, signature, caller); err != nil {
		return err
	}

	maker, _ := l.registry.MakerOf(hash)
	l.commit(&Changeset{Orders: []OrderRecord{{Hash: hash, State: StateCancelled, Maker: maker}}})
	l.appendWAL("cancel", []common.Hash{hash})
	l.events.Publish(Event{Type: "order_cancelled", Hashes: []string{hash.Hex()}})
	l.log.Infow("order_cancelled", "hash", hash.Hex())
	return nil
}

// MatchOrders settles a batch of pairs, all-or-nothing. Gated by the
// emergency switch. On success the node attests the settlement digest.
func (l *Ledger) MatchOrders(pairs []MatchPair) (*MatchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filled, err := l.engine.MatchBatch(pairs)
	if err != nil {
		return nil, err
	}

	records := make([]OrderRecord, 0, len(filled))
	hexes := make([]string, 0, len(filled))
	for _, h := range filled {
		maker, _ := l.registry.MakerOf(h)
		records = append(records, OrderRecord{Hash: h, State: StateFilled, Maker: maker})
		hexes = append(hexes, h.Hex())
	}
	l.commit(&Changeset{Orders: records})
	l.appendWAL("match", filled)

	result := &MatchResult{Filled: filled}
	event := Event{Type: "orders_filled", Hashes: hexes}
	if l.attestor != nil {
		result.Attestation = l.attestor.Attest(SettlementDigest(filled))
		event.Attestation = encodeHex(result.Attestation)
	}

	l.events.Publish(event)
	l.log.Infow("orders_filled", "pairs", len(pairs), "orders", len(filled))
	return result, nil
}

// ApplyAdmin authenticates and applies an administrative command. Nonces
// must strictly increase; that is the replay protection for admin commands.
func (l *Ledger) ApplyAdmin(cmd *AdminPayload) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sig, err := DecodeSignature(cmd.Signature)
	if err != nil {
		return ErrUnauthorized
	}
	caller, err := crypto.RecoverAddress(AdminDigest(cmd.Op, cmd.Value, cmd.Nonce), sig)
	if err != nil {
		return ErrUnauthorized
	}
	if cmd.Nonce <= l.adminNonce {
		return ErrUnauthorized
	}

	switch cmd.Op {
	case AdminOpFeeTo:
		feeTo := common.HexToAddress(cmd.Value)
		if err := l.admin.SetFeeTo(caller, feeTo); err != nil {
			return err
		}
		nonce := cmd.Nonce
		l.adminNonce = nonce
		l.commit(&Changeset{FeeTo: &feeTo, AdminNonce: &nonce})
		l.log.Infow("fee_recipient_updated", "fee_to", feeTo.Hex())

	case AdminOpHalt:
		halted, err := strconv.ParseBool(cmd.Value)
		if err != nil {
			return fmt.Errorf("invalid halt value: %w", err)
		}
		if err := l.admin.SetHalt(caller, halted); err != nil {
			return err
		}
		nonce := cmd.Nonce
		l.adminNonce = nonce
		l.commit(&Changeset{Halted: &halted, AdminNonce: &nonce})
		l.log.Infow("emergency_switch", "halted", halted)

	default:
		return fmt.Errorf("unknown admin op: %s", cmd.Op)
	}

	l.appendWAL("admin:"+cmd.Op, nil)
	return nil
}

// SettlementDigest is the 32-byte digest of a settled batch, the message
// the node's BLS attestation covers.
func SettlementDigest(filled []common.Hash) []byte {
	buf := make([]byte, 0, len(filled)*common.HashLength)
	for _, h := range filled {
		buf = append(buf, h[:]...)
	}
	return ethCrypto.Keccak256(buf)
}

// commit flushes a changeset through the store. Store failure here means
// the backing db is gone; there is no way to keep the single-writer
// invariant alive past it, so crash rather than continue inconsistent.
func (l *Ledger) commit(cs *Changeset) {
	if err := l.store.Commit(cs); err != nil {
		panic(fmt.Errorf("store commit: %w", err))
	}
}

func (l *Ledger) appendWAL(op string, hashes []common.Hash) {
	entry := struct {
		Op     string   `json:"op"`
		Hashes []string `json:"hashes,omitempty"`
	}{Op: op}
	for _, h := range hashes {
		entry.Hashes = append(entry.Hashes, h.Hex())
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.wal.Append(string(line))
}
