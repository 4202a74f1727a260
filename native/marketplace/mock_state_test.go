package marketplace

import (
	"bytes"
	"errors"
	"math/big"
	"sync"
)

// mockBackend keeps committed state in maps. Each transaction works on a
// private copy that replaces the committed maps on Commit.
type mockBackend struct {
	mu        sync.Mutex
	committed *mockState
	failBegin error
}

type mockState struct {
	root     *Root
	gigs     map[uint64]*Gig
	orders   map[uint64]*Order
	custody  map[string]*big.Int
	balances map[string]*big.Int
}

func newMockBackend() *mockBackend {
	return &mockBackend{committed: &mockState{
		root:     &Root{},
		gigs:     make(map[uint64]*Gig),
		orders:   make(map[uint64]*Order),
		custody:  make(map[string]*big.Int),
		balances: make(map[string]*big.Int),
	}}
}

func (s *mockState) clone() *mockState {
	out := &mockState{
		root:     s.root.Clone(),
		gigs:     make(map[uint64]*Gig, len(s.gigs)),
		orders:   make(map[uint64]*Order, len(s.orders)),
		custody:  make(map[string]*big.Int, len(s.custody)),
		balances: make(map[string]*big.Int, len(s.balances)),
	}
	for id, gig := range s.gigs {
		out.gigs[id] = gig.Clone()
	}
	for id, order := range s.orders {
		out.orders[id] = order.Clone()
	}
	for asset, amount := range s.custody {
		out.custody[asset] = new(big.Int).Set(amount)
	}
	for key, amount := range s.balances {
		out.balances[key] = new(big.Int).Set(amount)
	}
	return out
}

func (b *mockBackend) Begin() (Tx, error) {
	if b.failBegin != nil {
		return nil, b.failBegin
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return &mockTx{backend: b, state: b.committed.clone()}, nil
}

func (b *mockBackend) snapshot() *mockState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed.clone()
}

type mockTx struct {
	backend *mockBackend
	state   *mockState
	done    bool
}

var errTxClosed = errors.New("mock tx closed")

func (t *mockTx) Commit() error {
	if t.done {
		return errTxClosed
	}
	t.done = true
	t.backend.mu.Lock()
	t.backend.committed = t.state
	t.backend.mu.Unlock()
	return nil
}

func (t *mockTx) Discard() { t.done = true }

func (t *mockTx) MarketplaceRoot() (*Root, error) { return t.state.root.Clone(), nil }

func (t *mockTx) PutMarketplaceRoot(root *Root) error {
	t.state.root = root.Clone()
	return nil
}

func (t *mockTx) GigGet(id uint64) (*Gig, bool, error) {
	gig, ok := t.state.gigs[id]
	if !ok {
		return nil, false, nil
	}
	return gig.Clone(), true, nil
}

func (t *mockTx) GigPut(gig *Gig) error {
	t.state.gigs[gig.ID] = gig.Clone()
	return nil
}

func (t *mockTx) OrderGet(id uint64) (*Order, bool, error) {
	order, ok := t.state.orders[id]
	if !ok {
		return nil, false, nil
	}
	return order.Clone(), true, nil
}

func (t *mockTx) OrderPut(order *Order) error {
	t.state.orders[order.ID] = order.Clone()
	return nil
}

func (t *mockTx) CustodyGet(asset string) (*big.Int, error) {
	if amount, ok := t.state.custody[asset]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (t *mockTx) CustodyPut(asset string, amount *big.Int) error {
	t.state.custody[asset] = new(big.Int).Set(amount)
	return nil
}

func balanceKey(addr [20]byte, asset string) string {
	return string(addr[:]) + "/" + asset
}

func (t *mockTx) BalanceGet(addr [20]byte, asset string) (*big.Int, error) {
	if amount, ok := t.state.balances[balanceKey(addr, asset)]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (t *mockTx) BalancePut(addr [20]byte, asset string, amount *big.Int) error {
	t.state.balances[balanceKey(addr, asset)] = new(big.Int).Set(amount)
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}
