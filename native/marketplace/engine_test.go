package marketplace

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"hgigs/core/events"
	"hgigs/native/bank"
)

var (
	adminAddr    = newTestAddress(0xAD)
	providerAddr = newTestAddress(0x01)
	clientA      = newTestAddress(0x0A)
	clientB      = newTestAddress(0x0B)
	strangerAddr = newTestAddress(0x5E)
)

// oneUnit is 1.0 of the native asset in base units.
var oneUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type testHarness struct {
	engine   *Engine
	backend  *mockBackend
	recorder *events.Recorder
	ctx      context.Context
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	backend := newMockBackend()
	recorder := &events.Recorder{}
	engine := NewEngine()
	engine.SetBackend(backend)
	engine.SetFunding(bank.NewLedger())
	engine.SetEmitter(recorder)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	h := &testHarness{engine: engine, backend: backend, recorder: recorder, ctx: context.Background()}
	if err := engine.Initialize(h.ctx, adminAddr); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, addr := range [][20]byte{clientA, clientB, strangerAddr} {
		h.deposit(t, addr, new(big.Int).Mul(oneUnit, big.NewInt(10)))
	}
	return h
}

func (h *testHarness) deposit(t *testing.T, addr [20]byte, amount *big.Int) {
	t.Helper()
	if err := h.engine.Deposit(h.ctx, adminAddr, addr, NativeAsset, amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (h *testHarness) createGig(t *testing.T, price *big.Int) uint64 {
	t.Helper()
	id, err := h.engine.CreateGig(h.ctx, providerAddr, "Logo design", "Three concepts and two revisions", price, "")
	if err != nil {
		t.Fatalf("create gig: %v", err)
	}
	return id
}

func (h *testHarness) openOrder(t *testing.T, client [20]byte, gigID uint64) uint64 {
	t.Helper()
	id, err := h.engine.OpenOrder(h.ctx, client, gigID)
	if err != nil {
		t.Fatalf("open order: %v", err)
	}
	return id
}

func (h *testHarness) balance(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	balance, err := h.engine.Balance(addr, NativeAsset)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func (h *testHarness) custody(t *testing.T) *big.Int {
	t.Helper()
	custody, err := h.engine.CustodyBalance(NativeAsset)
	if err != nil {
		t.Fatalf("custody: %v", err)
	}
	return custody
}

// assertCustodyConserved checks that custody equals the sum of escrowed
// order amounts.
func (h *testHarness) assertCustodyConserved(t *testing.T) {
	t.Helper()
	snap := h.backend.snapshot()
	expected := big.NewInt(0)
	for _, order := range snap.orders {
		if order.IsPaid && !order.PaymentReleased {
			expected.Add(expected, order.Amount)
		}
		if order.PaymentReleased && (!order.IsPaid || !order.IsCompleted) {
			t.Fatalf("order %d released without being paid and completed", order.ID)
		}
	}
	if custody := h.custody(t); custody.Cmp(expected) != 0 {
		t.Fatalf("custody %s does not match escrowed total %s", custody, expected)
	}
}

func mustOrder(t *testing.T, e *Engine, id uint64) *Order {
	t.Helper()
	order, err := e.GetOrder(id)
	if err != nil {
		t.Fatalf("get order %d: %v", id, err)
	}
	return order
}

func TestInitializeOnce(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Initialize(h.ctx, strangerAddr); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	owner, err := h.engine.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != adminAddr {
		t.Fatalf("administrator changed on re-initialization")
	}
	fee, err := h.engine.FeeBps()
	if err != nil || fee != DefaultFeeBps {
		t.Fatalf("expected default fee %d, got %d (%v)", DefaultFeeBps, fee, err)
	}
	paused, err := h.engine.Paused()
	if err != nil || paused {
		t.Fatalf("expected unpaused after init, got %v (%v)", paused, err)
	}
}

func TestMutationsRequireInitialization(t *testing.T) {
	engine := NewEngine()
	engine.SetBackend(newMockBackend())
	engine.SetFunding(bank.NewLedger())
	_, err := engine.CreateGig(context.Background(), providerAddr, "t", "d", big.NewInt(1), "")
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := engine.Owner(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from Owner, got %v", err)
	}
}

func TestEngineWithoutBackend(t *testing.T) {
	engine := NewEngine()
	if err := engine.Initialize(context.Background(), adminAddr); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
	if _, err := engine.GetGig(1); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
}

func TestEndToEndRelease(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	orderID := h.openOrder(t, clientA, gigID)

	providerBefore := h.balance(t, providerAddr)
	adminBefore := h.balance(t, adminAddr)
	clientBefore := h.balance(t, clientA)

	if err := h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit); err != nil {
		t.Fatalf("pay order: %v", err)
	}
	if h.custody(t).Cmp(oneUnit) != 0 {
		t.Fatalf("expected custody of one unit after payment")
	}
	h.assertCustodyConserved(t)

	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); err != nil {
		t.Fatalf("complete order: %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); err != nil {
		t.Fatalf("release payment: %v", err)
	}

	share := new(big.Int).Div(new(big.Int).Mul(oneUnit, big.NewInt(95)), big.NewInt(100))
	fee := new(big.Int).Div(oneUnit, big.NewInt(20))
	if got := new(big.Int).Sub(h.balance(t, providerAddr), providerBefore); got.Cmp(share) != 0 {
		t.Fatalf("provider received %s, want %s", got, share)
	}
	if got := new(big.Int).Sub(h.balance(t, adminAddr), adminBefore); got.Cmp(fee) != 0 {
		t.Fatalf("administrator received %s, want %s", got, fee)
	}
	if got := new(big.Int).Sub(clientBefore, h.balance(t, clientA)); got.Cmp(oneUnit) != 0 {
		t.Fatalf("client paid %s, want %s", got, oneUnit)
	}
	if h.custody(t).Sign() != 0 {
		t.Fatalf("expected custody to return to zero, got %s", h.custody(t))
	}
	h.assertCustodyConserved(t)

	order := mustOrder(t, h.engine, orderID)
	if !order.IsPaid || !order.IsCompleted || !order.PaymentReleased {
		t.Fatalf("unexpected final flags %+v", order)
	}
	if order.ProviderShare.Cmp(share) != 0 || order.PlatformFee.Cmp(fee) != 0 {
		t.Fatalf("unexpected settlement split %s/%s", order.ProviderShare, order.PlatformFee)
	}
	if order.ReleasedAt != 1_700_000_000 || order.CreatedAt != 1_700_000_000 {
		t.Fatalf("unexpected timestamps created=%d released=%d", order.CreatedAt, order.ReleasedAt)
	}

	wantTypes := []string{
		EventTypeGigCreated,
		EventTypeOrderCreated,
		EventTypeOrderPaid,
		EventTypeOrderCompleted,
		EventTypePaymentReleased,
	}
	got := h.recorder.Types()
	tail := got[len(got)-len(wantTypes):]
	for i := range wantTypes {
		if tail[i] != wantTypes[i] {
			t.Fatalf("unexpected event order %v", got)
		}
	}
	released := events.Payload(h.recorder.Events()[len(got)-1])
	if released.Attributes["providerShare"] != share.String() || released.Attributes["platformFee"] != fee.String() {
		t.Fatalf("unexpected release event %+v", released.Attributes)
	}
}

func TestPayOrderIncorrectAmountLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	orderID := h.openOrder(t, clientA, gigID)
	half := new(big.Int).Div(oneUnit, big.NewInt(2))
	before := h.balance(t, clientA)
	eventsBefore := len(h.recorder.Types())

	for _, amount := range []*big.Int{half, new(big.Int).Add(oneUnit, big.NewInt(1)), nil} {
		if err := h.engine.PayOrder(h.ctx, clientA, orderID, amount); !errors.Is(err, ErrIncorrectAmount) {
			t.Fatalf("expected ErrIncorrectAmount for %v, got %v", amount, err)
		}
	}
	if order := mustOrder(t, h.engine, orderID); order.IsPaid {
		t.Fatalf("order marked paid after rejected payment")
	}
	if h.balance(t, clientA).Cmp(before) != 0 || h.custody(t).Sign() != 0 {
		t.Fatalf("rejected payment moved funds")
	}
	if len(h.recorder.Types()) != eventsBefore {
		t.Fatalf("rejected payment emitted events")
	}

	if err := h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit); err != nil {
		t.Fatalf("retry with exact amount: %v", err)
	}
	if err := h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	h.assertCustodyConserved(t)
}

func TestReleaseRequiresCompletionAndHappensOnce(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	orderID := h.openOrder(t, clientA, gigID)
	if err := h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit); err != nil {
		t.Fatalf("pay order: %v", err)
	}

	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); err != nil {
		t.Fatalf("complete order: %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); err != nil {
		t.Fatalf("release payment: %v", err)
	}
	providerAfter := h.balance(t, providerAddr)
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); !errors.Is(err, ErrAlreadyReleased) {
		t.Fatalf("expected ErrAlreadyReleased, got %v", err)
	}
	if h.balance(t, providerAddr).Cmp(providerAfter) != 0 {
		t.Fatalf("second release moved funds")
	}
	h.assertCustodyConserved(t)
}

func TestReleaseRequiresPayment(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	orderID := h.openOrder(t, clientA, gigID)
	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); err != nil {
		t.Fatalf("complete before payment: %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}
	if err := h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit); err != nil {
		t.Fatalf("pay after completion: %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestSelfOrderRejectedWithoutConsumingID(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	if _, err := h.engine.OpenOrder(h.ctx, providerAddr, gigID); !errors.Is(err, ErrSelfOrder) {
		t.Fatalf("expected ErrSelfOrder, got %v", err)
	}
	if _, err := h.engine.OrderGig(h.ctx, providerAddr, gigID, oneUnit); !errors.Is(err, ErrSelfOrder) {
		t.Fatalf("expected ErrSelfOrder from combined path, got %v", err)
	}
	root, err := h.engine.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root.OrderSeq != 0 {
		t.Fatalf("order counter advanced to %d", root.OrderSeq)
	}
	if id := h.openOrder(t, clientA, gigID); id != 1 {
		t.Fatalf("expected first order id 1, got %d", id)
	}
}

func TestOpenOrderPreconditions(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.OpenOrder(h.ctx, clientA, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	gigID := h.createGig(t, oneUnit)
	if err := h.engine.DeactivateGig(h.ctx, providerAddr, gigID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := h.engine.OpenOrder(h.ctx, clientA, gigID); !errors.Is(err, ErrInactiveGig) {
		t.Fatalf("expected ErrInactiveGig, got %v", err)
	}
	if _, err := h.engine.OpenOrder(h.ctx, providerAddr, gigID); !errors.Is(err, ErrInactiveGig) {
		t.Fatalf("expected inactive check before self-order check, got %v", err)
	}
}

func TestDeactivationKeepsOutstandingOrders(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	orderID := h.openOrder(t, clientA, gigID)
	if err := h.engine.DeactivateGig(h.ctx, providerAddr, gigID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit); err != nil {
		t.Fatalf("pay after deactivation: %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); err != nil {
		t.Fatalf("complete after deactivation: %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); err != nil {
		t.Fatalf("release after deactivation: %v", err)
	}
}

func TestOrderGigCombinedPathMarksPaid(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	if _, err := h.engine.OrderGig(h.ctx, clientA, gigID, big.NewInt(1)); !errors.Is(err, ErrIncorrectAmount) {
		t.Fatalf("expected ErrIncorrectAmount, got %v", err)
	}
	if root, _ := h.engine.Root(); root.OrderSeq != 0 {
		t.Fatalf("failed combined order consumed an id")
	}

	orderID, err := h.engine.OrderGig(h.ctx, clientA, gigID, oneUnit)
	if err != nil {
		t.Fatalf("order gig: %v", err)
	}
	order := mustOrder(t, h.engine, orderID)
	if !order.IsPaid || order.PaymentReleased {
		t.Fatalf("combined path must leave order paid and unreleased: %+v", order)
	}
	h.assertCustodyConserved(t)

	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); err != nil {
		t.Fatalf("release: %v", err)
	}
	h.assertCustodyConserved(t)
}

func TestInsufficientFundsRollsBack(t *testing.T) {
	h := newHarness(t)
	expensive := new(big.Int).Mul(oneUnit, big.NewInt(1000))
	gigID := h.createGig(t, expensive)
	if _, err := h.engine.OrderGig(h.ctx, clientA, gigID, expensive); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	root, _ := h.engine.Root()
	if root.OrderSeq != 0 {
		t.Fatalf("rolled back order still consumed id %d", root.OrderSeq)
	}
	if _, err := h.engine.GetOrder(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no order record, got %v", err)
	}
}

func TestZeroPriceOrder(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, big.NewInt(0))
	orderID, err := h.engine.OrderGig(h.ctx, clientA, gigID, big.NewInt(0))
	if err != nil {
		t.Fatalf("order zero price gig: %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, orderID); err != nil {
		t.Fatalf("release: %v", err)
	}
	order := mustOrder(t, h.engine, orderID)
	if order.ProviderShare.Sign() != 0 || order.PlatformFee.Sign() != 0 {
		t.Fatalf("expected zero split, got %s/%s", order.ProviderShare, order.PlatformFee)
	}
}

func TestIndependentOrders(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	first := h.openOrder(t, clientA, gigID)
	second := h.openOrder(t, clientB, gigID)
	if first == second {
		t.Fatalf("expected distinct order ids")
	}
	before := mustOrder(t, h.engine, second)

	if err := h.engine.PayOrder(h.ctx, clientA, first, oneUnit); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, providerAddr, first); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := h.engine.ReleasePayment(h.ctx, clientA, first); err != nil {
		t.Fatalf("release: %v", err)
	}

	after := mustOrder(t, h.engine, second)
	if after.IsPaid != before.IsPaid || after.IsCompleted != before.IsCompleted || after.PaymentReleased != before.PaymentReleased {
		t.Fatalf("order %d changed while operating on order %d", second, first)
	}
	if after.Client != clientB || after.Amount.Cmp(oneUnit) != 0 {
		t.Fatalf("unexpected second order %+v", after)
	}
	h.assertCustodyConserved(t)
}

func TestAuthorizationIsolation(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	orderID := h.openOrder(t, clientA, gigID)

	if err := h.engine.PayOrder(h.ctx, strangerAddr, orderID, oneUnit); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger pay: expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.PayOrder(h.ctx, providerAddr, orderID, oneUnit); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("provider pay: expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit); err != nil {
		t.Fatalf("client pay: %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, strangerAddr, orderID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger complete: expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, clientA, orderID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("client complete: expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.CompleteOrder(h.ctx, providerAddr, orderID); err != nil {
		t.Fatalf("provider complete: %v", err)
	}
	for _, caller := range [][20]byte{strangerAddr, providerAddr, adminAddr} {
		if err := h.engine.ReleasePayment(h.ctx, caller, orderID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("release by %x: expected ErrUnauthorized, got %v", caller[:2], err)
		}
	}
	if err := h.engine.DeactivateGig(h.ctx, strangerAddr, gigID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger deactivate: expected ErrUnauthorized, got %v", err)
	}
	if err := h.engine.DeactivateGig(h.ctx, providerAddr, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before authorization, got %v", err)
	}

	if !h.engine.IsOrderClient(clientA, orderID) || h.engine.IsOrderClient(strangerAddr, orderID) {
		t.Fatalf("unexpected IsOrderClient result")
	}
	if !h.engine.IsOrderProvider(providerAddr, orderID) || h.engine.IsOrderProvider(clientA, orderID) {
		t.Fatalf("unexpected IsOrderProvider result")
	}
	if !h.engine.IsGigProvider(providerAddr, gigID) || h.engine.IsGigProvider(clientA, gigID) {
		t.Fatalf("unexpected IsGigProvider result")
	}
	if !h.engine.IsAdministrator(adminAddr) || h.engine.IsAdministrator(clientA) {
		t.Fatalf("unexpected IsAdministrator result")
	}
	if h.engine.IsOrderClient(clientA, 77) {
		t.Fatalf("predicate true for unknown order")
	}
}

func TestFlagsAreMonotonic(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	orderID := h.openOrder(t, clientA, gigID)
	steps := []func() error{
		func() error { return h.engine.CompleteOrder(h.ctx, providerAddr, orderID) },
		func() error { return h.engine.PayOrder(h.ctx, clientA, orderID, oneUnit) },
		func() error { return h.engine.ReleasePayment(h.ctx, clientA, orderID) },
	}
	var prev *Order
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step: %v", err)
		}
		cur := mustOrder(t, h.engine, orderID)
		if prev != nil {
			if (prev.IsPaid && !cur.IsPaid) || (prev.IsCompleted && !cur.IsCompleted) || (prev.PaymentReleased && !cur.PaymentReleased) {
				t.Fatalf("flag reset from %+v to %+v", prev, cur)
			}
		}
		prev = cur
	}
	for _, step := range steps {
		if err := step(); err == nil {
			t.Fatalf("repeated transition unexpectedly succeeded")
		}
	}
	final := mustOrder(t, h.engine, orderID)
	if !final.IsPaid || !final.IsCompleted || !final.PaymentReleased {
		t.Fatalf("flags regressed: %+v", final)
	}
}
