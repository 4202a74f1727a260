package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"hgigs/core/events"
	"hgigs/core/types"
	"hgigs/crypto"
	nativecommon "hgigs/native/common"
)

type marketplaceEvent struct {
	evt *types.Event
}

func (e marketplaceEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketplaceEvent) Event() *types.Event { return e.evt }

// Engine implements the gig catalog, the escrow ledger and the access guard
// on top of a transactional Backend. Mutations are serialized and each one
// commits atomically or not at all. Single-record reads never block on
// mutations.
type Engine struct {
	mu sync.RWMutex
	// emitMu orders event delivery. It is taken before mu is released so
	// events leave in commit order while the next mutation proceeds.
	emitMu sync.Mutex
	// disbursing holds the order id whose payment is being transferred out,
	// or zero. It is written only while mu is held.
	disbursing atomic.Uint64

	backend Backend
	funding Funding
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers must
// configure the backend and funding capability before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetBackend configures the state backend used by the engine.
func (e *Engine) SetBackend(backend Backend) { e.backend = backend }

// SetFunding configures the capability used to move funds in and out of
// custody.
func (e *Engine) SetFunding(funding Funding) { e.funding = funding }

// SetLogger overrides the structured logger. Passing nil restores the default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// session carries the working set of a single mutation.
type session struct {
	ctx       context.Context
	tx        Tx
	root      *Root
	rootDirty bool
	pending   []*types.Event
}

func (s *session) emit(evt *types.Event) {
	if evt != nil {
		s.pending = append(s.pending, evt)
	}
}

func (s *session) touchRoot() { s.rootDirty = true }

type mutationKind uint8

const (
	// guarded mutations require an initialized, unpaused marketplace.
	guarded mutationKind = iota
	// administrative mutations require initialization but run while paused.
	administrative
	// bootstrap runs before initialization.
	bootstrap
)

// mutate runs fn inside a fresh transaction while holding the engine lock. The
// transaction is committed only when fn succeeds; buffered events are emitted
// after the commit, outside the engine lock but in commit order.
func (e *Engine) mutate(ctx context.Context, op string, kind mutationKind, fn func(*session) error) error {
	if e == nil || e.backend == nil {
		return errNilState
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if inDisbursement(ctx) {
		return fmt.Errorf("%w: %s during disbursement", ErrReentrant, op)
	}
	// A funding collaborator that calls back with an unmarked context still
	// runs while mu is held by the release; refuse instead of blocking on it.
	if id := e.disbursing.Load(); id != 0 {
		return fmt.Errorf("%w: %s while order %d is disbursing", ErrReentrant, op, id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pending, err := e.commit(ctx, op, kind, fn)
	if err != nil {
		return err
	}
	defer e.emitMu.Unlock()
	for _, evt := range pending {
		e.logger.Info("marketplace state transition", eventAttrs(evt)...)
		e.emitter.Emit(marketplaceEvent{evt: evt})
	}
	return nil
}

// commit applies fn under mu. On success it returns the buffered events with
// emitMu held; the caller emits them and releases emitMu.
func (e *Engine) commit(ctx context.Context, op string, kind mutationKind, fn func(*session) error) ([]*types.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.backend.Begin()
	if err != nil {
		return nil, fmt.Errorf("marketplace: begin %s: %w", op, err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Discard()
		}
	}()

	root, err := tx.MarketplaceRoot()
	if err != nil {
		return nil, fmt.Errorf("marketplace: load root: %w", err)
	}
	s := &session{ctx: ctx, tx: tx, root: root.Clone()}

	if kind != bootstrap && !s.root.Initialized {
		return nil, e.rejected(op, ErrNotInitialized)
	}
	if kind == guarded {
		if err := nativecommon.Guard(s.root, ModuleName); err != nil {
			return nil, e.rejected(op, fmt.Errorf("%w: %s", err, op))
		}
	}
	if err := fn(s); err != nil {
		return nil, e.rejected(op, err)
	}
	if s.rootDirty {
		if err := tx.PutMarketplaceRoot(s.root); err != nil {
			return nil, fmt.Errorf("marketplace: store root: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("marketplace: commit %s: %w", op, err)
	}
	committed = true
	e.emitMu.Lock()
	return s.pending, nil
}

// disburse runs the transfers of a release with the engine marked as
// disbursing orderID. The caller holds mu.
func (e *Engine) disburse(orderID uint64, transfers func() error) error {
	e.disbursing.Store(orderID)
	defer e.disbursing.Store(0)
	return transfers()
}

func (e *Engine) rejected(op string, err error) error {
	e.logger.Debug("marketplace mutation rejected",
		slog.String("op", op),
		slog.String("code", Code(err)),
		slog.String("error", err.Error()))
	return err
}

func eventAttrs(evt *types.Event) []any {
	attrs := make([]any, 0, len(evt.Attributes)+1)
	attrs = append(attrs, slog.String("event", evt.Type))
	for k, v := range evt.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	return attrs
}

// view runs fn against the committed state without taking the engine lock.
// Each read sees the latest commit, so reads spanning several records may
// straddle a concurrent mutation; use consistentView for those.
func (e *Engine) view(fn func(State) error) error {
	if e == nil || e.backend == nil {
		return errNilState
	}
	tx, err := e.backend.Begin()
	if err != nil {
		return err
	}
	defer tx.Discard()
	return fn(tx)
}

// consistentView is view under the engine read lock, so no mutation commits
// while fn runs.
func (e *Engine) consistentView(fn func(State) error) error {
	if e == nil || e.backend == nil {
		return errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view(fn)
}
