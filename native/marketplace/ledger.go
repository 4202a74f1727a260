package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"hgigs/native/bank"
)

var errCustodyUnderflow = errors.New("marketplace: custody underflow")

func (s *session) loadOrder(id uint64) (*Order, error) {
	order, ok, err := s.tx.OrderGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || order == nil {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return order.Clone(), nil
}

func (s *session) adjustCustody(asset string, delta *big.Int) error {
	balance, err := s.tx.CustodyGet(asset)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(cloneBigInt(balance), delta)
	if next.Sign() < 0 {
		return fmt.Errorf("%w: %s custody %s, delta %s", errCustodyUnderflow, asset, cloneBigInt(balance), delta)
	}
	return s.tx.CustodyPut(asset, next)
}

func (e *Engine) openOrder(s *session, caller [20]byte, gigID uint64) (*Order, error) {
	gig, err := s.loadGig(gigID)
	if err != nil {
		return nil, err
	}
	if !gig.IsActive {
		return nil, fmt.Errorf("%w: gig %d", ErrInactiveGig, gigID)
	}
	if gig.Provider == caller {
		return nil, fmt.Errorf("%w: gig %d", ErrSelfOrder, gigID)
	}
	s.root.OrderSeq++
	s.touchRoot()
	order := &Order{
		ID:        s.root.OrderSeq,
		GigID:     gig.ID,
		Client:    caller,
		Provider:  gig.Provider,
		Asset:     gig.Asset,
		Amount:    cloneBigInt(gig.Price),
		CreatedAt: e.now(),
	}
	if err := s.tx.OrderPut(order); err != nil {
		return nil, err
	}
	s.emit(newOrderCreatedEvent(order))
	return order, nil
}

func (e *Engine) payOrder(s *session, caller [20]byte, order *Order, supplied *big.Int) error {
	if order.IsPaid {
		return fmt.Errorf("%w: order %d", ErrAlreadyPaid, order.ID)
	}
	if supplied == nil || supplied.Cmp(order.Amount) != 0 {
		return fmt.Errorf("%w: order %d requires %s", ErrIncorrectAmount, order.ID, order.Amount)
	}
	if order.Client != caller {
		return fmt.Errorf("%w: only order client can pay order %d", ErrUnauthorized, order.ID)
	}
	if e.funding == nil {
		return errNilFunding
	}
	if err := e.funding.TransferIn(s.ctx, s.tx, order.Asset, caller, order.Amount); err != nil {
		return err
	}
	if err := s.adjustCustody(order.Asset, order.Amount); err != nil {
		return err
	}
	order.IsPaid = true
	if err := s.tx.OrderPut(order); err != nil {
		return err
	}
	s.emit(newOrderPaidEvent(order))
	return nil
}

// OpenOrder creates an unpaid order for the gig on behalf of caller and
// returns the new order identifier. No funds move.
func (e *Engine) OpenOrder(ctx context.Context, caller [20]byte, gigID uint64) (uint64, error) {
	var id uint64
	err := e.mutate(ctx, "open_order", guarded, func(s *session) error {
		order, err := e.openOrder(s, caller, gigID)
		if err != nil {
			return err
		}
		id = order.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// PayOrder moves exactly the order amount from the client into custody.
func (e *Engine) PayOrder(ctx context.Context, caller [20]byte, orderID uint64, supplied *big.Int) error {
	return e.mutate(ctx, "pay_order", guarded, func(s *session) error {
		order, err := s.loadOrder(orderID)
		if err != nil {
			return err
		}
		return e.payOrder(s, caller, order, supplied)
	})
}

// OrderGig opens and funds an order in one atomic step. The resulting order
// is indistinguishable from one opened with OpenOrder and paid with PayOrder.
func (e *Engine) OrderGig(ctx context.Context, caller [20]byte, gigID uint64, supplied *big.Int) (uint64, error) {
	var id uint64
	err := e.mutate(ctx, "order_gig", guarded, func(s *session) error {
		order, err := e.openOrder(s, caller, gigID)
		if err != nil {
			return err
		}
		if err := e.payOrder(s, caller, order, supplied); err != nil {
			return err
		}
		id = order.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CompleteOrder records that the provider delivered the work. It does not
// depend on the payment status.
func (e *Engine) CompleteOrder(ctx context.Context, caller [20]byte, orderID uint64) error {
	return e.mutate(ctx, "complete_order", guarded, func(s *session) error {
		order, err := s.loadOrder(orderID)
		if err != nil {
			return err
		}
		if order.Provider != caller {
			return fmt.Errorf("%w: only gig provider can complete order %d", ErrUnauthorized, orderID)
		}
		if order.IsCompleted {
			return fmt.Errorf("%w: order %d", ErrAlreadyCompleted, orderID)
		}
		order.IsCompleted = true
		if err := s.tx.OrderPut(order); err != nil {
			return err
		}
		s.emit(newOrderCompletedEvent(order))
		return nil
	})
}

// ReleasePayment disburses a completed, paid order: the provider receives the
// amount minus the platform fee and the administrator receives the fee. The
// release flag and custody debit are written before any transfer runs.
func (e *Engine) ReleasePayment(ctx context.Context, caller [20]byte, orderID uint64) error {
	return e.mutate(ctx, "release_payment", guarded, func(s *session) error {
		order, err := s.loadOrder(orderID)
		if err != nil {
			return err
		}
		if order.Client != caller {
			return fmt.Errorf("%w: only order client can release order %d", ErrUnauthorized, orderID)
		}
		if !order.IsCompleted {
			return fmt.Errorf("%w: order %d", ErrNotCompleted, orderID)
		}
		if !order.IsPaid {
			return fmt.Errorf("%w: order %d", ErrNotPaid, orderID)
		}
		if order.PaymentReleased {
			return fmt.Errorf("%w: order %d", ErrAlreadyReleased, orderID)
		}
		if e.funding == nil {
			return errNilFunding
		}
		share, fee, err := splitPayment(order.Amount, s.root.FeeBps)
		if err != nil {
			return err
		}

		order.PaymentReleased = true
		order.ProviderShare = share
		order.PlatformFee = fee
		order.ReleasedAt = e.now()
		if err := s.tx.OrderPut(order); err != nil {
			return err
		}
		if err := s.adjustCustody(order.Asset, new(big.Int).Neg(order.Amount)); err != nil {
			return err
		}

		transferCtx := withDisbursement(s.ctx, order.ID)
		err = e.disburse(order.ID, func() error {
			if err := e.funding.TransferOut(transferCtx, s.tx, order.Asset, order.Provider, share); err != nil {
				return fmt.Errorf("marketplace: pay provider: %w", err)
			}
			if err := e.funding.TransferOut(transferCtx, s.tx, order.Asset, s.root.Admin, fee); err != nil {
				return fmt.Errorf("marketplace: pay platform fee: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.emit(newPaymentReleasedEvent(order, s.root.Admin))
		return nil
	})
}

// GetOrder returns a copy of the order.
func (e *Engine) GetOrder(orderID uint64) (*Order, error) {
	var out *Order
	err := e.view(func(st State) error {
		order, ok, err := st.OrderGet(orderID)
		if err != nil {
			return err
		}
		if !ok || order == nil {
			return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		out = order.Clone()
		return nil
	})
	return out, err
}

// Settlements returns every released order in identifier order.
func (e *Engine) Settlements() ([]*Order, error) {
	var out []*Order
	err := e.consistentView(func(st State) error {
		root, err := st.MarketplaceRoot()
		if err != nil {
			return err
		}
		for id := uint64(1); id <= root.OrderSeq; id++ {
			order, ok, err := st.OrderGet(id)
			if err != nil {
				return err
			}
			if ok && order != nil && order.PaymentReleased {
				out = append(out, order.Clone())
			}
		}
		return nil
	})
	return out, err
}

// Deposit credits a principal's balance from the external funding rail.
// Administrator only.
func (e *Engine) Deposit(ctx context.Context, caller, account [20]byte, asset string, amount *big.Int) error {
	return e.mutate(ctx, "deposit", guarded, func(s *session) error {
		if err := s.requireAdministrator(caller); err != nil {
			return err
		}
		normalized, err := NormalizeAsset(asset)
		if err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("%w: deposit amount must be positive", ErrInvalidInput)
		}
		if err := bank.Credit(s.tx, account, normalized, amount); err != nil {
			return err
		}
		s.emit(newDepositEvent(account, normalized, amount))
		return nil
	})
}

// Balance returns the principal's spendable balance of asset.
func (e *Engine) Balance(account [20]byte, asset string) (*big.Int, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	err = e.view(func(st State) error {
		balance, err := bank.Balance(st, account, normalized)
		if err != nil {
			return err
		}
		out = balance
		return nil
	})
	return out, err
}

