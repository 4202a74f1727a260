package marketplace

import (
	"context"
	"fmt"
)

func (s *session) requireAdministrator(caller [20]byte) error {
	if caller != s.root.Admin {
		return fmt.Errorf("%w: administrator only", ErrUnauthorized)
	}
	return nil
}

// Pause halts every catalog and ledger mutation. Administrator only.
func (e *Engine) Pause(ctx context.Context, caller [20]byte) error {
	return e.mutate(ctx, "pause", administrative, func(s *session) error {
		if err := s.requireAdministrator(caller); err != nil {
			return err
		}
		if s.root.Paused {
			return fmt.Errorf("%w: already paused", ErrPaused)
		}
		s.root.Paused = true
		s.touchRoot()
		s.emit(newPauseEvent(EventTypePaused, caller))
		return nil
	})
}

// Unpause resumes mutations. Administrator only.
func (e *Engine) Unpause(ctx context.Context, caller [20]byte) error {
	return e.mutate(ctx, "unpause", administrative, func(s *session) error {
		if err := s.requireAdministrator(caller); err != nil {
			return err
		}
		if !s.root.Paused {
			return ErrNotPaused
		}
		s.root.Paused = false
		s.touchRoot()
		s.emit(newPauseEvent(EventTypeUnpaused, caller))
		return nil
	})
}

// TransferAdministrator hands the administrator role to next. Only the
// current administrator may call it; fees of later releases go to next.
func (e *Engine) TransferAdministrator(ctx context.Context, caller, next [20]byte) error {
	return e.mutate(ctx, "transfer_administrator", administrative, func(s *session) error {
		if err := s.requireAdministrator(caller); err != nil {
			return err
		}
		if next == ([20]byte{}) {
			return fmt.Errorf("%w: administrator required", ErrInvalidInput)
		}
		previous := s.root.Admin
		s.root.Admin = next
		s.touchRoot()
		s.emit(newAdministratorTransferredEvent(previous, next))
		return nil
	})
}

// SetFeeBps updates the platform fee rate applied to later releases.
func (e *Engine) SetFeeBps(ctx context.Context, caller [20]byte, bps uint32) error {
	return e.mutate(ctx, "set_fee", administrative, func(s *session) error {
		if err := s.requireAdministrator(caller); err != nil {
			return err
		}
		if bps > MaxFeeBps {
			return fmt.Errorf("%w: %d exceeds %d basis points", ErrInvalidFee, bps, MaxFeeBps)
		}
		previous := s.root.FeeBps
		if previous == bps {
			return nil
		}
		s.root.FeeBps = bps
		s.touchRoot()
		s.emit(newFeeUpdatedEvent(previous, bps))
		return nil
	})
}

// IsAdministrator reports whether caller currently holds the administrator
// role.
func (e *Engine) IsAdministrator(caller [20]byte) bool {
	root, err := e.Root()
	if err != nil || !root.Initialized {
		return false
	}
	return root.Admin == caller
}

// IsGigProvider reports whether caller listed the gig.
func (e *Engine) IsGigProvider(caller [20]byte, gigID uint64) bool {
	gig, err := e.GetGig(gigID)
	if err != nil {
		return false
	}
	return gig.Provider == caller
}

// IsOrderClient reports whether caller opened the order.
func (e *Engine) IsOrderClient(caller [20]byte, orderID uint64) bool {
	order, err := e.GetOrder(orderID)
	if err != nil {
		return false
	}
	return order.Client == caller
}

// IsOrderProvider reports whether caller provides the order's gig.
func (e *Engine) IsOrderProvider(caller [20]byte, orderID uint64) bool {
	order, err := e.GetOrder(orderID)
	if err != nil {
		return false
	}
	return order.Provider == caller
}
