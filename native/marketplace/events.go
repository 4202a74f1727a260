package marketplace

import (
	"math/big"
	"strconv"

	"hgigs/core/types"
)

const (
	EventTypeInitialized              = "marketplace.initialized"
	EventTypeGigCreated               = "marketplace.gig.created"
	EventTypeGigDeactivated           = "marketplace.gig.deactivated"
	EventTypeOrderCreated             = "marketplace.order.created"
	EventTypeOrderPaid                = "marketplace.order.paid"
	EventTypeOrderCompleted           = "marketplace.order.completed"
	EventTypePaymentReleased          = "marketplace.payment.released"
	EventTypePaused                   = "marketplace.paused"
	EventTypeUnpaused                 = "marketplace.unpaused"
	EventTypeAdministratorTransferred = "marketplace.admin.transferred"
	EventTypeFeeUpdated               = "marketplace.fee.updated"
	EventTypeDeposit                  = "marketplace.deposit"
)

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

func amountString(v *big.Int) string { return cloneBigInt(v).String() }

func newInitializedEvent(admin [20]byte, feeBps uint32) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"admin":  addressString(admin),
		"feeBps": strconv.FormatUint(uint64(feeBps), 10),
	}}
}

func newGigCreatedEvent(g *Gig) *types.Event {
	return &types.Event{Type: EventTypeGigCreated, Attributes: map[string]string{
		"gigId":    formatID(g.ID),
		"provider": addressString(g.Provider),
		"price":    amountString(g.Price),
		"asset":    g.Asset,
	}}
}

func newGigDeactivatedEvent(g *Gig) *types.Event {
	return &types.Event{Type: EventTypeGigDeactivated, Attributes: map[string]string{
		"gigId":    formatID(g.ID),
		"provider": addressString(g.Provider),
	}}
}

func newOrderCreatedEvent(o *Order) *types.Event {
	return &types.Event{Type: EventTypeOrderCreated, Attributes: map[string]string{
		"orderId":  formatID(o.ID),
		"gigId":    formatID(o.GigID),
		"client":   addressString(o.Client),
		"provider": addressString(o.Provider),
		"amount":   amountString(o.Amount),
		"asset":    o.Asset,
	}}
}

func newOrderPaidEvent(o *Order) *types.Event {
	return &types.Event{Type: EventTypeOrderPaid, Attributes: map[string]string{
		"orderId": formatID(o.ID),
		"client":  addressString(o.Client),
		"amount":  amountString(o.Amount),
		"asset":   o.Asset,
	}}
}

func newOrderCompletedEvent(o *Order) *types.Event {
	return &types.Event{Type: EventTypeOrderCompleted, Attributes: map[string]string{
		"orderId":  formatID(o.ID),
		"provider": addressString(o.Provider),
	}}
}

func newPaymentReleasedEvent(o *Order, admin [20]byte) *types.Event {
	return &types.Event{Type: EventTypePaymentReleased, Attributes: map[string]string{
		"orderId":       formatID(o.ID),
		"provider":      addressString(o.Provider),
		"admin":         addressString(admin),
		"amount":        amountString(o.Amount),
		"providerShare": amountString(o.ProviderShare),
		"platformFee":   amountString(o.PlatformFee),
		"asset":         o.Asset,
	}}
}

func newPauseEvent(eventType string, by [20]byte) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"by": addressString(by),
	}}
}

func newAdministratorTransferredEvent(previous, next [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAdministratorTransferred, Attributes: map[string]string{
		"previous": addressString(previous),
		"next":     addressString(next),
	}}
}

func newFeeUpdatedEvent(previous, next uint32) *types.Event {
	return &types.Event{Type: EventTypeFeeUpdated, Attributes: map[string]string{
		"previous": strconv.FormatUint(uint64(previous), 10),
		"next":     strconv.FormatUint(uint64(next), 10),
	}}
}

func newDepositEvent(account [20]byte, asset string, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposit, Attributes: map[string]string{
		"account": addressString(account),
		"asset":   asset,
		"amount":  amountString(amount),
	}}
}
