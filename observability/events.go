package observability

import (
	"math/big"

	"hgigs/core/events"
	"hgigs/native/marketplace"
)

// EventMetrics is an events.Emitter that folds marketplace events into the
// Prometheus registry.
type EventMetrics struct {
	metrics *MarketplaceMetrics
}

// NewEventMetrics binds the emitter to the marketplace registry.
func NewEventMetrics() *EventMetrics {
	return &EventMetrics{metrics: Marketplace()}
}

// Emit implements events.Emitter.
func (e *EventMetrics) Emit(evt events.Event) {
	if e == nil || e.metrics == nil {
		return
	}
	payload := events.Payload(evt)
	if payload == nil {
		return
	}
	m := e.metrics
	attrs := payload.Attributes
	switch payload.Type {
	case marketplace.EventTypeGigCreated:
		m.gigs.Inc()
	case marketplace.EventTypeOrderCreated:
		m.transitions.WithLabelValues("created").Inc()
	case marketplace.EventTypeOrderPaid:
		m.transitions.WithLabelValues("paid").Inc()
		m.custody.WithLabelValues(attrs["asset"]).Add(baseUnits(attrs["amount"]))
	case marketplace.EventTypeOrderCompleted:
		m.transitions.WithLabelValues("completed").Inc()
	case marketplace.EventTypePaymentReleased:
		m.transitions.WithLabelValues("released").Inc()
		m.custody.WithLabelValues(attrs["asset"]).Sub(baseUnits(attrs["amount"]))
		m.fees.WithLabelValues(attrs["asset"]).Add(baseUnits(attrs["platformFee"]))
	case marketplace.EventTypePaused:
		m.SetPaused(true)
	case marketplace.EventTypeUnpaused:
		m.SetPaused(false)
	}
}

func baseUnits(raw string) float64 {
	value, ok := new(big.Float).SetString(raw)
	if !ok {
		return 0
	}
	out, _ := value.Float64()
	return out
}
