package marketplace

import "context"

type disbursementKey struct{}

// withDisbursement marks ctx as belonging to an in-flight release of orderID.
// Funding implementations receive the marked context; any mutation invoked
// with it is refused.
func withDisbursement(ctx context.Context, orderID uint64) context.Context {
	return context.WithValue(ctx, disbursementKey{}, orderID)
}

func inDisbursement(ctx context.Context) bool {
	_, ok := DisbursingOrder(ctx)
	return ok
}

// DisbursingOrder returns the order whose payment is being disbursed under ctx.
func DisbursingOrder(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(disbursementKey{}).(uint64)
	return id, ok
}
