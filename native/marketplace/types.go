package marketplace

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// ModuleName identifies the marketplace in pause views and logs.
	ModuleName = "marketplace"
	// NativeAsset is the funding asset used when a gig does not name one.
	NativeAsset = "NATIVE"
	// DefaultFeeBps is the platform fee applied on release (5%).
	DefaultFeeBps uint32 = 500
	// MaxFeeBps caps the platform fee at the full order amount.
	MaxFeeBps uint32 = 10_000

	tokenAssetPrefix = "token:"
	maxTokenIDLength = 64
)

// Gig is a fixed-price service listed by its provider. Price is expressed in
// base units of Asset and never changes after creation.
type Gig struct {
	ID          uint64
	Provider    [20]byte
	Title       string
	Description string
	Price       *big.Int
	Asset       string
	IsActive    bool
	CreatedAt   int64
}

// Clone returns a deep copy of the gig.
func (g *Gig) Clone() *Gig {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Price = cloneBigInt(g.Price)
	return &clone
}

// Order records a client's commitment to a gig at the price in force when the
// order was opened. Provider, Asset and Amount are copied from the gig so the
// order is independent of any later change to it.
type Order struct {
	ID              uint64
	GigID           uint64
	Client          [20]byte
	Provider        [20]byte
	Asset           string
	Amount          *big.Int
	IsCompleted     bool
	IsPaid          bool
	PaymentReleased bool
	CreatedAt       int64

	// Settlement split recorded when the payment is released.
	ProviderShare *big.Int
	PlatformFee   *big.Int
	ReleasedAt    int64
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Amount = cloneBigInt(o.Amount)
	if o.ProviderShare != nil {
		clone.ProviderShare = new(big.Int).Set(o.ProviderShare)
	}
	if o.PlatformFee != nil {
		clone.PlatformFee = new(big.Int).Set(o.PlatformFee)
	}
	return &clone
}

// Escrowed reports whether the order's amount is currently held in custody.
func (o *Order) Escrowed() bool {
	return o != nil && o.IsPaid && !o.PaymentReleased
}

// Root is the marketplace's singleton configuration and counter record.
type Root struct {
	Initialized bool
	Admin       [20]byte
	FeeBps      uint32
	Paused      bool
	GigSeq      uint64
	OrderSeq    uint64
}

// Clone returns a copy of the root record.
func (r *Root) Clone() *Root {
	if r == nil {
		return &Root{}
	}
	clone := *r
	return &clone
}

// IsPaused implements the shared pause view for the marketplace module.
func (r *Root) IsPaused(module string) bool {
	return r != nil && module == ModuleName && r.Paused
}

// NormalizeAsset returns the canonical asset reference. An empty value or any
// casing of "native" maps to NativeAsset; tokens are written "token:<id>" and
// their identifier is lower-cased.
func NormalizeAsset(asset string) (string, error) {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" || strings.EqualFold(trimmed, NativeAsset) {
		return NativeAsset, nil
	}
	if len(trimmed) > len(tokenAssetPrefix) && strings.EqualFold(trimmed[:len(tokenAssetPrefix)], tokenAssetPrefix) {
		id := strings.ToLower(trimmed[len(tokenAssetPrefix):])
		if len(id) > maxTokenIDLength {
			return "", fmt.Errorf("%w: token id too long", ErrInvalidInput)
		}
		for _, r := range id {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			default:
				return "", fmt.Errorf("%w: invalid token id %q", ErrInvalidInput, id)
			}
		}
		return tokenAssetPrefix + id, nil
	}
	return "", fmt.Errorf("%w: unsupported asset %q", ErrInvalidInput, asset)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
