package state

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"hgigs/native/marketplace"
)

var errNegativeAmount = errors.New("state: negative amount")

// Stored layouts. Fields may only be appended, and appended fields carry the
// rlp "optional" tag so records written before them still decode.

type storedRoot struct {
	Initialized   bool
	Admin         [20]byte
	FeeBps        uint32
	Paused        bool
	GigSeq        uint64
	OrderSeq      uint64
	SchemaVersion uint32 `rlp:"optional"`
}

type storedGig struct {
	ID          uint64
	Provider    [20]byte
	Title       string
	Description string
	Price       *big.Int
	Asset       string
	IsActive    bool
	CreatedAt   uint64
}

type storedOrder struct {
	ID              uint64
	GigID           uint64
	Client          [20]byte
	Provider        [20]byte
	Asset           string
	Amount          *big.Int
	IsCompleted     bool
	IsPaid          bool
	PaymentReleased bool
	CreatedAt       uint64
	ProviderShare   *big.Int `rlp:"optional"`
	PlatformFee     *big.Int `rlp:"optional"`
	ReleasedAt      uint64   `rlp:"optional"`
}

func toUnix(ts uint64) int64 {
	if ts > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(ts)
}

func fromUnix(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// MarketplaceRoot returns the stored root record, or an empty root when the
// marketplace has not been initialised.
func (t *Tx) MarketplaceRoot() (*marketplace.Root, error) {
	var stored storedRoot
	ok, err := t.KVGet(marketplaceRootKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &marketplace.Root{}, nil
	}
	return &marketplace.Root{
		Initialized: stored.Initialized,
		Admin:       stored.Admin,
		FeeBps:      stored.FeeBps,
		Paused:      stored.Paused,
		GigSeq:      stored.GigSeq,
		OrderSeq:    stored.OrderSeq,
	}, nil
}

// PutMarketplaceRoot stores the root record stamped with the current schema
// version.
func (t *Tx) PutMarketplaceRoot(root *marketplace.Root) error {
	if root == nil {
		return fmt.Errorf("state: nil marketplace root")
	}
	return t.KVPut(marketplaceRootKey, &storedRoot{
		Initialized:   root.Initialized,
		Admin:         root.Admin,
		FeeBps:        root.FeeBps,
		Paused:        root.Paused,
		GigSeq:        root.GigSeq,
		OrderSeq:      root.OrderSeq,
		SchemaVersion: StateVersion,
	})
}

// GigGet loads a gig record.
func (t *Tx) GigGet(id uint64) (*marketplace.Gig, bool, error) {
	var stored storedGig
	ok, err := t.KVGet(GigKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &marketplace.Gig{
		ID:          stored.ID,
		Provider:    stored.Provider,
		Title:       stored.Title,
		Description: stored.Description,
		Price:       nonNil(stored.Price),
		Asset:       stored.Asset,
		IsActive:    stored.IsActive,
		CreatedAt:   toUnix(stored.CreatedAt),
	}, true, nil
}

// GigPut stores a gig record.
func (t *Tx) GigPut(gig *marketplace.Gig) error {
	if gig == nil {
		return fmt.Errorf("state: nil gig")
	}
	if gig.Price != nil && gig.Price.Sign() < 0 {
		return errNegativeAmount
	}
	return t.KVPut(GigKey(gig.ID), &storedGig{
		ID:          gig.ID,
		Provider:    gig.Provider,
		Title:       gig.Title,
		Description: gig.Description,
		Price:       nonNil(gig.Price),
		Asset:       gig.Asset,
		IsActive:    gig.IsActive,
		CreatedAt:   fromUnix(gig.CreatedAt),
	})
}

// OrderGet loads an order record.
func (t *Tx) OrderGet(id uint64) (*marketplace.Order, bool, error) {
	var stored storedOrder
	ok, err := t.KVGet(OrderKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &marketplace.Order{
		ID:              stored.ID,
		GigID:           stored.GigID,
		Client:          stored.Client,
		Provider:        stored.Provider,
		Asset:           stored.Asset,
		Amount:          nonNil(stored.Amount),
		IsCompleted:     stored.IsCompleted,
		IsPaid:          stored.IsPaid,
		PaymentReleased: stored.PaymentReleased,
		CreatedAt:       toUnix(stored.CreatedAt),
		ProviderShare:   stored.ProviderShare,
		PlatformFee:     stored.PlatformFee,
		ReleasedAt:      toUnix(stored.ReleasedAt),
	}, true, nil
}

// OrderPut stores an order record.
func (t *Tx) OrderPut(order *marketplace.Order) error {
	if order == nil {
		return fmt.Errorf("state: nil order")
	}
	for _, v := range []*big.Int{order.Amount, order.ProviderShare, order.PlatformFee} {
		if v != nil && v.Sign() < 0 {
			return errNegativeAmount
		}
	}
	return t.KVPut(OrderKey(order.ID), &storedOrder{
		ID:              order.ID,
		GigID:           order.GigID,
		Client:          order.Client,
		Provider:        order.Provider,
		Asset:           order.Asset,
		Amount:          nonNil(order.Amount),
		IsCompleted:     order.IsCompleted,
		IsPaid:          order.IsPaid,
		PaymentReleased: order.PaymentReleased,
		CreatedAt:       fromUnix(order.CreatedAt),
		ProviderShare:   order.ProviderShare,
		PlatformFee:     order.PlatformFee,
		ReleasedAt:      fromUnix(order.ReleasedAt),
	})
}

// CustodyGet returns the escrowed total of asset.
func (t *Tx) CustodyGet(asset string) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := t.KVGet(CustodyKey(asset), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// CustodyPut stores the escrowed total of asset.
func (t *Tx) CustodyPut(asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	return t.KVPut(CustodyKey(asset), amount)
}

var _ marketplace.Tx = (*Tx)(nil)
