package marketplace

import (
	"context"
	"math/big"

	"hgigs/native/bank"
)

// State is the storage surface the engine reads and writes. Missing gigs and
// orders are reported through the boolean result rather than an error.
type State interface {
	bank.AccountState
	MarketplaceRoot() (*Root, error)
	PutMarketplaceRoot(*Root) error
	GigGet(id uint64) (*Gig, bool, error)
	GigPut(*Gig) error
	OrderGet(id uint64) (*Order, bool, error)
	OrderPut(*Order) error
	CustodyGet(asset string) (*big.Int, error)
	CustodyPut(asset string, amount *big.Int) error
}

// Tx is a State overlay whose writes become visible only on Commit.
type Tx interface {
	State
	Commit() error
	Discard()
}

// Backend hands out transactions over the persistent state.
type Backend interface {
	Begin() (Tx, error)
}

// Funding moves the funding asset between principals and marketplace custody.
// Implementations receive the transaction's balance view so transfers commit
// or roll back together with the order state.
type Funding interface {
	TransferIn(ctx context.Context, accounts bank.AccountState, asset string, from [20]byte, amount *big.Int) error
	TransferOut(ctx context.Context, accounts bank.AccountState, asset string, to [20]byte, amount *big.Int) error
}
