package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the available
	// balance.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("bank: invalid amount")

	errNilAccounts = errors.New("bank: account state not configured")
)

// AccountState is the balance view a ledger operates on. The state manager's
// transactions implement it so balance changes commit atomically with the
// caller's other writes.
type AccountState interface {
	BalanceGet(addr [20]byte, asset string) (*big.Int, error)
	BalancePut(addr [20]byte, asset string, amount *big.Int) error
}

// Ledger moves balances between principals and the custody held by the
// marketplace. TransferIn debits the payer; TransferOut credits the payee. The
// counterpart custody entry is maintained by the caller.
type Ledger struct{}

// NewLedger returns the default funding ledger.
func NewLedger() *Ledger { return &Ledger{} }

// TransferIn debits amount from the principal's balance.
func (l *Ledger) TransferIn(ctx context.Context, accounts AccountState, asset string, from [20]byte, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	return Debit(accounts, from, asset, amount)
}

// TransferOut credits amount to the principal's balance.
func (l *Ledger) TransferOut(ctx context.Context, accounts AccountState, asset string, to [20]byte, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	return Credit(accounts, to, asset, amount)
}

// Balance returns the principal's balance for asset, zero when unset.
func Balance(accounts AccountState, addr [20]byte, asset string) (*big.Int, error) {
	if accounts == nil {
		return nil, errNilAccounts
	}
	balance, err := accounts.BalanceGet(addr, asset)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

// Credit adds amount to the principal's balance.
func Credit(accounts AccountState, addr [20]byte, asset string, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := Balance(accounts, addr, asset)
	if err != nil {
		return err
	}
	return accounts.BalancePut(addr, asset, balance.Add(balance, amount))
}

// Debit removes amount from the principal's balance, failing with
// ErrInsufficientFunds when the balance is too small.
func Debit(accounts AccountState, addr [20]byte, asset string, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := Balance(accounts, addr, asset)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, amount)
	}
	return accounts.BalancePut(addr, asset, balance.Sub(balance, amount))
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
