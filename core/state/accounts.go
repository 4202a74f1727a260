package state

import "math/big"

// BalanceGet returns the principal's balance of asset, zero when unset.
func (t *Tx) BalanceGet(addr [20]byte, asset string) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := t.KVGet(BalanceKey(addr, asset), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// BalancePut stores the principal's balance of asset.
func (t *Tx) BalancePut(addr [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return t.KVDelete(BalanceKey(addr, asset))
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	return t.KVPut(BalanceKey(addr, asset), amount)
}
