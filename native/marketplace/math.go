package marketplace

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var bpsDenominator = uint256.NewInt(uint64(MaxFeeBps))

// splitPayment divides amount into the provider share and the platform fee.
// The fee truncates toward zero and the provider receives the remainder, so
// share + fee always equals amount.
func splitPayment(amount *big.Int, feeBps uint32) (share, fee *big.Int, err error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, fmt.Errorf("%w: amount must be non-negative", ErrInvalidPrice)
	}
	if feeBps > MaxFeeBps {
		return nil, nil, fmt.Errorf("%w: %d basis points", ErrInvalidFee, feeBps)
	}
	total, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, nil, fmt.Errorf("%w: amount exceeds %d bits", ErrInvalidPrice, maxAmountBits)
	}
	platformFee, overflow := new(uint256.Int).MulDivOverflow(total, uint256.NewInt(uint64(feeBps)), bpsDenominator)
	if overflow {
		return nil, nil, fmt.Errorf("%w: fee overflow", ErrInvalidFee)
	}
	providerShare := new(uint256.Int).Sub(total, platformFee)
	return providerShare.ToBig(), platformFee.ToBig(), nil
}
