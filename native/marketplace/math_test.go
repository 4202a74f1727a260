package marketplace

import (
	"errors"
	"math/big"
	"testing"
)

func TestSplitPaymentExact(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	amounts := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(19),
		big.NewInt(20),
		big.NewInt(9_999),
		big.NewInt(1_000_000_007),
		oneUnit,
		maxUint256,
	}
	for _, bps := range []uint32{0, 1, DefaultFeeBps, 3_333, MaxFeeBps} {
		for _, amount := range amounts {
			share, fee, err := splitPayment(amount, bps)
			if err != nil {
				t.Fatalf("split %s at %d: %v", amount, bps, err)
			}
			if sum := new(big.Int).Add(share, fee); sum.Cmp(amount) != 0 {
				t.Fatalf("share %s + fee %s != amount %s", share, fee, amount)
			}
			want := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
			want.Quo(want, big.NewInt(10_000))
			if fee.Cmp(want) != 0 {
				t.Fatalf("fee %s, want truncated %s (amount %s, bps %d)", fee, want, amount, bps)
			}
		}
	}
}

func TestSplitPaymentDefaultRate(t *testing.T) {
	share, fee, err := splitPayment(big.NewInt(19), DefaultFeeBps)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if fee.Sign() != 0 || share.Cmp(big.NewInt(19)) != 0 {
		t.Fatalf("expected fee truncated to zero, got %s/%s", share, fee)
	}
}

func TestSplitPaymentRejectsInvalidInput(t *testing.T) {
	if _, _, err := splitPayment(big.NewInt(-1), DefaultFeeBps); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, _, err := splitPayment(new(big.Int).Lsh(big.NewInt(1), 256), DefaultFeeBps); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for oversized amount, got %v", err)
	}
	if _, _, err := splitPayment(big.NewInt(1), MaxFeeBps+1); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
}
