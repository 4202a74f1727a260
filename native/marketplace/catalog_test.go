package marketplace

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"hgigs/core/events"
)

func TestCreateGigAssignsSequentialIDs(t *testing.T) {
	h := newHarness(t)
	for want := uint64(1); want <= 3; want++ {
		if got := h.createGig(t, oneUnit); got != want {
			t.Fatalf("expected gig id %d, got %d", want, got)
		}
	}
	gig, err := h.engine.GetGig(2)
	if err != nil {
		t.Fatalf("get gig: %v", err)
	}
	if gig.Provider != providerAddr || !gig.IsActive || gig.Asset != NativeAsset || gig.Price.Cmp(oneUnit) != 0 {
		t.Fatalf("unexpected gig %+v", gig)
	}
	evt := events.Payload(h.recorder.Events()[len(h.recorder.Types())-1])
	if evt.Type != EventTypeGigCreated || evt.Attributes["gigId"] != "3" || evt.Attributes["price"] != oneUnit.String() {
		t.Fatalf("unexpected gig event %+v", evt)
	}
}

func TestCreateGigValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name        string
		title       string
		description string
		price       *big.Int
		asset       string
		want        error
	}{
		{name: "negative price", title: "t", description: "d", price: big.NewInt(-1), want: ErrInvalidPrice},
		{name: "nil price", title: "t", description: "d", price: nil, want: ErrInvalidPrice},
		{name: "oversized price", title: "t", description: "d", price: new(big.Int).Lsh(big.NewInt(1), 256), want: ErrInvalidPrice},
		{name: "blank title", title: "   ", description: "d", price: big.NewInt(1), want: ErrInvalidInput},
		{name: "blank description", title: "t", description: "", price: big.NewInt(1), want: ErrInvalidInput},
		{name: "long title", title: strings.Repeat("x", maxTitleLength+1), description: "d", price: big.NewInt(1), want: ErrInvalidInput},
		{name: "bad asset", title: "t", description: "d", price: big.NewInt(1), asset: "btc", want: ErrInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.CreateGig(h.ctx, providerAddr, tc.title, tc.description, tc.price, tc.asset)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if root, _ := h.engine.Root(); root.GigSeq != 0 {
		t.Fatalf("rejected gigs consumed ids")
	}
}

func TestCreateGigNormalizesText(t *testing.T) {
	h := newHarness(t)
	// "e" followed by a combining acute accent composes to U+00E9 under NFC.
	id, err := h.engine.CreateGig(h.ctx, providerAddr, "  Cafe\u0301 menu  ", "Design", big.NewInt(1), "token:USDC")
	if err != nil {
		t.Fatalf("create gig: %v", err)
	}
	gig, err := h.engine.GetGig(id)
	if err != nil {
		t.Fatalf("get gig: %v", err)
	}
	if gig.Title != "Caf\u00e9 menu" {
		t.Fatalf("title not normalized: %q", gig.Title)
	}
	if gig.Asset != "token:usdc" {
		t.Fatalf("asset not normalized: %q", gig.Asset)
	}
}

func TestPriceIsCopiedIntoOrder(t *testing.T) {
	h := newHarness(t)
	price := big.NewInt(1234)
	gigID := h.createGig(t, price)
	price.SetInt64(1)
	gig, _ := h.engine.GetGig(gigID)
	if gig.Price.Cmp(big.NewInt(1234)) != 0 {
		t.Fatalf("gig price aliased caller value: %s", gig.Price)
	}
	orderID := h.openOrder(t, clientA, gigID)
	order := mustOrder(t, h.engine, orderID)
	if order.Amount.Cmp(gig.Price) != 0 || order.Provider != gig.Provider || order.GigID != gigID {
		t.Fatalf("order did not copy gig terms: %+v", order)
	}
}

func TestDeactivateGigEmitsOnce(t *testing.T) {
	h := newHarness(t)
	gigID := h.createGig(t, oneUnit)
	for i := 0; i < 2; i++ {
		if err := h.engine.DeactivateGig(h.ctx, providerAddr, gigID); err != nil {
			t.Fatalf("deactivate %d: %v", i, err)
		}
	}
	count := 0
	for _, typ := range h.recorder.Types() {
		if typ == EventTypeGigDeactivated {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one deactivation event, got %d", count)
	}
	if _, err := h.engine.GetGig(gigID + 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNormalizeAsset(t *testing.T) {
	tests := map[string]string{
		"":            NativeAsset,
		"native":      NativeAsset,
		" NATIVE ":    NativeAsset,
		"token:USDC":  "token:usdc",
		"TOKEN:0.0.1": "token:0.0.1",
	}
	for in, want := range tests {
		got, err := NormalizeAsset(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeAsset(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"token:", "token:a b", "hbar", fmt.Sprintf("token:%s", strings.Repeat("a", maxTokenIDLength+1))} {
		if _, err := NormalizeAsset(bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("NormalizeAsset(%q) expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestCode(t *testing.T) {
	tests := map[error]string{
		nil:                                   "",
		fmt.Errorf("%w: x", ErrIncorrectAmount): "INCORRECT_AMOUNT",
		ErrPaused:                             "PAUSED",
		ErrInsufficientFunds:                  "INSUFFICIENT_FUNDS",
		errors.New("boom"):                    "INTERNAL",
	}
	for err, want := range tests {
		if got := Code(err); got != want {
			t.Fatalf("Code(%v) = %q, want %q", err, got, want)
		}
	}
}
