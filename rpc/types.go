package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hgigs/crypto"
	"hgigs/native/marketplace"
)

type statusJSON struct {
	Initialized bool   `json:"initialized"`
	Paused      bool   `json:"paused"`
	Owner       string `json:"owner,omitempty"`
	FeeBps      uint32 `json:"feeBps"`
	Gigs        uint64 `json:"gigs"`
	Orders      uint64 `json:"orders"`
}

type gigJSON struct {
	ID          uint64 `json:"id"`
	Provider    string `json:"provider"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Asset       string `json:"asset"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   int64  `json:"createdAt"`
}

type orderJSON struct {
	ID              uint64  `json:"id"`
	GigID           uint64  `json:"gigId"`
	Client          string  `json:"client"`
	Provider        string  `json:"provider"`
	Asset           string  `json:"asset"`
	Amount          string  `json:"amount"`
	IsPaid          bool    `json:"isPaid"`
	IsCompleted     bool    `json:"isCompleted"`
	PaymentReleased bool    `json:"paymentReleased"`
	CreatedAt       int64   `json:"createdAt"`
	ProviderShare   *string `json:"providerShare,omitempty"`
	PlatformFee     *string `json:"platformFee,omitempty"`
	ReleasedAt      *int64  `json:"releasedAt,omitempty"`
}

type balanceJSON struct {
	Account string `json:"account,omitempty"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type createGigRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Asset       string `json:"asset"`
}

type orderGigRequest struct {
	Amount *string `json:"amount"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

type feeRequest struct {
	FeeBps *uint32 `json:"feeBps"`
}

type depositRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func gigFrom(g *marketplace.Gig) gigJSON {
	return gigJSON{
		ID:          g.ID,
		Provider:    crypto.FromRaw(g.Provider).String(),
		Title:       g.Title,
		Description: g.Description,
		Price:       bigString(g.Price),
		Asset:       g.Asset,
		IsActive:    g.IsActive,
		CreatedAt:   g.CreatedAt,
	}
}

func orderFrom(o *marketplace.Order) orderJSON {
	out := orderJSON{
		ID:              o.ID,
		GigID:           o.GigID,
		Client:          crypto.FromRaw(o.Client).String(),
		Provider:        crypto.FromRaw(o.Provider).String(),
		Asset:           o.Asset,
		Amount:          bigString(o.Amount),
		IsPaid:          o.IsPaid,
		IsCompleted:     o.IsCompleted,
		PaymentReleased: o.PaymentReleased,
		CreatedAt:       o.CreatedAt,
	}
	if o.PaymentReleased {
		share := bigString(o.ProviderShare)
		fee := bigString(o.PlatformFee)
		releasedAt := o.ReleasedAt
		out.ProviderShare = &share
		out.PlatformFee = &fee
		out.ReleasedAt = &releasedAt
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseAmount accepts a base-10 string of base units.
func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return value, nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// decodeBody decodes a JSON object; an empty body leaves out untouched.
func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
