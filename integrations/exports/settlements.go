package exports

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"hgigs/crypto"
	"hgigs/native/marketplace"
)

const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// Settlement is one released order flattened for reporting.
type Settlement struct {
	OrderID       uint64
	GigID         uint64
	Client        string
	Provider      string
	Asset         string
	Amount        string
	ProviderShare string
	PlatformFee   string
	CreatedAt     time.Time
	ReleasedAt    time.Time
}

// FromOrders converts released orders into settlement rows. Orders whose
// payment has not been released are skipped.
func FromOrders(orders []*marketplace.Order) []Settlement {
	out := make([]Settlement, 0, len(orders))
	for _, order := range orders {
		if order == nil || !order.PaymentReleased {
			continue
		}
		out = append(out, Settlement{
			OrderID:       order.ID,
			GigID:         order.GigID,
			Client:        crypto.FromRaw(order.Client).String(),
			Provider:      crypto.FromRaw(order.Provider).String(),
			Asset:         order.Asset,
			Amount:        intString(order.Amount),
			ProviderShare: intString(order.ProviderShare),
			PlatformFee:   intString(order.PlatformFee),
			CreatedAt:     time.Unix(order.CreatedAt, 0).UTC(),
			ReleasedAt:    time.Unix(order.ReleasedAt, 0).UTC(),
		})
	}
	return out
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Render serialises rows in the named format and reports the payload's media
// type together with its checksum.
func Render(format string, rows []Settlement) (data []byte, sum string, contentType string, err error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		data, sum, err = SettlementsCSV(rows)
		return data, sum, "text/csv", err
	case FormatJSONL:
		data, sum, err = SettlementsJSONL(rows)
		return data, sum, "application/x-ndjson", err
	case FormatParquet:
		data, sum, err = SettlementsParquet(rows)
		return data, sum, "application/vnd.apache.parquet", err
	default:
		return nil, "", "", fmt.Errorf("exports: unsupported format %q", format)
	}
}
