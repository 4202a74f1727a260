package exports

import (
	"bytes"
	"encoding/json"
	"time"
)

type settlementJSON struct {
	OrderID       uint64 `json:"orderId"`
	GigID         uint64 `json:"gigId"`
	Client        string `json:"client"`
	Provider      string `json:"provider"`
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	ProviderShare string `json:"providerShare"`
	PlatformFee   string `json:"platformFee"`
	CreatedAt     string `json:"createdAt"`
	ReleasedAt    string `json:"releasedAt"`
}

// SettlementsJSONL builds a JSON Lines export for the supplied settlements and
// returns the serialised payload alongside a checksum.
func SettlementsJSONL(rows []Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		payload := settlementJSON{
			OrderID:       row.OrderID,
			GigID:         row.GigID,
			Client:        row.Client,
			Provider:      row.Provider,
			Asset:         row.Asset,
			Amount:        row.Amount,
			ProviderShare: row.ProviderShare,
			PlatformFee:   row.PlatformFee,
			CreatedAt:     row.CreatedAt.Format(time.RFC3339),
			ReleasedAt:    row.ReleasedAt.Format(time.RFC3339),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
