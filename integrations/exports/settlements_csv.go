package exports

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// SettlementsCSV builds a CSV export for the supplied settlements and returns
// the serialised data alongside a SHA-256 checksum of the payload.
func SettlementsCSV(rows []Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"order_id", "gig_id", "client", "provider", "asset", "amount", "provider_share", "platform_fee", "created_at", "released_at"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatUint(row.OrderID, 10),
			strconv.FormatUint(row.GigID, 10),
			row.Client,
			row.Provider,
			row.Asset,
			row.Amount,
			row.ProviderShare,
			row.PlatformFee,
			row.CreatedAt.Format(time.RFC3339),
			row.ReleasedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
