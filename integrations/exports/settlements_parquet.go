package exports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Amounts are kept as decimal strings so 256-bit values survive the export.
type parquetSettlement struct {
	OrderID       int64  `parquet:"name=order_id, type=INT64"`
	GigID         int64  `parquet:"name=gig_id, type=INT64"`
	Client        string `parquet:"name=client, type=BYTE_ARRAY, convertedtype=UTF8"`
	Provider      string `parquet:"name=provider, type=BYTE_ARRAY, convertedtype=UTF8"`
	Asset         string `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount        string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProviderShare string `parquet:"name=provider_share, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlatformFee   string `parquet:"name=platform_fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt     string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	ReleasedAt    string `parquet:"name=released_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// SettlementsParquet writes the settlements as a Snappy-compressed Parquet
// file held in memory and returns it with its checksum.
func SettlementsParquet(rows []Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	fw := writerfile.NewWriterFile(buffer)
	pw, err := writer.NewParquetWriter(fw, new(parquetSettlement), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		record := &parquetSettlement{
			OrderID:       int64(row.OrderID),
			GigID:         int64(row.GigID),
			Client:        row.Client,
			Provider:      row.Provider,
			Asset:         row.Asset,
			Amount:        row.Amount,
			ProviderShare: row.ProviderShare,
			PlatformFee:   row.PlatformFee,
			CreatedAt:     row.CreatedAt.Format(time.RFC3339),
			ReleasedAt:    row.ReleasedAt.Format(time.RFC3339),
		}
		if err := pw.Write(record); err != nil {
			_ = pw.WriteStop()
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
