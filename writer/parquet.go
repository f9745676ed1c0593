package writer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pwriter "github.com/xitongsys/parquet-go/writer"

	"quotelens/logger"
	"quotelens/models"
)

// ParquetDetailFile is the columnar twin of the detail CSV, for runs feeding
// a warehouse rather than a spreadsheet.
const ParquetDetailFile = "quoting_detail.parquet"

// detailRecord is the parquet schema for one normalized order.
type detailRecord struct {
	Market      string  `parquet:"name=market, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side        string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price       float64 `parquet:"name=price, type=DOUBLE"`
	Size        float64 `parquet:"name=size, type=DOUBLE"`
	Notional    float64 `parquet:"name=notional, type=DOUBLE"`
	DistanceBps float64 `parquet:"name=distance_bps, type=DOUBLE"`
	OrderID     int64   `parquet:"name=order_id, type=INT64"`
}

// memoryParquetFile implements the ParquetFile interface over a byte buffer
// so files can be assembled without touching disk until the atomic rename.
type memoryParquetFile struct {
	buffer *bytes.Buffer
}

func newMemoryParquetFile() *memoryParquetFile {
	return &memoryParquetFile{buffer: &bytes.Buffer{}}
}

func (m *memoryParquetFile) Create(name string) (source.ParquetFile, error) { return m, nil }
func (m *memoryParquetFile) Open(name string) (source.ParquetFile, error)  { return m, nil }

func (m *memoryParquetFile) Seek(offset int64, whence int) (int64, error) {
	// Write-only usage; the writer never seeks backwards.
	return int64(m.buffer.Len()), nil
}

func (m *memoryParquetFile) Read(b []byte) (int, error)  { return m.buffer.Read(b) }
func (m *memoryParquetFile) Write(b []byte) (int, error) { return m.buffer.Write(b) }
func (m *memoryParquetFile) Close() error                { return nil }

func compressionCodec(name string) parquet.CompressionCodec {
	switch name {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "lzo":
		return parquet.CompressionCodec_LZO
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// EncodeDetailParquet renders the normalized orders as an in-memory parquet
// file in report order.
func EncodeDetailParquet(orders []models.NormalizedOrder, compression string) ([]byte, error) {
	fw := newMemoryParquetFile()

	pw, err := pwriter.NewParquetWriter(fw, new(detailRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, o := range detailOrder(orders) {
		record := detailRecord{
			Market:      o.Market,
			Side:        string(o.Side),
			Price:       o.Price.InexactFloat64(),
			Size:        o.Size.InexactFloat64(),
			Notional:    o.Notional.InexactFloat64(),
			DistanceBps: o.DistanceBps.InexactFloat64(),
			OrderID:     o.OrderID,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.buffer.Bytes(), nil
}

// WriteDetailParquet writes the parquet detail table with the same atomic
// temp-then-rename discipline as the CSV tables.
func WriteDetailParquet(dir string, orders []models.NormalizedOrder, compression string) error {
	path := filepath.Join(dir, ParquetDetailFile)

	data, err := EncodeDetailParquet(orders, compression)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", ParquetDetailFile, uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}

	logger.IncrementRowsWritten(ParquetDetailFile, len(orders))
	logger.GetLogger().WithComponent("writer").WithFields(logger.Fields{
		"table":       ParquetDetailFile,
		"rows":        len(orders),
		"file_size":   len(data),
		"compression": compression,
	}).Debug("parquet table written")

	return nil
}
