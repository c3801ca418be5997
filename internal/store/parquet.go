package store

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// EncodeRows serializes rows into a Snappy-compressed Parquet file. The
// schema is derived from the parquet tags of T.
func EncodeRows[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer

	w := parquet.NewGenericWriter[T](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRows reads back every row of a Parquet file written by EncodeRows.
func DecodeRows[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
