package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetWriter writes a Snappy-compressed Parquet file.
type ParquetWriter struct {
	writer *pqarrow.FileWriter
	file   *os.File
}

// NewParquetWriter creates the file at config.Path.
func NewParquetWriter(config Config) (Writer, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet writer")
	}
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet file: %w", err)
	}
	return &ParquetWriter{file: file}, nil
}

// Write appends record as a row group.
func (w *ParquetWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.writer == nil {
		props := parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Snappy),
			parquet.WithDictionaryDefault(false),
		)
		// Keep the Arrow schema in the file so timestamps and lists read back
		// with their original types.
		arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
		writer, err := pqarrow.NewFileWriter(record.Schema(), w.file, props, arrowProps)
		if err != nil {
			return fmt.Errorf("failed to create Parquet writer: %w", err)
		}
		w.writer = writer
	}
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes the footer. pqarrow closes the underlying file itself once
// a writer exists.
func (w *ParquetWriter) Close() error {
	if w.writer != nil {
		return w.writer.Close()
	}
	return w.file.Close()
}
