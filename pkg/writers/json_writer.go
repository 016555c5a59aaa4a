package writers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
)

// JSONWriter writes newline-delimited JSON, one object per row.
type JSONWriter struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewJSONWriter creates the file at config.Path.
func NewJSONWriter(config Config) (Writer, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for JSON writer")
	}
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file: %w", err)
	}
	buf := bufio.NewWriter(file)
	return &JSONWriter{file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Write encodes every row of record. Nulls become JSON null.
func (w *JSONWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields := record.Schema().Fields()
	for i := 0; i < int(record.NumRows()); i++ {
		row := make(map[string]any, len(fields))
		for j, field := range fields {
			col := record.Column(j)
			if col.IsNull(i) {
				row[field.Name] = nil
				continue
			}
			row[field.Name] = col.GetOneForMarshal(i)
		}
		if err := w.enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *JSONWriter) Close() error {
	err := w.buf.Flush()
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
