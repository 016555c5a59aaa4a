package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ReadTable loads an arrow or parquet archive into memory.
func ReadTable(ctx context.Context, mem memory.Allocator, filePath string) (arrow.Table, error) {
	switch filepath.Ext(filePath) {
	case ".parquet":
		rdr, err := file.OpenParquetFile(filePath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open parquet archive: %w", err)
		}
		defer rdr.Close()
		fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, mem)
		if err != nil {
			return nil, fmt.Errorf("failed to create arrow reader: %w", err)
		}
		return fr.ReadTable(ctx)
	case ".arrow":
		f, err := os.Open(filePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rdr, err := ipc.NewFileReader(f, ipc.WithAllocator(mem))
		if err != nil {
			return nil, fmt.Errorf("failed to open arrow archive: %w", err)
		}
		defer rdr.Close()
		records := make([]arrow.Record, 0, rdr.NumRecords())
		defer func() {
			for _, rec := range records {
				rec.Release()
			}
		}()
		for i := 0; i < rdr.NumRecords(); i++ {
			rec, err := rdr.Record(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read record %d: %w", i, err)
			}
			rec.Retain()
			records = append(records, rec)
		}
		return array.NewTableFromRecords(rdr.Schema(), records), nil
	default:
		return nil, fmt.Errorf("cannot inspect %s: only .arrow and .parquet archives are readable", filePath)
	}
}

// Print writes the schema and up to maxRows rows of table to w.
func Print(w io.Writer, table arrow.Table, maxRows int) {
	fmt.Fprintf(w, "Rows: %d\n\nSchema:\n", table.NumRows())
	for i, field := range table.Schema().Fields() {
		fmt.Fprintf(w, "  %d: %s (%s)\n", i, field.Name, field.Type)
	}
	if maxRows <= 0 {
		return
	}

	fmt.Fprintln(w, "\nRows:")
	reader := array.NewTableReader(table, int64(maxRows))
	defer reader.Release()

	printed := 0
	for reader.Next() && printed < maxRows {
		record := reader.Record()
		for i := 0; i < int(record.NumRows()) && printed < maxRows; i++ {
			fmt.Fprint(w, "  [")
			for j, col := range record.Columns() {
				if j > 0 {
					fmt.Fprint(w, ", ")
				}
				if col.IsNull(i) {
					fmt.Fprint(w, "NULL")
					continue
				}
				switch v := col.GetOneForMarshal(i).(type) {
				case json.RawMessage:
					fmt.Fprint(w, string(v))
				default:
					fmt.Fprintf(w, "%v", v)
				}
			}
			fmt.Fprintln(w, "]")
			printed++
		}
	}
}
