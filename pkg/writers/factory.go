// Package writers persists Arrow records in the formats supported for row archives.
package writers

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
)

// Config selects a writer and its output file.
type Config struct {
	Type string
	Path string
}

// Writer receives one or more records with the same schema.
type Writer interface {
	Write(ctx context.Context, record arrow.Record) error
	Close() error
}

// Creator builds a Writer for a Config.
type Creator func(config Config) (Writer, error)

// Factory maps format names to writers.
type Factory struct {
	writers    map[string]Creator
	extensions map[string]string
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{
		writers:    make(map[string]Creator),
		extensions: make(map[string]string),
	}
}

// Register adds a format and the file extension its files use.
func (f *Factory) Register(typ, ext string, creator Creator) {
	f.writers[typ] = creator
	f.extensions[typ] = ext
}

// Create builds the writer registered for config.Type.
func (f *Factory) Create(config Config) (Writer, error) {
	creator, ok := f.writers[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported writer type: %s", config.Type)
	}
	return creator(config)
}

// Extension returns the file extension for typ.
func (f *Factory) Extension(typ string) (string, bool) {
	ext, ok := f.extensions[typ]
	return ext, ok
}

// Types lists the registered formats in sorted order.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.writers))
	for t := range f.writers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory holds the built-in formats.
var DefaultFactory = NewFactory()

func init() {
	DefaultFactory.Register("parquet", "parquet", NewParquetWriter)
	DefaultFactory.Register("arrow", "arrow", NewArrowWriter)
	DefaultFactory.Register("json", "json", NewJSONWriter)
}
