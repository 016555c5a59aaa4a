// Package integrations provides a common interface for the databases rows are
// migrated between.
package integrations

import (
	"context"

	"github.com/TFMV/kirby/pkg/core"
)

// Options define the configuration for opening a database endpoint.
type Options struct {
	// Name identifies the endpoint in logs and errors ("master", "slave").
	Name string

	// DSN is the connection string.
	DSN string

	// Schema restricts table lookups; "" means the connection's current_schema().
	Schema string

	// MaxConns caps the pool size; 0 keeps the driver default.
	MaxConns int32

	// Context for new database/connection usage
	Context context.Context
}

// Option is a functional config approach
type Option func(*Options)

// WithName sets the endpoint name.
func WithName(n string) Option {
	return func(o *Options) {
		o.Name = n
	}
}

// WithDSN sets the connection string.
func WithDSN(dsn string) Option {
	return func(o *Options) {
		o.DSN = dsn
	}
}

// WithSchema sets the schema tables are looked up in.
func WithSchema(s string) Option {
	return func(o *Options) {
		o.Schema = s
	}
}

// WithMaxConns caps the number of pooled connections.
func WithMaxConns(n int32) Option {
	return func(o *Options) {
		o.MaxConns = n
	}
}

// WithContext sets a custom Context for DB usage.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// Database represents a pool of connections to one endpoint.
type Database interface {
	// Name returns the endpoint name.
	Name() string
	// OpenConnection acquires a connection and checks that it is alive.
	OpenConnection(ctx context.Context) (Connection, error)
	// Close closes the database and all its connections
	Close()
	// ConnCount returns number of acquired connections
	ConnCount() int
}

// Connection is one live session against an endpoint.
type Connection interface {
	// Name returns the endpoint name.
	Name() string
	// TableExists reports whether table is a base table in the default schema.
	TableExists(ctx context.Context, table string) (bool, error)
	// CountKeys counts rows whose key column is one of ids.
	CountKeys(ctx context.Context, table, key string, ids []string) (int64, error)
	// ExistingKeys returns the ids present in the key column.
	ExistingKeys(ctx context.Context, table, key string, ids []string) ([]string, error)
	// FetchRows reads every column of the rows whose key is one of ids.
	FetchRows(ctx context.Context, table, key string, ids []string) (*core.RowSet, error)
	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Tx is a transaction on one Connection.
type Tx interface {
	// InsertRows inserts every row of rows and returns the number inserted.
	InsertRows(ctx context.Context, rows *core.RowSet) (int64, error)
	// DeleteKeys deletes rows whose key is one of ids and returns the number deleted.
	DeleteKeys(ctx context.Context, table, key string, ids []string) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Integration represents the pair of databases rows move between.
type Integration interface {
	// Source returns the master database rows are read from.
	Source() Database
	// Destination returns the slave database rows are written to.
	Destination() Database
}

// DatabasePair implements Integration for any two databases
type DatabasePair struct {
	source      Database
	destination Database
}

func NewDatabasePair(source, destination Database) *DatabasePair {
	return &DatabasePair{
		source:      source,
		destination: destination,
	}
}

func (p *DatabasePair) Source() Database {
	return p.source
}

func (p *DatabasePair) Destination() Database {
	return p.destination
}

// ConnCount returns the acquired connections across both databases.
func (p *DatabasePair) ConnCount() int {
	return p.source.ConnCount() + p.destination.ConnCount()
}

// Close closes both databases.
func (p *DatabasePair) Close() {
	p.source.Close()
	p.destination.Close()
}
