// Package postgres implements the integrations interfaces on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/pkg/codec"
	"github.com/TFMV/kirby/pkg/core"
)

// Ensure Postgres implements Database.
var _ integrations.Database = (*Postgres)(nil)

// Ensure pgConn implements Connection.
var _ integrations.Connection = (*pgConn)(nil)

// Postgres manages a pool of connections to one PostgreSQL endpoint.
// Use NewPostgres(...) to construct.
type Postgres struct {
	pool *pgxpool.Pool
	opts integrations.Options
}

// pgConn is one acquired pool connection.
type pgConn struct {
	parent *Postgres
	conn   *pgxpool.Conn
}

// pgTx is a transaction opened on a pgConn.
type pgTx struct {
	schema string
	tx     pgx.Tx
}

// NewPostgres creates a new Postgres instance. The pool connects lazily.
func NewPostgres(options ...integrations.Option) (*Postgres, error) {
	opts := integrations.Options{Name: "postgres"}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s connection string: %w", opts.Name, err)
	}
	// Simple protocol keeps every result column in text format, which json
	// columns rely on.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(opts.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating %s pool: %w", opts.Name, err)
	}

	return &Postgres{pool: pool, opts: opts}, nil
}

// Name returns the endpoint name.
func (p *Postgres) Name() string {
	return p.opts.Name
}

// OpenConnection acquires a connection and runs a liveness round-trip on it.
func (p *Postgres) OpenConnection(ctx context.Context) (integrations.Connection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s connection: %w", p.opts.Name, err)
	}

	var now pgtype.Timestamptz
	if err := conn.QueryRow(ctx, pingSQL).Scan(&now); err != nil {
		conn.Release()
		return nil, fmt.Errorf("%s liveness check failed: %w", p.opts.Name, err)
	}

	return &pgConn{parent: p, conn: conn}, nil
}

// Close closes the pool and all of its connections.
func (p *Postgres) Close() {
	p.pool.Close()
}

// ConnCount returns the current number of acquired connections.
func (p *Postgres) ConnCount() int {
	return int(p.pool.Stat().AcquiredConns())
}

// Connection methods

func (c *pgConn) Name() string {
	return c.parent.opts.Name
}

func (c *pgConn) TableExists(ctx context.Context, table string) (bool, error) {
	var one int
	err := c.conn.QueryRow(ctx, tableExistsSQL, c.parent.opts.Schema, table).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up table %q: %w", table, err)
	}
	return true, nil
}

func (c *pgConn) CountKeys(ctx context.Context, table, key string, ids []string) (int64, error) {
	var n int64
	if err := c.conn.QueryRow(ctx, countSQL(c.parent.opts.Schema, table, key, ids)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %q: %w", table, err)
	}
	return n, nil
}

func (c *pgConn) ExistingKeys(ctx context.Context, table, key string, ids []string) ([]string, error) {
	rows, err := c.conn.Query(ctx, existingSQL(c.parent.opts.Schema, table, key, ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query keys in %q: %w", table, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read keys in %q: %w", table, err)
	}
	return keys, nil
}

func (c *pgConn) FetchRows(ctx context.Context, table, key string, ids []string) (*core.RowSet, error) {
	rows, err := c.conn.Query(ctx, selectSQL(c.parent.opts.Schema, table, key, ids))
	if err != nil {
		return nil, fmt.Errorf("failed to select rows from %q: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	typeMap := c.conn.Conn().TypeMap()
	rs := &core.RowSet{Table: table, Columns: make([]core.Column, len(fields))}
	arrays := make([]bool, len(fields))
	for i, f := range fields {
		rs.Columns[i] = core.Column{
			Name: f.Name,
			JSON: f.DataTypeOID == pgtype.JSONOID || f.DataTypeOID == pgtype.JSONBOID,
		}
		if typ, ok := typeMap.TypeForOID(f.DataTypeOID); ok {
			_, arrays[i] = typ.Codec.(*pgtype.ArrayCodec)
		}
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to decode row from %q: %w", table, err)
		}
		raw := rows.RawValues()

		row := make(core.Row, len(values))
		for i, v := range values {
			if rs.Columns[i].JSON {
				// json arrays would otherwise decode as SQL arrays.
				if raw[i] == nil {
					row[i] = codec.NullValue()
				} else {
					row[i] = codec.TextValue(string(raw[i]))
				}
				continue
			}
			if arrays[i] {
				row[i], err = arrayValue(raw[i], v)
			} else {
				row[i], err = codec.FromAny(v)
			}
			if err != nil {
				return nil, fmt.Errorf("column %q of %q: %w", fields[i].Name, table, err)
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows from %q: %w", table, err)
	}
	return rs, nil
}

// arrayValue keeps arrays pgx would flatten in their text form: nested
// dimensions ("{{...}}") and explicit bounds ("[0:1]={...}").
func arrayValue(raw []byte, decoded any) (codec.Value, error) {
	if raw == nil {
		return codec.NullValue(), nil
	}
	if len(raw) > 1 && (raw[0] == '[' || raw[1] == '{') {
		return codec.TextValue(string(raw)), nil
	}
	return codec.FromAny(decoded)
}

func (c *pgConn) Begin(ctx context.Context) (integrations.Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s transaction: %w", c.Name(), err)
	}
	return &pgTx{schema: c.parent.opts.Schema, tx: tx}, nil
}

// Close returns the connection to the pool. A connection still inside a
// transaction is closed instead, so no other request can inherit it.
func (c *pgConn) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil

	if status := conn.Conn().PgConn().TxStatus(); status != 'I' {
		raw := conn.Hijack()
		if err := raw.Close(ctx); err != nil {
			return fmt.Errorf("failed to close %s connection: %w", c.Name(), err)
		}
		return fmt.Errorf("%s connection released with transaction status %q", c.Name(), status)
	}
	conn.Release()
	return nil
}

// Tx methods

func (t *pgTx) InsertRows(ctx context.Context, rows *core.RowSet) (int64, error) {
	sql, err := insertSQL(t.schema, rows)
	if err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %q: %w", rows.Table, err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeleteKeys(ctx context.Context, table, key string, ids []string) (int64, error) {
	tag, err := t.tx.Exec(ctx, deleteSQL(t.schema, table, key, ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %q: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
