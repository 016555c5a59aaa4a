package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/pkg/codec"
	"github.com/TFMV/kirby/pkg/core"
)

// fakeDB is an in-memory database keyed by the "id" column.
type fakeDB struct {
	mu      sync.Mutex
	name    string
	tables  map[string]*fakeTable
	failOn  map[string]error
	open    int
	closeFn func() error
}

type fakeTable struct {
	columns []core.Column
	rows    map[string]core.Row
}

func newFakeDB(name string) *fakeDB {
	return &fakeDB{name: name, tables: map[string]*fakeTable{}, failOn: map[string]error{}}
}

var ordersColumns = []core.Column{{Name: "id"}, {Name: "total"}, {Name: "paid"}, {Name: "created_at"}, {Name: "note"}, {Name: "tags"}}

// withTable creates table holding one row per id.
func (db *fakeDB) withTable(table string, ids ...string) *fakeDB {
	t := &fakeTable{columns: ordersColumns, rows: map[string]core.Row{}}
	for _, id := range ids {
		t.rows[id] = orderRow(id)
	}
	db.tables[table] = t
	return db
}

func orderRow(id string) core.Row {
	return core.Row{
		codec.TextValue(id),
		codec.IntValue(int64(len(id) * 100)),
		codec.BoolValue(true),
		codec.TimeValue(fixedTime),
		codec.NullValue(),
		codec.ArrayValue(codec.TextValue("x"), codec.TextValue(id)),
	}
}

func (db *fakeDB) fail(op string, err error) *fakeDB {
	db.failOn[op] = err
	return db
}

func (db *fakeDB) ids(table string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[table]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.rows))
	for id := range t.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (db *fakeDB) row(table, id string) core.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tables[table].rows[id]
}

func (db *fakeDB) Name() string { return db.name }

func (db *fakeDB) OpenConnection(ctx context.Context) (integrations.Connection, error) {
	if err := db.failOn["open"]; err != nil {
		return nil, err
	}
	db.mu.Lock()
	db.open++
	db.mu.Unlock()
	return &fakeConn{db: db}, nil
}

func (db *fakeDB) Close() {}

func (db *fakeDB) ConnCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.open
}

type fakeConn struct {
	db     *fakeDB
	closed bool
}

func (c *fakeConn) Name() string { return c.db.name }

func (c *fakeConn) TableExists(ctx context.Context, table string) (bool, error) {
	if err := c.db.failOn["tables"]; err != nil {
		return false, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	_, ok := c.db.tables[table]
	return ok, nil
}

func (c *fakeConn) CountKeys(ctx context.Context, table, key string, ids []string) (int64, error) {
	if err := c.db.failOn["count"]; err != nil {
		return 0, err
	}
	existing, err := c.ExistingKeys(ctx, table, key, ids)
	return int64(len(existing)), err
}

func (c *fakeConn) ExistingKeys(ctx context.Context, table, key string, ids []string) ([]string, error) {
	if err := c.db.failOn["existing"]; err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	t := c.db.tables[table]
	var out []string
	for _, id := range ids {
		if _, ok := t.rows[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *fakeConn) FetchRows(ctx context.Context, table, key string, ids []string) (*core.RowSet, error) {
	if err := c.db.failOn["fetch"]; err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	t := c.db.tables[table]
	rs := &core.RowSet{Table: table, Columns: t.columns}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		if row, ok := t.rows[id]; ok {
			rs.Rows = append(rs.Rows, row)
		}
	}
	return rs, nil
}

func (c *fakeConn) Begin(ctx context.Context) (integrations.Tx, error) {
	if err := c.db.failOn["begin"]; err != nil {
		return nil, err
	}
	return &fakeTx{db: c.db}, nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.db.mu.Lock()
	c.db.open--
	c.db.mu.Unlock()
	c.closed = true
	if c.db.closeFn != nil {
		return c.db.closeFn()
	}
	return nil
}

// fakeTx buffers writes until Commit.
type fakeTx struct {
	db       *fakeDB
	table    string
	inserts  []core.Row
	deletes  []string
	done     bool
	rollback int
}

func (tx *fakeTx) InsertRows(ctx context.Context, rows *core.RowSet) (int64, error) {
	if err := tx.db.failOn["insert"]; err != nil {
		return 0, err
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	t := tx.db.tables[rows.Table]
	for _, row := range rows.Rows {
		if _, dup := t.rows[row[0].Text]; dup {
			return 0, fmt.Errorf("duplicate key value %q", row[0].Text)
		}
	}
	tx.table = rows.Table
	tx.inserts = append(tx.inserts, rows.Rows...)
	return int64(len(rows.Rows)), nil
}

func (tx *fakeTx) DeleteKeys(ctx context.Context, table, key string, ids []string) (int64, error) {
	if err := tx.db.failOn["delete"]; err != nil {
		return 0, err
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.table = table
	var n int64
	for _, id := range ids {
		if _, ok := tx.db.tables[table].rows[id]; ok {
			tx.deletes = append(tx.deletes, id)
			n++
		}
	}
	return n, nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if err := tx.db.failOn["commit"]; err != nil {
		tx.done = true
		return err
	}
	if tx.done {
		return errors.New("tx closed")
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.table != "" {
		t := tx.db.tables[tx.table]
		for _, row := range tx.inserts {
			t.rows[row[0].Text] = row
		}
		for _, id := range tx.deletes {
			delete(t.rows, id)
		}
	}
	tx.done = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.rollback++
	tx.done = true
	return nil
}

// fakeArchiver records archived row sets.
type fakeArchiver struct {
	err  error
	runs []string
	rows int
}

func (a *fakeArchiver) Archive(ctx context.Context, runID string, rows *core.RowSet) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.runs = append(a.runs, runID)
	a.rows += rows.Len()
	return "mem://" + runID, nil
}
