package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/integrations/postgres"
	"github.com/TFMV/kirby/migration"
	"github.com/TFMV/kirby/pkg/core"
)

// These tests need two reachable databases, for example:
//
//	KIRBY_TEST_MASTER_DSN=postgres://postgres@localhost:5432/master
//	KIRBY_TEST_SLAVE_DSN=postgres://postgres@localhost:5432/slave

const ordersDDL = `CREATE TABLE %s (
	id         text PRIMARY KEY,
	total      numeric(10,2),
	qty        integer,
	paid       boolean,
	created_at timestamptz,
	tags       text[],
	payload    jsonb,
	note       text,
	grid       integer[][]
)`

func liveDSNs(t *testing.T) (string, string) {
	t.Helper()
	master, slave := os.Getenv("KIRBY_TEST_MASTER_DSN"), os.Getenv("KIRBY_TEST_SLAVE_DSN")
	if master == "" || slave == "" {
		t.Skip("KIRBY_TEST_MASTER_DSN and KIRBY_TEST_SLAVE_DSN are not set")
	}
	return master, slave
}

func execAll(t *testing.T, ctx context.Context, dsn string, stmts ...string) {
	t.Helper()
	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)
	for _, stmt := range stmts {
		_, err := conn.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
}

func keys(t *testing.T, ctx context.Context, dsn, table string) []string {
	t.Helper()
	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, pgx.Identifier{table}.Sanitize()))
	require.NoError(t, err)
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	require.NoError(t, err)
	return ids
}

func setupOrders(t *testing.T, ctx context.Context, masterDSN, slaveDSN string) string {
	t.Helper()
	table := "kirby_orders_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	ident := pgx.Identifier{table}.Sanitize()

	execAll(t, ctx, masterDSN,
		fmt.Sprintf(ordersDDL, ident),
		fmt.Sprintf(`INSERT INTO %s VALUES
			('A', 10.50, 1, true,  '2024-03-01T12:30:00Z', '{x,"y z"}', '{"k": [1, 2]}', 'it''s', '{{1,2},{3,4}}'),
			('B', 20.00, 2, false, '2024-03-02T08:00:00Z', '{}', '[1, "two"]', NULL, '[0:1]={7,8}'),
			('C', NULL,  3, NULL,  NULL, NULL, NULL, 'back\slash', NULL)`, ident))
	execAll(t, ctx, slaveDSN, fmt.Sprintf(ordersDDL, ident))

	t.Cleanup(func() {
		drop := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, ident)
		execAll(t, context.Background(), masterDSN, drop)
		execAll(t, context.Background(), slaveDSN, drop)
	})
	return table
}

func newLiveMigrator(t *testing.T, ctx context.Context, masterDSN, slaveDSN string) *migration.Migrator {
	t.Helper()
	master, err := postgres.NewPostgres(integrations.WithName("master"), integrations.WithDSN(masterDSN), integrations.WithContext(ctx))
	require.NoError(t, err)
	slave, err := postgres.NewPostgres(integrations.WithName("slave"), integrations.WithDSN(slaveDSN), integrations.WithContext(ctx))
	require.NoError(t, err)
	pair := integrations.NewDatabasePair(master, slave)
	t.Cleanup(pair.Close)
	return migration.NewMigrator(pair, nil)
}

func TestLiveMoveAndRerun(t *testing.T) {
	masterDSN, slaveDSN := liveDSNs(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table := setupOrders(t, ctx, masterDSN, slaveDSN)
	m := newLiveMigrator(t, ctx, masterDSN, slaveDSN)

	req, err := core.NewMigrationRequest(table, []string{"A", "B", "C"}, false, true)
	require.NoError(t, err)
	result, err := m.Migrate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)

	assert.Empty(t, keys(t, ctx, masterDSN, table))
	assert.Equal(t, []string{"A", "B", "C"}, keys(t, ctx, slaveDSN, table))

	conn, err := pgx.Connect(ctx, slaveDSN)
	require.NoError(t, err)
	defer conn.Close(ctx)
	var (
		total     string
		qty       int32
		paid      bool
		createdAt time.Time
		tags      []string
		payload   string
		note      string
		grid      string
	)
	require.NoError(t, conn.QueryRow(ctx,
		fmt.Sprintf(`SELECT total::text, qty, paid, created_at, tags, payload::text, note, grid::text FROM %s WHERE id = 'A'`,
			pgx.Identifier{table}.Sanitize()),
	).Scan(&total, &qty, &paid, &createdAt, &tags, &payload, &note, &grid))
	assert.Equal(t, "10.50", total)
	assert.Equal(t, int32(1), qty)
	assert.True(t, paid)
	assert.True(t, createdAt.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)), createdAt)
	assert.Equal(t, []string{"x", "y z"}, tags)
	assert.JSONEq(t, `{"k": [1, 2]}`, payload)
	assert.Equal(t, "it's", note)
	assert.Equal(t, "{{1,2},{3,4}}", grid)

	var (
		bPaid *bool
		bGrid string
	)
	require.NoError(t, conn.QueryRow(ctx,
		fmt.Sprintf(`SELECT paid, grid::text FROM %s WHERE id = 'B'`, pgx.Identifier{table}.Sanitize()),
	).Scan(&bPaid, &bGrid))
	require.NotNil(t, bPaid)
	assert.False(t, *bPaid)
	assert.Equal(t, "[0:1]={7,8}", bGrid)

	_, err = m.Migrate(ctx, req)
	assert.True(t, migration.IsKind(err, migration.KindCountMismatch))
	assert.Zero(t, m.Integration.Source().ConnCount())
}

func TestLiveCloneSkipsExisting(t *testing.T) {
	masterDSN, slaveDSN := liveDSNs(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table := setupOrders(t, ctx, masterDSN, slaveDSN)
	m := newLiveMigrator(t, ctx, masterDSN, slaveDSN)

	first, err := core.NewMigrationRequest(table, []string{"B"}, true, true)
	require.NoError(t, err)
	_, err = m.Migrate(ctx, first)
	require.NoError(t, err)

	_, err = m.Migrate(ctx, first)
	assert.True(t, migration.IsKind(err, migration.KindConflict))

	all, err := core.NewMigrationRequest(table, []string{"A", "B", "C"}, true, false)
	require.NoError(t, err)
	result, err := m.Migrate(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []string{"B"}, result.Skipped)
	assert.Equal(t, []string{"A", "B", "C"}, keys(t, ctx, masterDSN, table))
	assert.Equal(t, []string{"A", "B", "C"}, keys(t, ctx, slaveDSN, table))
}

func TestLiveMissingTable(t *testing.T) {
	masterDSN, slaveDSN := liveDSNs(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m := newLiveMigrator(t, ctx, masterDSN, slaveDSN)
	req, err := core.NewMigrationRequest("kirby_no_such_table", []string{"A"}, true, true)
	require.NoError(t, err)

	_, err = m.Migrate(ctx, req)
	assert.True(t, migration.IsKind(err, migration.KindTableMissing))
}

func TestLiveUUIDKeys(t *testing.T) {
	masterDSN, slaveDSN := liveDSNs(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table := "kirby_uuid_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	ident := pgx.Identifier{table}.Sanitize()
	ddl := fmt.Sprintf(`CREATE TABLE %s (id uuid PRIMARY KEY, note text)`, ident)
	id := uuid.NewString()
	execAll(t, ctx, masterDSN, ddl, fmt.Sprintf(`INSERT INTO %s VALUES ('%s', 'first')`, ident, id))
	execAll(t, ctx, slaveDSN, ddl)
	t.Cleanup(func() {
		drop := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, ident)
		execAll(t, context.Background(), masterDSN, drop)
		execAll(t, context.Background(), slaveDSN, drop)
	})

	m := newLiveMigrator(t, ctx, masterDSN, slaveDSN)

	typo, err := core.NewMigrationRequest(table, []string{id, "not-a-uuid"}, true, true)
	require.NoError(t, err)
	_, err = m.Migrate(ctx, typo)
	var me *migration.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, migration.KindCountMismatch, me.Kind)
	assert.Equal(t, 1, me.Missing)

	req, err := core.NewMigrationRequest(table, []string{id}, true, true)
	require.NoError(t, err)
	result, err := m.Migrate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)

	_, err = m.Migrate(ctx, req)
	assert.True(t, migration.IsKind(err, migration.KindConflict), err)

	unsafe, err := core.NewMigrationRequest(table, []string{id}, true, false)
	require.NoError(t, err)
	result, err = m.Migrate(ctx, unsafe)
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.Equal(t, []string{id}, result.Skipped)
}
