package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordExecutor struct {
	query string
	args  []any
	err   error
}

func (r *recordExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	r.query = query
	r.args = args
	return nil, r.err
}

func TestTablesQuery(t *testing.T) {
	errConn := errors.New("connection refused")
	exec := &recordExecutor{err: errConn}

	_, err := Queries{}.Tables(context.Background(), exec, []TablesPattern{
		{Schema: "public"},
		{Schema: "audit", Tables: "log%"},
	})
	require.ErrorIs(t, err, errConn)

	var qerr Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "query", qerr.Message)
	assert.Contains(t, exec.query, "AND ((ns.nspname LIKE $1) OR (ns.nspname LIKE $2 AND c.relname LIKE $3))")
	assert.Equal(t, []any{"public", "audit", "log%"}, exec.args)

	pretty := qerr.Pretty()
	assert.Contains(t, pretty, "-- list tables")
	assert.Contains(t, pretty, `"log%"`)
}

func TestTablesNoPatterns(t *testing.T) {
	exec := &recordExecutor{}
	tables, err := Queries{}.Tables(context.Background(), exec, nil)
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.Empty(t, exec.query)
}

func TestCatalogQueriesEmbedded(t *testing.T) {
	for name, q := range map[string]string{
		"tables by oid": queryTablesByOIDSQL,
		"columns":       queryColumnsSQL,
		"constraints":   queryTableConstraintsSQL,
	} {
		assert.Contains(t, q, "$1::INT[]", name)
	}
}

func TestConstraintsSkipPartitionCopies(t *testing.T) {
	assert.Contains(t, queryTableConstraintsSQL, "c.conparentid = 0")
	assert.Contains(t, queryTableConstraintsSQL, "c.conparentid::INT AS parent_constraint_oid")
}
