package queries

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

type Queries struct{}

type Table struct {
	OID     int
	Schema  string
	Table   string
	Kind    string
	Comment sql.NullString
}

// IsView relkind представления.
func (t Table) IsView() bool { return t.Kind == "v" || t.Kind == "m" }

type TablesPattern struct {
	Schema string
	Tables string
}

type queryBuiler struct {
	queries []string
	argnum  int
	args    []any
}

func (q *queryBuiler) NextArgNum() int {
	q.argnum++
	return q.argnum
}

func (q *queryBuiler) Append(query string, args ...any) {
	q.queries = append(q.queries, query)
	q.args = append(q.args, args...)
}

func scanTable(scan pgx.Rows, v *Table) error {
	return scan.Scan(
		&v.OID,
		&v.Schema,
		&v.Table,
		&v.Kind,
		&v.Comment,
	)
}

// Tables ищет таблицы и представления по шаблонам LIKE.
func (Queries) Tables(ctx context.Context, exec Executor, p []TablesPattern) ([]Table, error) {
	const queryTablesSQL = `-- list tables
SELECT
	c.oid::INT AS table_oid,
	ns.nspname AS schema_name,
	c.relname AS table_name,
	c.relkind::TEXT AS table_kind,
	obj_description(c.oid, 'pg_class') AS table_comment
FROM
	pg_class c
	JOIN pg_namespace ns ON ns.oid = c.relnamespace
WHERE
	c.relkind IN ('r', 'p', 'v', 'm', 'f')
	AND NOT c.relispartition`

	if len(p) == 0 {
		return nil, nil
	}

	var qb queryBuiler

	for _, pattern := range p {
		args := []any{pattern.Schema}
		paramIndex := qb.NextArgNum()
		schema := fmt.Sprintf("ns.nspname LIKE $%d", paramIndex)
		if pattern.Tables != "" {
			args = append(args, pattern.Tables)
			paramIndex := qb.NextArgNum()
			schema = fmt.Sprintf("%s AND c.relname LIKE $%d", schema, paramIndex)
		}

		qb.Append("("+schema+")", args...)
	}

	return QueryAll(
		ctx, exec,
		scanTable,
		fmt.Sprintf(
			"%s AND (%s) ORDER BY c.oid ASC",
			queryTablesSQL,
			strings.Join(qb.queries, " OR "),
		),
		qb.args...)
}

//go:embed sql/tables_by_oid.sql
var queryTablesByOIDSQL string

// TablesByOID загружает таблицы, на которые ссылаются найденные таблицы.
func (Queries) TablesByOID(ctx context.Context, exec Executor, tableOIDs []int) ([]Table, error) {
	return QueryAll(ctx, exec, scanTable, queryTablesByOIDSQL, tableOIDs)
}

//go:embed sql/columns.sql
var queryColumnsSQL string

type Column struct {
	TableOID   int
	ColumnNum  int
	ColumnName string
	TypeName   string

	CharacterMaxLength sql.NullInt32
	IsNullable         bool
	Comment            sql.NullString
}

func (Queries) Columns(ctx context.Context, exec Executor, tableOIDs []int) ([]Column, error) {
	return QueryAll(
		ctx, exec,
		func(scan pgx.Rows, v *Column) error {
			return scan.Scan(
				&v.TableOID,
				&v.ColumnNum,
				&v.ColumnName,
				&v.TypeName,

				&v.CharacterMaxLength,
				&v.IsNullable,
				&v.Comment,
			)
		},
		queryColumnsSQL, tableOIDs)
}

//go:embed sql/constraints.sql
var queryTableConstraintsSQL string

type Constraint struct {
	SchemaName string

	ConstraintOID  int
	ConstraintName string
	ConstraintType string

	TableOID int
	Columns  []string

	ForeignTableOID sql.NullInt32
	ForeignColumns  []string

	// Значения pg_constraint.confdeltype и confupdtype
	DeleteRule string
	UpdateRule string

	// pg_constraint.conparentid, не ноль у копий ключа на партициях
	ParentOID int
}

func (Queries) Constraints(
	ctx context.Context,
	exec Executor,
	tableOIDs []int,
) ([]Constraint, error) {
	return QueryAll(
		ctx, exec,
		func(scan pgx.Rows, v *Constraint) error {
			return scan.Scan(
				&v.SchemaName,

				&v.ConstraintOID,
				&v.ConstraintName,
				&v.ConstraintType,

				&v.TableOID,
				&v.Columns,

				&v.ForeignTableOID,
				&v.ForeignColumns,

				&v.DeleteRule,
				&v.UpdateRule,

				&v.ParentOID,
			)
		},
		queryTableConstraintsSQL, tableOIDs)
}
