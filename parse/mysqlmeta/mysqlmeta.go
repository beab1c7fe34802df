// Package mysqlmeta загружает структуру базы MySQL из information_schema.
package mysqlmeta

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/parse/queries"
	"github.com/Feresey/relgraph/schema"
)

const queryTablesSQL = `-- list tables
SELECT
	TABLE_NAME,
	TABLE_TYPE,
	TABLE_COMMENT
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME`

const queryColumnsSQL = `-- columns of tables
SELECT
	TABLE_NAME,
	ORDINAL_POSITION,
	COLUMN_NAME,
	DATA_TYPE,
	CHARACTER_MAXIMUM_LENGTH,
	IS_NULLABLE,
	COLUMN_KEY,
	COLUMN_COMMENT
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ?`

const queryKeysSQL = `-- primary and foreign keys
SELECT
	k.CONSTRAINT_NAME,
	k.TABLE_NAME,
	k.COLUMN_NAME,
	k.REFERENCED_TABLE_SCHEMA,
	k.REFERENCED_TABLE_NAME,
	k.REFERENCED_COLUMN_NAME,
	r.DELETE_RULE,
	r.UPDATE_RULE
FROM information_schema.KEY_COLUMN_USAGE k
	LEFT JOIN information_schema.REFERENTIAL_CONSTRAINTS r
		ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA
		AND r.TABLE_NAME = k.TABLE_NAME
		AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
WHERE k.TABLE_SCHEMA = ?
	AND (k.CONSTRAINT_NAME = 'PRIMARY' OR k.REFERENCED_TABLE_NAME IS NOT NULL)
ORDER BY k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`

// Имя главного ключа в MySQL всегда одно.
const primaryKeyName = "PRIMARY"

type Loader struct {
	db  *sql.DB
	log *zap.Logger
}

func NewLoader(db *sql.DB, log *zap.Logger) *Loader {
	return &Loader{
		db:  db,
		log: log.Named("mysqlmeta"),
	}
}

type dbTable struct {
	Name    string
	Type    string
	Comment string
}

type dbColumn struct {
	Table      string
	Num        int
	Name       string
	TypeName   string
	Length     sql.NullInt64
	IsNullable string
	Key        string
	Comment    string
}

type dbKey struct {
	Name          string
	Table         string
	Column        string
	ForeignSchema sql.NullString
	ForeignTable  sql.NullString
	ForeignColumn sql.NullString
	DeleteRule    sql.NullString
	UpdateRule    sql.NullString
}

// LoadSchema загружает все таблицы базы. Таблицы других баз, на которые есть ссылки, помечаются как remote.
func (l *Loader) LoadSchema(ctx context.Context, database string) (*schema.Schema, error) {
	s := schema.New(database)

	tables, err := queryAll(ctx, l.db, func(rows *sql.Rows, v *dbTable) error {
		return rows.Scan(&v.Name, &v.Type, &v.Comment)
	}, queryTablesSQL, database)
	if err != nil {
		l.log.Error("failed to query tables", zap.Error(err))
		return nil, xerrors.Errorf("load tables: %w", err)
	}
	l.log.Debug("loaded tables", zap.Int("n", len(tables)))

	for _, dbtable := range tables {
		table := schema.NewTable(database, dbtable.Name)
		table.IsView = strings.Contains(dbtable.Type, "VIEW")
		table.Comment = dbtable.Comment
		if err := s.AddTable(table); err != nil {
			return nil, err
		}
	}

	if err := l.loadColumns(ctx, s, database, ""); err != nil {
		return nil, xerrors.Errorf("load columns: %w", err)
	}

	keys, err := queryAll(ctx, l.db, func(rows *sql.Rows, v *dbKey) error {
		return rows.Scan(
			&v.Name, &v.Table, &v.Column,
			&v.ForeignSchema, &v.ForeignTable, &v.ForeignColumn,
			&v.DeleteRule, &v.UpdateRule,
		)
	}, queryKeysSQL, database)
	if err != nil {
		l.log.Error("failed to query keys", zap.Error(err))
		return nil, xerrors.Errorf("load keys: %w", err)
	}
	l.log.Debug("loaded key columns", zap.Int("n", len(keys)))

	if err := l.makeKeys(ctx, s, keys); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, xerrors.Errorf("loaded schema: %w", err)
	}
	return s, nil
}

// loadColumns загружает колонки таблиц базы, или одной таблицы если tableName не пуст.
func (l *Loader) loadColumns(ctx context.Context, s *schema.Schema, database, tableName string) error {
	query, args := queryColumnsSQL, []any{database}
	if tableName != "" {
		query += "\n\tAND TABLE_NAME = ?"
		args = append(args, tableName)
	}
	query += "\nORDER BY TABLE_NAME, ORDINAL_POSITION"

	columns, err := queryAll(ctx, l.db, func(rows *sql.Rows, v *dbColumn) error {
		return rows.Scan(
			&v.Table, &v.Num, &v.Name, &v.TypeName,
			&v.Length, &v.IsNullable, &v.Key, &v.Comment,
		)
	}, query, args...)
	if err != nil {
		l.log.Error("failed to query columns", zap.Error(err), zap.String("database", database))
		return err
	}

	for _, dbcolumn := range columns {
		table := s.Table(database, dbcolumn.Table)
		if table == nil {
			return xerrors.Errorf("table %s.%s not found for column %q", database, dbcolumn.Table, dbcolumn.Name)
		}
		col := schema.NewColumn(dbcolumn.Name, dbcolumn.TypeName, int(dbcolumn.Length.Int64))
		col.Num = dbcolumn.Num
		col.IsNullable = dbcolumn.IsNullable == "YES"
		col.IsUnique = dbcolumn.Key == "UNI"
		col.Comment = dbcolumn.Comment
		if err := table.AddColumn(col); err != nil {
			return err
		}
	}
	return nil
}

type keyID struct {
	table string
	name  string
}

// makeKeys группирует колонки ключей по ограничениям. Строки уже упорядочены по позиции в ключе.
func (l *Loader) makeKeys(ctx context.Context, s *schema.Schema, keys []dbKey) error {
	var (
		order   []keyID
		grouped = make(map[keyID][]dbKey)
	)
	for _, k := range keys {
		id := keyID{table: k.Table, name: k.Name}
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], k)
	}

	// сначала главные ключи, чтобы внешние ключи на свою базу видели их
	for _, id := range order {
		if id.name != primaryKeyName {
			continue
		}
		table := s.Table(s.Name, id.table)
		if table == nil {
			return xerrors.Errorf("table %q not found for primary key", id.table)
		}
		cols := make([]*schema.Column, 0, len(grouped[id]))
		for _, k := range grouped[id] {
			col := table.Column(k.Column)
			if col == nil {
				return xerrors.Errorf("primary key column %q not found in table %q", k.Column, table)
			}
			cols = append(cols, col)
		}
		if err := table.SetPrimaryKey(cols...); err != nil {
			return err
		}
	}

	for _, id := range order {
		if id.name == primaryKeyName {
			continue
		}
		if err := l.makeForeignKey(ctx, s, grouped[id]); err != nil {
			return xerrors.Errorf("foreign key %q of table %q: %w", id.name, id.table, err)
		}
	}
	return nil
}

func (l *Loader) makeForeignKey(ctx context.Context, s *schema.Schema, rows []dbKey) error {
	first := rows[0]
	child := s.Table(s.Name, first.Table)
	if child == nil {
		return xerrors.Errorf("table %q not found", first.Table)
	}
	parent, err := l.parentTable(ctx, s, first.ForeignSchema.String, first.ForeignTable.String)
	if err != nil {
		return err
	}

	childCols := make([]*schema.Column, 0, len(rows))
	parentCols := make([]*schema.Column, 0, len(rows))
	for _, k := range rows {
		childCols = append(childCols, child.Column(k.Column))
		parentCols = append(parentCols, parent.Column(k.ForeignColumn.String))
	}

	fk, err := schema.NewForeignKey(
		schema.Identifier{Schema: s.Name, Name: first.Name},
		childCols, parentCols, schema.OriginDeclared)
	if err != nil {
		return err
	}
	fk.DeleteRule = parseRule(first.DeleteRule)
	fk.UpdateRule = parseRule(first.UpdateRule)
	return nil
}

// parentTable ищет родительскую таблицу. Таблицы других баз загружаются по требованию.
func (l *Loader) parentTable(ctx context.Context, s *schema.Schema, database, name string) (*schema.Table, error) {
	if database == "" {
		database = s.Name
	}
	if t := s.Table(database, name); t != nil {
		return t, nil
	}
	if strings.EqualFold(database, s.Name) {
		return nil, xerrors.Errorf("referenced table %s.%s not found", database, name)
	}

	l.log.Debug("load remote table", zap.String("database", database), zap.String("table", name))
	t := schema.NewTable(database, name)
	t.IsRemote = true
	if err := s.AddTable(t); err != nil {
		return nil, err
	}
	if err := l.loadColumns(ctx, s, database, name); err != nil {
		return nil, xerrors.Errorf("load columns of remote table %s.%s: %w", database, name, err)
	}
	return t, nil
}

func parseRule(rule sql.NullString) schema.Rule {
	switch r := schema.Rule(strings.ToUpper(rule.String)); r {
	case schema.RuleRestrict, schema.RuleCascade, schema.RuleSetNull, schema.RuleSetDefault:
		return r
	default:
		return schema.RuleNoAction
	}
}

func queryAll[T any](
	ctx context.Context,
	db *sql.DB,
	scan func(rows *sql.Rows, v *T) error,
	query string,
	args ...any,
) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queries.Error{
			Err:     err,
			Message: "query",
			Query:   query,
			Args:    args,
		}
	}
	defer rows.Close()

	var (
		results []T
		rowNum  int
	)
	for rows.Next() {
		rowNum++
		var value T
		if err := scan(rows, &value); err != nil {
			return nil, queries.Error{
				Err:     err,
				Message: fmt.Sprintf("scan %d", rowNum),
				Query:   query,
				Args:    args,
			}
		}
		results = append(results, value)
	}
	if err := rows.Err(); err != nil {
		return nil, queries.Error{
			Err:     err,
			Message: "read rows",
			Query:   query,
			Args:    args,
		}
	}
	return results, nil
}
