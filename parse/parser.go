// Package parse загружает структуру схемы PostgreSQL из системного каталога.
package parse

import (
	"context"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/parse/queries"
	"github.com/Feresey/relgraph/schema"
)

// Количество таблиц в одном запросе колонок.
const columnsBatchSize = 64

type Config struct {
	// Анализируемая схема. Таблицы остальных схем помечаются как remote.
	Schema   string
	Patterns []Pattern
	// Количество одновременных запросов колонок
	Workers int
}

type Pattern struct {
	Schema string
	Tables string
}

type Parser struct {
	conn queries.Executor
	log  *zap.Logger
	q    Queries
}

//go:generate mockery --name Queries --inpackage --testonly --quiet
type Queries interface {
	Tables(context.Context, queries.Executor, []queries.TablesPattern) ([]queries.Table, error)
	TablesByOID(context.Context, queries.Executor, []int) ([]queries.Table, error)
	Columns(context.Context, queries.Executor, []int) ([]queries.Column, error)
	Constraints(context.Context, queries.Executor, []int) ([]queries.Constraint, error)
}

func NewParser(
	conn queries.Executor,
	log *zap.Logger,
) *Parser {
	return &Parser{
		log:  log.Named("parser"),
		conn: conn,
		q:    queries.Queries{},
	}
}

// state таблицы по oid на время загрузки.
type state struct {
	s      *schema.Schema
	tables map[int]*schema.Table
}

// LoadSchema загружает таблицы, подходящие под шаблоны, их колонки и ключи.
// Таблицы, на которые ссылаются найденные, загружаются как remote.
func (p *Parser) LoadSchema(ctx context.Context, conf Config) (*schema.Schema, error) {
	st := &state{
		s:      schema.New(conf.Schema),
		tables: make(map[int]*schema.Table),
	}

	patterns := make([]queries.TablesPattern, 0, len(conf.Patterns))
	for _, p := range conf.Patterns {
		patterns = append(patterns, queries.TablesPattern(p))
	}

	tables, err := p.q.Tables(ctx, p.conn, patterns)
	if err != nil {
		p.log.Error("failed to query tables", zap.Error(err))
		return nil, xerrors.Errorf("load tables: %w", err)
	}
	if err := p.addTables(st, tables); err != nil {
		return nil, xerrors.Errorf("add tables: %w", err)
	}
	tableOIDs := sortedKeys(st.tables)
	if err := p.loadTablesColumns(ctx, st, tableOIDs, conf.Workers); err != nil {
		return nil, xerrors.Errorf("load tables columns: %w", err)
	}

	constraints, err := p.q.Constraints(ctx, p.conn, tableOIDs)
	if err != nil {
		p.log.Error("failed to query tables constraints", zap.Error(err))
		return nil, xerrors.Errorf("load constraints: %w", err)
	}
	constraints = p.skipInherited(constraints)
	p.log.Debug("loaded constraints", zap.Int("n", len(constraints)))

	constraints, err = p.loadReferenced(ctx, st, constraints, conf.Workers)
	if err != nil {
		return nil, xerrors.Errorf("load referenced tables: %w", err)
	}

	// сначала ключи таблиц, затем внешние ключи, ссылающиеся на них
	sort.SliceStable(constraints, func(i, j int) bool {
		return constraints[i].ConstraintType != "f" && constraints[j].ConstraintType == "f"
	})
	for idx := range constraints {
		if err := p.makeConstraint(st, &constraints[idx]); err != nil {
			return nil, err
		}
	}

	if err := st.s.Validate(); err != nil {
		return nil, xerrors.Errorf("loaded schema: %w", err)
	}
	return st.s, nil
}

func (p *Parser) addTables(st *state, tables []queries.Table) error {
	p.log.Debug("loaded tables", zap.Reflect("tables", tables))
	for _, dbtable := range tables {
		if _, ok := st.tables[dbtable.OID]; ok {
			continue
		}
		table := schema.NewTable(dbtable.Schema, dbtable.Table)
		table.Name.OID = dbtable.OID
		table.IsView = dbtable.IsView()
		table.IsRemote = dbtable.Schema != st.s.Name
		table.Comment = dbtable.Comment.String

		if err := st.s.AddTable(table); err != nil {
			return err
		}
		st.tables[dbtable.OID] = table
	}
	return nil
}

// loadTablesColumns загружает колонки пачками в несколько потоков.
func (p *Parser) loadTablesColumns(
	ctx context.Context,
	st *state,
	tableOIDs []int,
	workers int,
) error {
	if workers <= 0 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		columns = make(map[int][]queries.Column, len(tableOIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(tableOIDs); start += columnsBatchSize {
		end := start + columnsBatchSize
		if end > len(tableOIDs) {
			end = len(tableOIDs)
		}
		batch := tableOIDs[start:end]
		g.Go(func() error {
			dbcolumns, err := p.q.Columns(gctx, p.conn, batch)
			if err != nil {
				p.log.Error("failed to query tables columns", zap.Error(err), zap.Ints("tables", batch))
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, dbcolumn := range dbcolumns {
				columns[dbcolumn.TableOID] = append(columns[dbcolumn.TableOID], dbcolumn)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var n int
	for _, tableOID := range sortedKeys(columns) {
		table, ok := st.tables[tableOID]
		if !ok {
			err := xerrors.Errorf("table with oid %d not found", tableOID)
			p.log.Error("failed to get table for column", zap.Error(err))
			return err
		}
		dbcolumns := columns[tableOID]
		sort.Slice(dbcolumns, func(i, j int) bool {
			return dbcolumns[i].ColumnNum < dbcolumns[j].ColumnNum
		})
		for _, dbcolumn := range dbcolumns {
			col := schema.NewColumn(dbcolumn.ColumnName, dbcolumn.TypeName, int(dbcolumn.CharacterMaxLength.Int32))
			col.Num = dbcolumn.ColumnNum
			col.IsNullable = dbcolumn.IsNullable
			col.Comment = dbcolumn.Comment.String
			if err := table.AddColumn(col); err != nil {
				return err
			}
			n++
		}
	}
	p.log.Debug("columns loaded", zap.Int("n", n))

	return nil
}

// loadReferenced добавляет таблицы, на которые ссылаются внешние ключи, но которые не попали под шаблоны.
// Ключи этих таблиц дописываются к constraints, их собственные внешние ключи пропускаются.
func (p *Parser) loadReferenced(
	ctx context.Context,
	st *state,
	constraints []queries.Constraint,
	workers int,
) ([]queries.Constraint, error) {
	missing := mapset.NewThreadUnsafeSet[int]()
	for _, c := range constraints {
		if c.ConstraintType != "f" || !c.ForeignTableOID.Valid {
			continue
		}
		oid := int(c.ForeignTableOID.Int32)
		if _, ok := st.tables[oid]; !ok {
			missing.Add(oid)
		}
	}
	if missing.Cardinality() == 0 {
		return constraints, nil
	}

	oids := missing.ToSlice()
	sort.Ints(oids)
	p.log.Debug("load referenced tables", zap.Ints("oids", oids))

	tables, err := p.q.TablesByOID(ctx, p.conn, oids)
	if err != nil {
		p.log.Error("failed to query referenced tables", zap.Error(err))
		return nil, err
	}
	if err := p.addTables(st, tables); err != nil {
		return nil, err
	}
	// таблицы вне шаблонов считаются внешними, даже если лежат в анализируемой схеме
	for _, oid := range oids {
		if t, ok := st.tables[oid]; ok {
			t.IsRemote = true
		}
	}
	if err := p.loadTablesColumns(ctx, st, oids, workers); err != nil {
		return nil, err
	}

	remote, err := p.q.Constraints(ctx, p.conn, oids)
	if err != nil {
		p.log.Error("failed to query referenced tables constraints", zap.Error(err))
		return nil, err
	}
	for _, c := range p.skipInherited(remote) {
		if c.ConstraintType != "f" {
			constraints = append(constraints, c)
		}
	}
	return constraints, nil
}

// skipInherited отбрасывает копии ограничений, которые postgres создает для каждой партиции.
// Ключ, ссылающийся на партиционированную таблицу, остается одним внешним ключом.
func (p *Parser) skipInherited(constraints []queries.Constraint) []queries.Constraint {
	res := make([]queries.Constraint, 0, len(constraints))
	for _, c := range constraints {
		if c.ParentOID != 0 {
			p.log.Debug("skip partition constraint",
				zap.String("name", c.ConstraintName),
				zap.Int("parent_oid", c.ParentOID))
			continue
		}
		res = append(res, c)
	}
	return res
}

// Перевод значений pg_constraint.confdeltype и confupdtype.
var pgRule = map[string]schema.Rule{
	"a": schema.RuleNoAction,
	"r": schema.RuleRestrict,
	"c": schema.RuleCascade,
	"n": schema.RuleSetNull,
	"d": schema.RuleSetDefault,
}

func (p *Parser) makeConstraint(st *state, dbconstraint *queries.Constraint) error {
	name := schema.Identifier{
		OID:    dbconstraint.ConstraintOID,
		Schema: dbconstraint.SchemaName,
		Name:   dbconstraint.ConstraintName,
	}

	table, ok := st.tables[dbconstraint.TableOID]
	if !ok {
		return xerrors.Errorf("unable to find table with oid %d for constraint %q", dbconstraint.TableOID, name)
	}
	cols, err := checkTableColumns(dbconstraint.Columns, table)
	if err != nil {
		return xerrors.Errorf("check table columns for constraint %q: %w", name, err)
	}

	switch dbconstraint.ConstraintType {
	case "p":
		return table.SetPrimaryKey(cols...)
	case "u":
		if len(cols) == 1 {
			cols[0].IsUnique = true
		}
		return nil
	case "f":
		return p.makeForeignKey(st, name, cols, dbconstraint)
	default:
		return xerrors.Errorf("unsupported constraint type: %q", dbconstraint.ConstraintType)
	}
}

func (p *Parser) makeForeignKey(
	st *state,
	name schema.Identifier,
	cols []*schema.Column,
	dbconstraint *queries.Constraint,
) error {
	foid := int(dbconstraint.ForeignTableOID.Int32)
	ftable, ok := st.tables[foid]
	if !ok {
		return xerrors.Errorf("foreign table with oid %d not found for constraint %q", foid, name)
	}
	fcols, err := checkTableColumns(dbconstraint.ForeignColumns, ftable)
	if err != nil {
		return xerrors.Errorf("check foreign table columns for constraint %q: %w", name, err)
	}

	fk, err := schema.NewForeignKey(name, cols, fcols, schema.OriginDeclared)
	if err != nil {
		return xerrors.Errorf("make foreign key: %w", err)
	}
	if rule, ok := pgRule[dbconstraint.DeleteRule]; ok {
		fk.DeleteRule = rule
	}
	if rule, ok := pgRule[dbconstraint.UpdateRule]; ok {
		fk.UpdateRule = rule
	}
	return nil
}

func checkTableColumns(names []string, table *schema.Table) ([]*schema.Column, error) {
	cols := make([]*schema.Column, 0, len(names))
	for _, name := range names {
		col := table.Column(name)
		if col == nil {
			return nil, xerrors.Errorf("column %q not found in table %q", name, table)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := maps.Keys(m)
	sort.Ints(keys)
	return keys
}
