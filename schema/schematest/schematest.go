// Package schematest собирает схемы для тестов.
package schematest

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Feresey/relgraph/schema"
)

const defaultType = "int4"

type Builder struct {
	t testing.TB
	s *schema.Schema
}

func New(t testing.TB, name string) *Builder {
	t.Helper()
	return &Builder{
		t: t,
		s: schema.New(name),
	}
}

// Table добавляет таблицу. Колонки задаются как "name" или "name:type",
// колонки с префиксом "*" входят в главный ключ.
func (b *Builder) Table(name string, cols ...string) *Builder {
	b.t.Helper()
	b.table(name, false, cols)
	return b
}

// Remote добавляет таблицу из другой схемы.
func (b *Builder) Remote(name string, cols ...string) *Builder {
	b.t.Helper()
	b.table(name, true, cols)
	return b
}

// View добавляет представление.
func (b *Builder) View(name string, cols ...string) *Builder {
	b.t.Helper()
	b.table(name, false, cols).IsView = true
	return b
}

func (b *Builder) table(name string, remote bool, cols []string) *schema.Table {
	b.t.Helper()
	schemaName, tableName := b.split(name)
	table := schema.NewTable(schemaName, tableName)
	table.IsRemote = remote

	var pk []*schema.Column
	for _, def := range cols {
		isPK := strings.HasPrefix(def, "*")
		def = strings.TrimPrefix(def, "*")
		colName, typeName, ok := strings.Cut(def, ":")
		if !ok {
			typeName = defaultType
		}
		col := schema.NewColumn(colName, typeName, 0)
		require.NoError(b.t, table.AddColumn(col))
		if isPK {
			col.IsNullable = false
			pk = append(pk, col)
		}
	}
	require.NoError(b.t, table.SetPrimaryKey(pk...))
	require.NoError(b.t, b.s.AddTable(table))
	return table
}

// FK объявляет внешний ключ "child_table.column" -> "parent_table.column".
func (b *Builder) FK(child, parent string) *Builder {
	b.t.Helper()
	b.Link(child, parent, schema.OriginDeclared)
	return b
}

// Implied добавляет выведенную связь.
func (b *Builder) Implied(child, parent string) *Builder {
	b.t.Helper()
	b.Link(child, parent, schema.OriginImplied)
	return b
}

func (b *Builder) Link(child, parent string, origin schema.Origin) *schema.ForeignKey {
	b.t.Helper()
	childCol := b.Column(child)
	parentCol := b.Column(parent)
	name := schema.Identifier{
		Schema: childCol.Table().Name.Schema,
		Name:   "fk_" + strings.ReplaceAll(child, ".", "_") + "_" + strings.ReplaceAll(parent, ".", "_"),
	}
	fk, err := schema.NewForeignKey(name, []*schema.Column{childCol}, []*schema.Column{parentCol}, origin)
	require.NoError(b.t, err)
	return fk
}

// Column ищет колонку по "table.column" или "schema.table.column".
func (b *Builder) Column(name string) *schema.Column {
	b.t.Helper()
	idx := strings.LastIndex(name, ".")
	require.Positive(b.t, idx, "column name %q must be qualified", name)
	table := b.Get(name[:idx])
	col := table.Column(name[idx+1:])
	require.NotNil(b.t, col, "column %q not found", name)
	return col
}

// Get ищет таблицу по имени.
func (b *Builder) Get(name string) *schema.Table {
	b.t.Helper()
	schemaName, tableName := b.split(name)
	table := b.s.Table(schemaName, tableName)
	require.NotNil(b.t, table, "table %q not found", name)
	return table
}

func (b *Builder) Schema() *schema.Schema {
	b.t.Helper()
	require.NoError(b.t, b.s.Validate())
	return b.s
}

func (b *Builder) split(name string) (schemaName, tableName string) {
	if s, t, ok := strings.Cut(name, "."); ok {
		return s, t
	}
	return b.s.Name, name
}

// Graph строит схему по списку смежности parent -> children.
// У каждой таблицы главный ключ id, дочерняя таблица получает колонку <parent>_id.
func Graph(t testing.TB, graph map[string][]string) *schema.Schema {
	t.Helper()
	b := New(t, "public")

	names := make(map[string]struct{})
	for parent, children := range graph {
		names[parent] = struct{}{}
		for _, child := range children {
			names[child] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		b.Table(name, "*id")
	}
	for _, parent := range sorted {
		for _, child := range graph[parent] {
			table := b.Get(child)
			colName := "t" + parent + "_id"
			if table.Column(colName) == nil {
				require.NoError(t, table.AddColumn(schema.NewColumn(colName, defaultType, 0)))
			}
			b.FK(child+"."+colName, parent+".id")
		}
	}
	return b.Schema()
}

// Names возвращает полные имена таблиц.
func Names(tables []*schema.Table) []string {
	res := make([]string, 0, len(tables))
	for _, t := range tables {
		res = append(res, t.String())
	}
	return res
}
