package schema

import (
	lua "github.com/yuin/gopher-lua"
)

func (s *Schema) ToLua(l *lua.LState) *lua.LTable {
	schema := l.NewTable()
	schema.RawSetString("name", lua.LString(s.Name))

	tables := l.NewTable()
	schema.RawSetString("tables", tables)
	for _, table := range s.SortedTables() {
		tables.RawSetString(table.String(), table.ToLua(l))
	}

	return schema
}

func (t *Table) ToLua(l *lua.LState) *lua.LTable {
	table := l.NewTable()
	table.RawSetString("schema", lua.LString(t.Name.Schema))
	table.RawSetString("name", lua.LString(t.Name.Name))
	table.RawSetString("is_view", lua.LBool(t.IsView))
	table.RawSetString("is_remote", lua.LBool(t.IsRemote))
	table.RawSetString("pk", luaColNames(l, t.primaryKey))

	cols := l.NewTable()
	table.RawSetString("columns", cols)
	for _, col := range t.columns {
		cols.Append(col.ToLua(l))
	}

	fks := l.NewTable()
	table.RawSetString("fk", fks)
	for _, fk := range sortedFKs(t.foreignKeys) {
		fks.RawSetString(fk.Name.Name, fk.ToLua(l))
	}

	return table
}

func luaColNames(l *lua.LState, cols []*Column) *lua.LTable {
	lc := l.NewTable()
	for _, col := range cols {
		lc.Append(lua.LString(col.Name))
	}
	return lc
}

func (fk *ForeignKey) ToLua(l *lua.LState) *lua.LTable {
	lf := l.NewTable()
	lf.RawSetString("reference", lua.LString(fk.ParentTable.String()))
	lf.RawSetString("local_cols", luaColNames(l, fk.ChildColumns))
	lf.RawSetString("reference_cols", luaColNames(l, fk.ParentColumns))
	lf.RawSetString("origin", lua.LString(fk.Origin.String()))
	return lf
}

func (c *Column) ToLua(l *lua.LState) *lua.LTable {
	lc := l.NewTable()
	lc.RawSetString("name", lua.LString(c.Name))
	lc.RawSetString("type", lua.LString(c.TypeName))
	lc.RawSetString("length", lua.LNumber(c.Length))
	lc.RawSetString("is_primary", lua.LBool(c.IsPrimary))
	lc.RawSetString("is_unique", lua.LBool(c.IsUnique))
	lc.RawSetString("notnull", lua.LBool(!c.IsNullable))
	lc.RawSetString("is_fk", lua.LBool(c.IsForeignKey()))
	return lc
}
