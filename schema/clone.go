package schema

import "strings"

// Origins сопоставляет объекты копии с объектами исходной схемы.
type Origins struct {
	tables      map[*Table]*Table
	foreignKeys map[*ForeignKey]*ForeignKey
}

func (o *Origins) Table(clone *Table) *Table                { return o.tables[clone] }
func (o *Origins) ForeignKey(clone *ForeignKey) *ForeignKey { return o.foreignKeys[clone] }

// Tables переводит таблицы копии в таблицы исходной схемы с сохранением порядка.
func (o *Origins) Tables(clones []*Table) []*Table {
	res := make([]*Table, 0, len(clones))
	for _, t := range clones {
		res = append(res, o.tables[t])
	}
	return res
}

func (o *Origins) ForeignKeys(clones []*ForeignKey) []*ForeignKey {
	res := make([]*ForeignKey, 0, len(clones))
	for _, fk := range clones {
		res = append(res, o.foreignKeys[fk])
	}
	return res
}

// Clone создает структурную копию таблиц, колонок и связанных ограничений.
// Максимальные счетчики копируются как есть, а не пересчитываются.
func (s *Schema) Clone() (*Schema, *Origins) {
	clone := New(s.Name)
	origins := &Origins{
		tables:      make(map[*Table]*Table, len(s.Tables)),
		foreignKeys: make(map[*ForeignKey]*ForeignKey),
	}
	cloned := make(map[*Table]*Table, len(s.Tables))

	for key, t := range s.Tables {
		ct := t.cloneStructure()
		clone.Tables[key] = ct
		cloned[t] = ct
		origins.tables[ct] = t
	}

	for _, fk := range s.ForeignKeys() {
		child, parent := cloned[fk.ChildTable], cloned[fk.ParentTable]
		cfk := &ForeignKey{
			Name:          fk.Name,
			ChildTable:    child,
			ParentTable:   parent,
			ChildColumns:  sameColumns(child, fk.ChildColumns),
			ParentColumns: sameColumns(parent, fk.ParentColumns),
			Origin:        fk.Origin,
			DeleteRule:    fk.DeleteRule,
			UpdateRule:    fk.UpdateRule,
		}
		cfk.link()
		origins.foreignKeys[cfk] = fk
	}

	for t, ct := range cloned {
		ct.maxParents = t.maxParents
		ct.maxChildren = t.maxChildren
	}
	return clone, origins
}

func (t *Table) cloneStructure() *Table {
	ct := NewTable(t.Name.Schema, t.Name.Name)
	ct.Name.OID = t.Name.OID
	ct.Comment = t.Comment
	ct.IsView = t.IsView
	ct.IsRemote = t.IsRemote
	for _, col := range t.columns {
		cc := *col
		cc.table = ct
		cc.parents = nil
		cc.children = nil
		ct.columns = append(ct.columns, &cc)
		ct.byName[strings.ToLower(cc.Name)] = &cc
	}
	ct.primaryKey = sameColumns(ct, t.primaryKey)
	return ct
}

func sameColumns(t *Table, cols []*Column) []*Column {
	res := make([]*Column, 0, len(cols))
	for _, col := range cols {
		res = append(res, t.Column(col.Name))
	}
	return res
}
