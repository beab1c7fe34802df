package schema

import (
	"sort"
	"strings"
)

// Origin показывает, откуда взялось ограничение.
type Origin int

const (
	// Объявлено в базе данных
	OriginDeclared Origin = iota
	// Выведено по совпадению имени и типа главного ключа
	OriginImplied
	// Выведено по соглашению об именах Rails (<singular>_id)
	OriginRails
)

func (o Origin) String() string {
	switch o {
	case OriginDeclared:
		return "declared"
	case OriginImplied:
		return "implied"
	case OriginRails:
		return "rails"
	default:
		return "unknown"
	}
}

// Rule действие при удалении/изменении родительской строки.
type Rule string

const (
	RuleNoAction   Rule = "NO ACTION"
	RuleRestrict   Rule = "RESTRICT"
	RuleCascade    Rule = "CASCADE"
	RuleSetNull    Rule = "SET NULL"
	RuleSetDefault Rule = "SET DEFAULT"
)

// ForeignKey связь дочерних колонок с колонками родительской таблицы.
// Создается только через NewForeignKey, удаляется только через Unlink.
type ForeignKey struct {
	Name Identifier

	ChildTable    *Table
	ParentTable   *Table
	ChildColumns  []*Column
	ParentColumns []*Column

	Origin     Origin
	DeleteRule Rule
	UpdateRule Rule

	linked bool
}

// NewForeignKey проверяет колонки и связывает их.
// Счетчики обеих таблиц увеличиваются, у самоссылки увеличиваются оба счетчика одной таблицы.
func NewForeignKey(
	name Identifier,
	childCols, parentCols []*Column,
	origin Origin,
) (*ForeignKey, error) {
	if len(childCols) == 0 {
		return nil, invalidf("foreign key %q has no columns", name)
	}
	if len(childCols) != len(parentCols) {
		return nil, invalidf("foreign key %q: %d child columns but %d parent columns",
			name, len(childCols), len(parentCols))
	}

	child, parent := childCols[0].table, parentCols[0].table
	if child == nil || parent == nil {
		return nil, invalidf("foreign key %q references a column without a table", name)
	}
	for i := range childCols {
		if err := checkColumn(name, child, childCols[i]); err != nil {
			return nil, err
		}
		if err := checkColumn(name, parent, parentCols[i]); err != nil {
			return nil, err
		}
	}

	fk := &ForeignKey{
		Name:          name,
		ChildTable:    child,
		ParentTable:   parent,
		ChildColumns:  append([]*Column(nil), childCols...),
		ParentColumns: append([]*Column(nil), parentCols...),
		Origin:        origin,
		DeleteRule:    RuleNoAction,
		UpdateRule:    RuleNoAction,
	}
	fk.link()
	return fk, nil
}

func checkColumn(name Identifier, table *Table, col *Column) error {
	if col == nil {
		return invalidf("foreign key %q references a nil column", name)
	}
	if col.table != table || table.Column(col.Name) != col {
		return invalidf("foreign key %q: column %q is not present on table %q", name, col.Name, table)
	}
	return nil
}

func (fk *ForeignKey) String() string { return fk.Name.String() }

// IsReal - ограничение объявлено в базе данных.
func (fk *ForeignKey) IsReal() bool { return fk.Origin == OriginDeclared }

// IsImplied - ограничение выведено анализатором.
func (fk *ForeignKey) IsImplied() bool { return fk.Origin != OriginDeclared }

// IsSelfReference - дочерняя и родительская таблица совпадают.
func (fk *ForeignKey) IsSelfReference() bool { return fk.ChildTable == fk.ParentTable }

func (fk *ForeignKey) IsLinked() bool { return fk.linked }

func (fk *ForeignKey) link() {
	for i := range fk.ChildColumns {
		child, parent := fk.ChildColumns[i], fk.ParentColumns[i]
		child.parents = append(child.parents, Link{Column: parent, Constraint: fk})
		parent.children = append(parent.children, Link{Column: child, Constraint: fk})
	}
	fk.ChildTable.foreignKeys = append(fk.ChildTable.foreignKeys, fk)
	fk.ParentTable.referencedBy = append(fk.ParentTable.referencedBy, fk)

	fk.ChildTable.numParents++
	fk.ChildTable.maxParents++
	fk.ParentTable.numChildren++
	fk.ParentTable.maxChildren++
	fk.linked = true
}

// Unlink разрывает связь. Максимальные счетчики не меняются.
func (fk *ForeignKey) Unlink() {
	if !fk.linked {
		return
	}
	for i := range fk.ChildColumns {
		child, parent := fk.ChildColumns[i], fk.ParentColumns[i]
		child.parents = removeLink(child.parents, fk)
		parent.children = removeLink(parent.children, fk)
	}
	fk.ChildTable.foreignKeys = removeFK(fk.ChildTable.foreignKeys, fk)
	fk.ParentTable.referencedBy = removeFK(fk.ParentTable.referencedBy, fk)

	fk.ChildTable.numParents--
	fk.ParentTable.numChildren--
	fk.linked = false
}

func removeLink(links []Link, fk *ForeignKey) []Link {
	res := links[:0]
	for _, l := range links {
		if l.Constraint != fk {
			res = append(res, l)
		}
	}
	return res
}

func removeFK(fks []*ForeignKey, fk *ForeignKey) []*ForeignKey {
	for i, v := range fks {
		if v == fk {
			return append(fks[:i], fks[i+1:]...)
		}
	}
	return fks
}

// Compare задает стабильный порядок ограничений:
// дочерняя таблица, имя ограничения, родительская таблица.
func (fk *ForeignKey) Compare(other *ForeignKey) int {
	if fk == other {
		return 0
	}
	if rc := fk.ChildTable.Compare(other.ChildTable); rc != 0 {
		return rc
	}
	if rc := strings.Compare(strings.ToLower(fk.Name.Name), strings.ToLower(other.Name.Name)); rc != 0 {
		return rc
	}
	if rc := fk.ParentTable.Compare(other.ParentTable); rc != 0 {
		return rc
	}
	if rc := compareColumnLists(fk.ChildColumns, other.ChildColumns); rc != 0 {
		return rc
	}
	return strings.Compare(fk.Name.Name, other.Name.Name)
}

func compareColumnLists(a, b []*Column) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if rc := compareColumns(a[i], b[i]); rc != 0 {
			return rc
		}
	}
	return len(a) - len(b)
}

func SortForeignKeys(fks []*ForeignKey) {
	sort.Slice(fks, func(i, j int) bool {
		return fks[i].Compare(fks[j]) < 0
	})
}

func sortedFKs(fks []*ForeignKey) []*ForeignKey {
	res := append([]*ForeignKey(nil), fks...)
	SortForeignKeys(res)
	return res
}

// UnlinkParents разрывает все связи, где таблица дочерняя.
func (t *Table) UnlinkParents() []*ForeignKey {
	fks := sortedFKs(t.foreignKeys)
	for _, fk := range fks {
		fk.Unlink()
	}
	return fks
}

// UnlinkChildren разрывает все связи, где таблица родительская.
func (t *Table) UnlinkChildren() []*ForeignKey {
	fks := sortedFKs(t.referencedBy)
	for _, fk := range fks {
		fk.Unlink()
	}
	return fks
}

// RemoveSelfReferencingConstraints удаляет ссылки таблицы на саму себя.
func (t *Table) RemoveSelfReferencingConstraints() []*ForeignKey {
	var removed []*ForeignKey
	for _, fk := range sortedFKs(t.foreignKeys) {
		if fk.IsSelfReference() {
			fk.Unlink()
			removed = append(removed, fk)
		}
	}
	return removed
}

// RemoveNonRealForeignKeys удаляет выведенные связи в обе стороны.
func (t *Table) RemoveNonRealForeignKeys() []*ForeignKey {
	var removed []*ForeignKey
	for _, fk := range sortedFKs(append(append([]*ForeignKey(nil), t.foreignKeys...), t.referencedBy...)) {
		if fk.IsLinked() && fk.IsImplied() {
			fk.Unlink()
			removed = append(removed, fk)
		}
	}
	return removed
}

// RemoveAForeignKey удаляет одну связь таблицы: ссылку на родителя, если
// родителей не больше чем детей, иначе ссылку ребенка на эту таблицу.
// Если с выбранной стороны связей нет, используется другая сторона.
func (t *Table) RemoveAForeignKey() *ForeignKey {
	first, second := t.foreignKeys, t.referencedBy
	if t.numParents > t.numChildren {
		first, second = second, first
	}
	for _, side := range [][]*ForeignKey{first, second} {
		if len(side) == 0 {
			continue
		}
		fk := sortedFKs(side)[0]
		fk.Unlink()
		return fk
	}
	return nil
}
