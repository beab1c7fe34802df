package schema

import (
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// Identifier описывает имя элемента.
type Identifier struct {
	// Row identifier. Только для PostgreSQL, для остальных источников 0.
	OID int `json:"oid,omitempty"`
	// Schema name
	Schema string `json:"schema,omitempty"`
	// Имя элемента
	Name string `json:"name,omitempty"`
}

func (i Identifier) String() string {
	if i.Schema == "" {
		return i.Name
	}
	return i.Schema + "." + i.Name
}

// Schema отражает анализируемую схему вместе с внешними таблицами, на которые она ссылается.
type Schema struct {
	// Имя анализируемой схемы. Таблицы из других схем помечаются как remote.
	Name string
	// Ключ мапы - полное имя таблицы (schema.table)
	Tables map[string]*Table
}

func New(name string) *Schema {
	return &Schema{
		Name:   name,
		Tables: make(map[string]*Table),
	}
}

// AddTable регистрирует таблицу в схеме.
func (s *Schema) AddTable(t *Table) error {
	key := t.String()
	if _, ok := s.Tables[key]; ok {
		return invalidf("duplicate table %q", key)
	}
	s.Tables[key] = t
	return nil
}

// Table ищет таблицу без учета регистра.
func (s *Schema) Table(schemaName, name string) *Table {
	id := Identifier{Schema: schemaName, Name: name}
	if t, ok := s.Tables[id.String()]; ok {
		return t
	}
	for _, t := range s.SortedTables() {
		if strings.EqualFold(t.Name.Schema, schemaName) && strings.EqualFold(t.Name.Name, name) {
			return t
		}
	}
	return nil
}

// SortedTables возвращает таблицы в каноническом порядке.
func (s *Schema) SortedTables() []*Table {
	tables := maps.Values(s.Tables)
	SortTables(tables)
	return tables
}

// ForeignKeys возвращает все связанные внешние ключи в стабильном порядке.
func (s *Schema) ForeignKeys() []*ForeignKey {
	var res []*ForeignKey
	for _, t := range s.SortedTables() {
		res = append(res, t.ForeignKeys()...)
	}
	SortForeignKeys(res)
	return res
}

// Table описывает таблицу базы данных.
type Table struct {
	// имя таблицы
	Name Identifier
	// Комментарий к таблице
	Comment string
	// Представление, а не таблица
	IsView bool
	// Таблица из другой схемы
	IsRemote bool

	// колонки в порядке объявления
	columns []*Column
	// lower(name) -> column
	byName map[string]*Column
	// Главный ключ таблицы (может быть пустым)
	primaryKey []*Column

	// Ключи, где эта таблица дочерняя
	foreignKeys []*ForeignKey
	// Ключи, которые ссылаются на эту таблицу
	referencedBy []*ForeignKey

	numParents  int
	numChildren int
	// Счетчики связей до начала удаления связей. Только растут.
	maxParents  int
	maxChildren int
}

func NewTable(schemaName, name string) *Table {
	return &Table{
		Name: Identifier{
			Schema: schemaName,
			Name:   name,
		},
		byName: make(map[string]*Column),
	}
}

func (t *Table) String() string { return t.Name.String() }

// AddColumn добавляет колонку в конец списка колонок таблицы.
func (t *Table) AddColumn(col *Column) error {
	key := strings.ToLower(col.Name)
	if _, ok := t.byName[key]; ok {
		return invalidf("duplicate column %q in table %q", col.Name, t)
	}
	col.table = t
	if col.Num == 0 {
		col.Num = len(t.columns) + 1
	}
	t.columns = append(t.columns, col)
	t.byName[key] = col
	return nil
}

// SetPrimaryKey помечает колонки как главный ключ таблицы.
func (t *Table) SetPrimaryKey(cols ...*Column) error {
	for _, col := range cols {
		if col.table != t {
			return invalidf("primary key column %q does not belong to table %q", col.Name, t)
		}
	}
	for _, col := range t.primaryKey {
		col.IsPrimary = false
	}
	t.primaryKey = append(t.primaryKey[:0:0], cols...)
	for _, col := range cols {
		col.IsPrimary = true
	}
	return nil
}

// Column ищет колонку без учета регистра.
func (t *Table) Column(name string) *Column { return t.byName[strings.ToLower(name)] }
func (t *Table) Columns() []*Column         { return t.columns }
func (t *Table) PrimaryKey() []*Column      { return t.primaryKey }

// ForeignKeys возвращает связанные ключи, где таблица дочерняя.
func (t *Table) ForeignKeys() []*ForeignKey { return t.foreignKeys }

// ReferencedBy возвращает связанные ключи, где таблица родительская.
func (t *Table) ReferencedBy() []*ForeignKey { return t.referencedBy }

func (t *Table) NumParents() int  { return t.numParents }
func (t *Table) NumChildren() int { return t.numChildren }
func (t *Table) MaxParents() int  { return t.maxParents }
func (t *Table) MaxChildren() int { return t.maxChildren }

// IsRoot - таблица ни на кого не ссылается.
func (t *Table) IsRoot() bool { return t.numParents == 0 }

// IsLeaf - на таблицу никто не ссылается.
func (t *Table) IsLeaf() bool { return t.numChildren == 0 }

// IsOrphan - у таблицы никогда не было связей.
// Без implied учитываются только текущие объявленные связи.
func (t *Table) IsOrphan(withImplied bool) bool {
	if withImplied {
		return t.maxParents == 0 && t.maxChildren == 0
	}
	for _, fk := range t.foreignKeys {
		if fk.IsReal() {
			return false
		}
	}
	for _, fk := range t.referencedBy {
		if fk.IsReal() {
			return false
		}
	}
	return true
}

// Compare сравнивает таблицы по полному имени без учета регистра.
// При равенстве сравниваются имена с учетом регистра, так что порядок полный.
func (t *Table) Compare(other *Table) int {
	if t == other {
		return 0
	}
	if rc := strings.Compare(strings.ToLower(t.String()), strings.ToLower(other.String())); rc != 0 {
		return rc
	}
	return strings.Compare(t.String(), other.String())
}

func SortTables(tables []*Table) {
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Compare(tables[j]) < 0
	})
}

// Column описывает колонку таблицы.
type Column struct {
	// Порядковый номер колонки, начиная с 1
	Num int
	// Имя колонки
	Name string
	// Имя типа колонки
	TypeName string
	// Для типов с ограничением длины. VARCHAR(100)
	Length int

	IsPrimary  bool
	IsUnique   bool
	IsNullable bool

	// Колонка может быть дочерней в выведенной связи
	AllowImpliedParents bool
	// Колонка может быть родительской в выведенной связи
	AllowImpliedChildren bool
	// Колонка не рисуется на диаграммах
	IsExcluded bool

	Comment string

	// Таблица, которой принадлежит колонка
	table    *Table
	parents  []Link
	children []Link
}

// NewColumn создает колонку, для которой разрешен вывод связей.
func NewColumn(name, typeName string, length int) *Column {
	return &Column{
		Name:                 name,
		TypeName:             typeName,
		Length:               length,
		IsNullable:           true,
		AllowImpliedParents:  true,
		AllowImpliedChildren: true,
	}
}

// Link связь колонки с другой колонкой через ограничение.
type Link struct {
	Column     *Column
	Constraint *ForeignKey
}

func (c *Column) String() string { return c.table.String() + "." + c.Name }
func (c *Column) Table() *Table  { return c.table }

// Parents колонки, на которые ссылается эта колонка.
func (c *Column) Parents() []Link { return c.parents }

// Children колонки, которые ссылаются на эту колонку.
func (c *Column) Children() []Link { return c.children }

func (c *Column) IsForeignKey() bool { return len(c.parents) != 0 }

// ParentConstraint возвращает ограничение, по которому эта колонка ссылается на parent.
func (c *Column) ParentConstraint(parent *Column) *ForeignKey {
	for _, l := range c.parents {
		if l.Column == parent {
			return l.Constraint
		}
	}
	return nil
}

// ChildConstraint возвращает ограничение, по которому child ссылается на эту колонку.
func (c *Column) ChildConstraint(child *Column) *ForeignKey {
	for _, l := range c.children {
		if l.Column == child {
			return l.Constraint
		}
	}
	return nil
}

// SameType сравнивает тип и длину колонок без учета регистра.
func (c *Column) SameType(other *Column) bool {
	return strings.EqualFold(c.TypeName, other.TypeName) && c.Length == other.Length
}

// compareColumns сравнивает колонки по таблице и имени без учета регистра.
func compareColumns(a, b *Column) int {
	if rc := a.table.Compare(b.table); rc != 0 {
		return rc
	}
	if rc := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); rc != 0 {
		return rc
	}
	return strings.Compare(a.Name, b.Name)
}

func SortColumns(cols []*Column) {
	sort.Slice(cols, func(i, j int) bool {
		return compareColumns(cols[i], cols[j]) < 0
	})
}
