package infer

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/Feresey/relgraph/schema"
)

// DefaultSpecialKey колонка, которая не мешает выводу связей в составном главном ключе.
const DefaultSpecialKey = "LanguageId"

// signature имя, тип и длина колонки без учета регистра.
type signature struct {
	name   string
	typ    string
	length int
}

func newSignature(name string, col *schema.Column) signature {
	return signature{
		name:   strings.ToLower(name),
		typ:    strings.ToLower(col.TypeName),
		length: col.Length,
	}
}

// registry таблицы по сигнатуре главного ключа.
type registry struct {
	tables     map[signature]*schema.Table
	collisions int
}

func newRegistry() *registry {
	return &registry{tables: make(map[signature]*schema.Table)}
}

// register запоминает таблицу. При коллизии остается таблица с большим
// числом дочерних связей, затем с меньшим именем.
func (r *registry) register(sig signature, table *schema.Table) {
	prev, ok := r.tables[sig]
	if !ok {
		r.tables[sig] = table
		return
	}
	r.collisions++
	if better(table, prev) {
		r.tables[sig] = table
	}
}

func better(a, b *schema.Table) bool {
	if a.NumChildren() != b.NumChildren() {
		return a.NumChildren() > b.NumChildren()
	}
	return a.Compare(b) < 0
}

// SignatureMatcher ищет колонки, совпадающие по имени, типу и длине
// с единственной колонкой главного ключа другой таблицы.
// Имя сравнивается как есть и с префиксом имени таблицы: customer.id ~ order.customer_id.
type SignatureMatcher struct {
	log         *zap.Logger
	specialKeys mapset.Set[string]
}

func NewSignatureMatcher(log *zap.Logger, specialKeys ...string) *SignatureMatcher {
	if len(specialKeys) == 0 {
		specialKeys = []string{DefaultSpecialKey}
	}
	keys := mapset.NewThreadUnsafeSet[string]()
	for _, key := range specialKeys {
		keys.Add(strings.ToLower(key))
	}
	return &SignatureMatcher{
		log:         log.Named("signature-matcher"),
		specialKeys: keys,
	}
}

func (m *SignatureMatcher) isSpecial(col *schema.Column) bool {
	return m.specialKeys.Contains(strings.ToLower(col.Name))
}

// primaryColumn возвращает колонку главного ключа, пригодную для вывода связей.
func (m *SignatureMatcher) primaryColumn(table *schema.Table) *schema.Column {
	pk := table.PrimaryKey()
	if len(pk) == 0 {
		return nil
	}
	if len(pk) != 1 {
		special := false
		for _, col := range pk {
			if m.isSpecial(col) {
				special = true
				break
			}
		}
		if !special {
			return nil
		}
	}
	if !pk[0].AllowImpliedChildren {
		return nil
	}
	return pk[0]
}

func (m *SignatureMatcher) Match(tables []*schema.Table) []Link {
	sorted := append([]*schema.Table(nil), tables...)
	schema.SortTables(sorted)

	bare, prefixed := newRegistry(), newRegistry()
	for _, table := range sorted {
		pk := m.primaryColumn(table)
		if pk == nil {
			continue
		}
		bare.register(newSignature(pk.Name, pk), table)
		prefixed.register(newSignature(table.Name.Name+"_"+pk.Name, pk), table)
	}

	if bare.collisions > len(bare.tables) {
		m.log.Info("primary key names are not distinctive, skip inference",
			zap.Int("collisions", bare.collisions),
			zap.Int("signatures", len(bare.tables)),
		)
		return nil
	}

	var res []Link
	for _, child := range m.candidates(sorted) {
		parentTable, ok := bare.tables[newSignature(child.Name, child)]
		if !ok {
			parentTable, ok = prefixed.tables[newSignature(child.Name, child)]
		}
		if !ok || parentTable == child.Table() {
			continue
		}
		parent := m.primaryColumn(parentTable)
		if linked(parent, child) {
			continue
		}
		m.log.Debug("implied link", zap.Stringer("parent", parent), zap.Stringer("child", child))
		res = append(res, Link{
			Parent: parent,
			Child:  child,
			Origin: schema.OriginImplied,
		})
	}
	return res
}

// candidates возвращает колонки без родителей в порядке (таблица, имя).
func (m *SignatureMatcher) candidates(tables []*schema.Table) []*schema.Column {
	var res []*schema.Column
	for _, table := range tables {
		for _, col := range table.Columns() {
			if col.IsForeignKey() || col.IsPrimary || !col.AllowImpliedParents || m.isSpecial(col) {
				continue
			}
			res = append(res, col)
		}
	}
	schema.SortColumns(res)
	return res
}
