package infer

import (
	"strings"

	"github.com/go-openapi/inflect"
	"go.uber.org/zap"

	"github.com/Feresey/relgraph/schema"
)

const (
	railsSuffix   = "_id"
	railsParentPK = "id"
)

// RailsMatcher связывает колонки вида <singular>_id с колонкой id таблицы
// <plural> из той же схемы: vaccine_id -> vaccines.id.
type RailsMatcher struct {
	log *zap.Logger
}

func NewRailsMatcher(log *zap.Logger) *RailsMatcher {
	return &RailsMatcher{log: log.Named("rails-matcher")}
}

func (m *RailsMatcher) Match(tables []*schema.Table) []Link {
	sorted := append([]*schema.Table(nil), tables...)
	schema.SortTables(sorted)

	byName := make(map[string]*schema.Table, len(sorted))
	for _, table := range sorted {
		key := strings.ToLower(table.String())
		if _, ok := byName[key]; !ok {
			byName[key] = table
		}
	}

	var res []Link
	for _, table := range sorted {
		cols := append([]*schema.Column(nil), table.Columns()...)
		schema.SortColumns(cols)
		for _, child := range cols {
			if child.IsForeignKey() || !child.AllowImpliedParents {
				continue
			}
			parent := m.parentColumn(child, byName)
			if parent == nil || parent.Table() == table || linked(parent, child) {
				continue
			}
			m.log.Debug("rails link", zap.Stringer("parent", parent), zap.Stringer("child", child))
			res = append(res, Link{
				Parent: parent,
				Child:  child,
				Origin: schema.OriginRails,
			})
		}
	}
	return res
}

func (m *RailsMatcher) parentColumn(child *schema.Column, tables map[string]*schema.Table) *schema.Column {
	name := strings.ToLower(child.Name)
	singular := strings.TrimSuffix(name, railsSuffix)
	if singular == name || singular == "" {
		return nil
	}
	id := schema.Identifier{
		Schema: child.Table().Name.Schema,
		Name:   inflect.Pluralize(singular),
	}
	parentTable, ok := tables[strings.ToLower(id.String())]
	if !ok {
		return nil
	}
	return parentTable.Column(railsParentPK)
}
