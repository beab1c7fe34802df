package order

import (
	"sort"

	"github.com/Feresey/relgraph/schema"
)

// sortBatch: сначала таблицы с большим числом детей, затем с меньшим числом родителей, затем по имени.
// Используются максимальные счетчики, чтобы порядок не зависел от порядка удаления связей.
func sortBatch(tables []*schema.Table) {
	sort.Slice(tables, func(i, j int) bool {
		a, b := tables[i], tables[j]
		if a.MaxChildren() != b.MaxChildren() {
			return a.MaxChildren() > b.MaxChildren()
		}
		if a.MaxParents() != b.MaxParents() {
			return a.MaxParents() < b.MaxParents()
		}
		return a.Compare(b) < 0
	})
}
