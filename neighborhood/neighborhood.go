// Package neighborhood выделяет окрестность таблицы для диаграммы связей:
// саму таблицу, ее непосредственных родственников и, по желанию, их родственников.
// Схема при этом только читается.
package neighborhood

import (
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/schema"
)

// Role роль таблицы в окрестности.
type Role int

const (
	// Таблица, для которой строится диаграмма
	RoleFocal Role = iota
	// Таблица, связанная с центральной напрямую. Рисуется с колонками.
	RoleRelative
	// Таблица, связанная только с родственником. Рисуется без колонок.
	RoleCousin
)

func (r Role) String() string {
	switch r {
	case RoleFocal:
		return "focal"
	case RoleRelative:
		return "relative"
	case RoleCousin:
		return "cousin"
	default:
		return "unknown"
	}
}

type Node struct {
	Table *schema.Table
	Role  Role
	// У таблицы есть выведенные связи на диаграмме
	ShowImplied bool
	// Колонки для рисования, у кузенов пусто
	Columns []*schema.Column
}

type Options struct {
	// Рисовать выведенные связи
	IncludeImplied bool
	// Добавлять родственников родственников
	TwoDegrees bool
}

// Graph окрестность одной таблицы.
type Graph struct {
	Focal *schema.Table
	// Центральная таблица, затем родственники, затем кузены
	Nodes []*Node
	Edges []*Edge
}

// Node ищет узел таблицы.
func (g *Graph) Node(t *schema.Table) *Node {
	for _, n := range g.Nodes {
		if n.Table == t {
			return n
		}
	}
	return nil
}

func (g *Graph) Tables() []*schema.Table {
	res := make([]*schema.Table, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		res = append(res, n.Table)
	}
	return res
}

type Builder struct {
	log  *zap.Logger
	opts Options
}

func NewBuilder(log *zap.Logger, opts Options) *Builder {
	return &Builder{
		log:  log.Named("neighborhood"),
		opts: opts,
	}
}

// BuildAll строит окрестности всех таблиц анализируемой схемы.
func (b *Builder) BuildAll(s *schema.Schema) ([]*Graph, error) {
	if err := s.Validate(); err != nil {
		return nil, xerrors.Errorf("validate schema: %w", err)
	}
	var res []*Graph
	for _, t := range s.SortedTables() {
		if t.IsRemote {
			continue
		}
		g, err := b.Build(t)
		if err != nil {
			return nil, xerrors.Errorf("build neighborhood of %q: %w", t, err)
		}
		res = append(res, g)
	}
	return res, nil
}

// Build строит окрестность таблицы.
func (b *Builder) Build(focal *schema.Table) (*Graph, error) {
	if focal == nil {
		return nil, xerrors.Errorf("focal table is nil: %w", schema.ErrInvalidGraph)
	}
	if err := checkLinks(focal); err != nil {
		return nil, err
	}

	relatives := b.immediateRelatives(focal, true)
	written := mapset.NewThreadUnsafeSet[*schema.Table](focal)
	written.Append(relatives.ToSlice()...)

	edges := newEdgeSet()
	for _, col := range focal.Columns() {
		for _, e := range b.relatedEdges(col, nil, true) {
			if relatives.Contains(e.Parent.Table()) {
				e.ParentPort = PortDetail
			}
			edges.add(e)
		}
	}

	cousins := mapset.NewThreadUnsafeSet[*schema.Table]()
	if b.opts.TwoDegrees {
		for _, relative := range sorted(relatives) {
			var missing []*schema.Table
			for _, cousin := range sorted(b.immediateRelatives(relative, false)) {
				if !written.Contains(cousin) {
					missing = append(missing, cousin)
				}
			}
			for _, cousin := range missing {
				for _, e := range b.pairEdges(cousin, relative, false) {
					e.Cousin = true
					edges.add(e)
				}
			}
			written.Append(missing...)
			cousins.Append(missing...)
		}
	}

	// связи между участниками, которые не проходят через центральную таблицу
	participants := sorted(relatives.Union(cousins))
	for i, a := range participants {
		for _, other := range participants[i+1:] {
			for _, e := range b.pairEdges(a, other, false) {
				e.Cousin = cousins.Contains(a) || cousins.Contains(other)
				edges.add(e)
			}
		}
	}

	g := &Graph{Focal: focal}
	g.Nodes = append(g.Nodes, &Node{Table: focal, Role: RoleFocal})
	for _, t := range sorted(relatives) {
		g.Nodes = append(g.Nodes, &Node{Table: t, Role: RoleRelative})
	}
	for _, t := range sorted(cousins) {
		g.Nodes = append(g.Nodes, &Node{Table: t, Role: RoleCousin})
	}

	g.Edges = edges.sorted()
	for _, e := range g.Edges {
		// колонки кузенов не рисуются, связь ведет к заголовку
		if e.Cousin {
			if parent := e.Parent.Table(); cousins.Contains(parent) && !relatives.Contains(parent) {
				e.ParentPort = PortEllipsis
			}
			if child := e.Child.Table(); cousins.Contains(child) && !relatives.Contains(child) {
				e.ChildPort = PortEllipsis
			}
		}
		if e.Implied {
			for _, t := range []*schema.Table{e.Parent.Table(), e.Child.Table()} {
				if n := g.Node(t); n != nil {
					n.ShowImplied = true
				}
			}
		}
		e.ID = edgeID(e)
	}

	endpoints := mapset.NewThreadUnsafeSet[*schema.Column]()
	for _, e := range g.Edges {
		endpoints.Add(e.Parent)
		endpoints.Add(e.Child)
	}
	for _, n := range g.Nodes {
		n.Columns = visibleColumns(n, endpoints)
	}

	b.log.Debug("neighborhood built",
		zap.Stringer("table", focal),
		zap.Int("relatives", relatives.Cardinality()),
		zap.Int("cousins", cousins.Cardinality()),
		zap.Int("edges", len(g.Edges)),
	)
	return g, nil
}

// immediateRelatives таблицы, связанные с t напрямую, кроме самой t.
func (b *Builder) immediateRelatives(t *schema.Table, includeExcluded bool) mapset.Set[*schema.Table] {
	res := mapset.NewThreadUnsafeSet[*schema.Table]()
	for _, col := range t.Columns() {
		if !includeExcluded && col.IsExcluded {
			continue
		}
		for _, l := range col.Children() {
			if b.opts.IncludeImplied || !l.Constraint.IsImplied() {
				res.Add(l.Column.Table())
			}
		}
		for _, l := range col.Parents() {
			if b.opts.IncludeImplied || !l.Constraint.IsImplied() {
				res.Add(l.Column.Table())
			}
		}
	}
	res.Remove(t)
	return res
}

// relatedEdges связи колонки. Если target задан, только связи с колонками target.
func (b *Builder) relatedEdges(col *schema.Column, target *schema.Table, includeExcluded bool) []*Edge {
	if !includeExcluded && col.IsExcluded {
		return nil
	}
	var res []*Edge
	for _, l := range col.Parents() {
		if target != nil && l.Column.Table() != target {
			continue
		}
		if target == nil && !includeExcluded && l.Column.IsExcluded {
			continue
		}
		if implied := l.Constraint.IsImplied(); !implied || b.opts.IncludeImplied {
			res = append(res, newEdge(l.Column, col, implied))
		}
	}
	for _, l := range col.Children() {
		if target != nil && l.Column.Table() != target {
			continue
		}
		if target == nil && !includeExcluded && l.Column.IsExcluded {
			continue
		}
		if implied := l.Constraint.IsImplied(); !implied || b.opts.IncludeImplied {
			res = append(res, newEdge(col, l.Column, implied))
		}
	}
	return res
}

// pairEdges связи между колонками двух таблиц в обе стороны.
func (b *Builder) pairEdges(a, other *schema.Table, includeExcluded bool) []*Edge {
	var res []*Edge
	for _, col := range a.Columns() {
		res = append(res, b.relatedEdges(col, other, includeExcluded)...)
	}
	return res
}

// visibleColumns у центральной таблицы видны все колонки, у родственников неисключенные
// и те исключенные, на которые ведет нарисованная связь.
func visibleColumns(n *Node, endpoints mapset.Set[*schema.Column]) []*schema.Column {
	switch n.Role {
	case RoleFocal:
		return n.Table.Columns()
	case RoleCousin:
		return nil
	}
	var res []*schema.Column
	for _, col := range n.Table.Columns() {
		if !col.IsExcluded || endpoints.Contains(col) {
			res = append(res, col)
		}
	}
	return res
}

func sorted(set mapset.Set[*schema.Table]) []*schema.Table {
	res := set.ToSlice()
	schema.SortTables(res)
	return res
}

// checkLinks проверяет, что связи таблицы ведут к действующим ограничениям.
func checkLinks(t *schema.Table) error {
	for _, col := range t.Columns() {
		if col.Table() != t {
			return xerrors.Errorf("column %q is not owned by %q: %w", col.Name, t, schema.ErrInvalidGraph)
		}
		for _, links := range [][]schema.Link{col.Parents(), col.Children()} {
			for _, l := range links {
				if l.Column == nil || l.Constraint == nil || !l.Constraint.IsLinked() {
					return xerrors.Errorf("column %q has a dangling link: %w", col, schema.ErrInvalidGraph)
				}
			}
		}
	}
	return nil
}
