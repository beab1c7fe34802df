package neighborhood

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Feresey/relgraph/schema"
)

// Port куда на узле присоединяется связь.
type Port int

const (
	// К строке колонки
	PortColumn Port = iota
	// К описанию колонки, когда таблица нарисована с подробностями
	PortDetail
	// К заголовку таблицы, колонки которой не рисуются
	PortEllipsis
)

func (p Port) String() string {
	switch p {
	case PortColumn:
		return "column"
	case PortDetail:
		return "detail"
	case PortEllipsis:
		return "ellipsis"
	default:
		return "unknown"
	}
}

// Edge связь дочерней колонки с родительской на диаграмме.
type Edge struct {
	// Не меняется между запусками для одних и тех же колонок
	ID uuid.UUID

	Parent *schema.Column
	Child  *schema.Column

	Implied bool
	// Связь ведет к кузену или проходит между кузеном и родственником
	Cousin bool

	ParentPort Port
	ChildPort  Port
}

func newEdge(parent, child *schema.Column, implied bool) *Edge {
	return &Edge{
		Parent:  parent,
		Child:   child,
		Implied: implied,
	}
}

type edgeKey struct {
	child, childCol   string
	parent, parentCol string
	implied           bool
}

func (e *Edge) key() edgeKey {
	return edgeKey{
		child:     e.Child.Table().String(),
		childCol:  strings.ToLower(e.Child.Name),
		parent:    e.Parent.Table().String(),
		parentCol: strings.ToLower(e.Parent.Name),
		implied:   e.Implied,
	}
}

func (e *Edge) String() string {
	s := e.Child.String() + " -> " + e.Parent.String()
	if e.Implied {
		s += " (implied)"
	}
	return s
}

// compare порядок связей: дочерняя таблица и колонка, затем родительские, объявленные раньше выведенных.
func (e *Edge) compare(other *Edge) int {
	if rc := e.Child.Table().Compare(other.Child.Table()); rc != 0 {
		return rc
	}
	if rc := strings.Compare(strings.ToLower(e.Child.Name), strings.ToLower(other.Child.Name)); rc != 0 {
		return rc
	}
	if rc := e.Parent.Table().Compare(other.Parent.Table()); rc != 0 {
		return rc
	}
	if rc := strings.Compare(strings.ToLower(e.Parent.Name), strings.ToLower(other.Parent.Name)); rc != 0 {
		return rc
	}
	switch {
	case e.Implied == other.Implied:
		return 0
	case e.Implied:
		return 1
	default:
		return -1
	}
}

func edgeID(e *Edge) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(e.String()))
}

// edgeSet набор связей без повторов. Первая добавленная связь остается.
type edgeSet struct {
	edges map[edgeKey]*Edge
}

func newEdgeSet() *edgeSet {
	return &edgeSet{edges: make(map[edgeKey]*Edge)}
}

func (s *edgeSet) add(e *Edge) bool {
	key := e.key()
	if _, ok := s.edges[key]; ok {
		return false
	}
	s.edges[key] = e
	return true
}

func (s *edgeSet) sorted() []*Edge {
	res := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].compare(res[j]) < 0
	})
	return res
}
