// Package order вычисляет порядок вставки и удаления таблиц.
//
// Порядок строится на копии схемы: листья снимаются в конец списка, корни в начало.
// Если снимать нечего, значит остались циклы, и они разрываются по шагам:
// сначала удаляются выведенные связи, затем самоссылки, затем одна связь
// таблицы с наибольшим перекосом между числом детей и родителей.
package order

import (
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/schema"
)

// ErrNoProgress означает, что разрыв циклов ничего не удалил. Это ошибка в алгоритме.
var ErrNoProgress = xerrors.New("ordering made no progress")

// Result порядок таблиц исходной схемы.
type Result struct {
	// Порядок вставки: родители раньше детей.
	Insertion []*schema.Table
	// Объявленные связи, удаленные для разрыва циклов.
	Sacrificed []*schema.ForeignKey
	// Выведенные связи, отброшенные при первом зацикливании.
	Dropped []*schema.ForeignKey
	// Таблицы из других схем, они не упорядочиваются.
	Remote []*schema.Table
}

// Deletion возвращает порядок удаления, обратный порядку вставки.
func (r *Result) Deletion() []*schema.Table {
	res := make([]*schema.Table, len(r.Insertion))
	for i, t := range r.Insertion {
		res[len(res)-1-i] = t
	}
	return res
}

// Empty - упорядочивать было нечего.
func (r *Result) Empty() bool {
	return len(r.Insertion) == 0 && len(r.Remote) == 0
}

type Orderer struct {
	log *zap.Logger
}

func NewOrderer(log *zap.Logger) *Orderer {
	return &Orderer{log: log.Named("orderer")}
}

// Order упорядочивает таблицы. Исходная схема не изменяется.
func (o *Orderer) Order(s *schema.Schema) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, xerrors.Errorf("validate schema: %w", err)
	}
	if len(s.Tables) == 0 {
		o.log.Info("schema has no tables")
		return &Result{}, nil
	}

	clone, origins := s.Clone()
	st := newState(o.log, clone)
	if err := st.run(); err != nil {
		return nil, err
	}

	res := &Result{
		Insertion:  origins.Tables(st.order()),
		Sacrificed: origins.ForeignKeys(st.sacrificed),
		Dropped:    origins.ForeignKeys(st.dropped),
		Remote:     origins.Tables(st.remote),
	}
	o.log.Debug("tables ordered",
		zap.Int("tables", len(res.Insertion)),
		zap.Int("sacrificed", len(res.Sacrificed)),
		zap.Int("dropped", len(res.Dropped)),
		zap.Int("remote", len(res.Remote)),
	)
	return res, nil
}

// state рабочее состояние над копией схемы.
type state struct {
	log *zap.Logger

	remaining  mapset.Set[*schema.Table]
	heads      []*schema.Table
	tails      []*schema.Table
	unattached []*schema.Table
	remote     []*schema.Table

	sacrificed []*schema.ForeignKey
	dropped    []*schema.ForeignKey
	// выведенные связи отбрасываются только один раз
	impliedDropped bool
}

func newState(log *zap.Logger, s *schema.Schema) *state {
	st := &state{
		log:       log,
		remaining: mapset.NewThreadUnsafeSet[*schema.Table](),
	}
	for _, t := range s.SortedTables() {
		st.remaining.Add(t)
	}
	return st
}

func (st *state) order() []*schema.Table {
	res := make([]*schema.Table, 0, len(st.heads)+len(st.tails)+len(st.unattached))
	res = append(res, st.heads...)
	res = append(res, st.tails...)
	res = append(res, st.unattached...)
	return res
}

func (st *state) run() error {
	st.detachRemote()
	st.detachFloaters()

	for pass := 1; st.remaining.Cardinality() != 0; pass++ {
		leaves := st.peelLeaves()
		roots := st.peelRoots()
		st.log.Debug("peel pass",
			zap.Int("pass", pass),
			zap.Int("leaves", leaves),
			zap.Int("roots", roots),
			zap.Int("remaining", st.remaining.Cardinality()),
		)
		if leaves+roots != 0 {
			continue
		}
		if !st.breakCycle() {
			return xerrors.Errorf("%d tables remaining: %w", st.remaining.Cardinality(), ErrNoProgress)
		}
	}
	return nil
}

// remainingSorted возвращает оставшиеся таблицы в каноническом порядке.
func (st *state) remainingSorted() []*schema.Table {
	tables := st.remaining.ToSlice()
	schema.SortTables(tables)
	return tables
}

func (st *state) detachRemote() {
	for _, t := range st.remainingSorted() {
		if !t.IsRemote {
			continue
		}
		t.UnlinkParents()
		t.UnlinkChildren()
		st.remaining.Remove(t)
		st.remote = append(st.remote, t)
	}
}

func (st *state) detachFloaters() {
	for _, t := range st.remainingSorted() {
		if t.IsRoot() && t.IsLeaf() {
			st.remaining.Remove(t)
			st.unattached = append(st.unattached, t)
		}
	}
	sortBatch(st.unattached)
}

// peelLeaves снимает таблицы без детей в начало хвоста.
func (st *state) peelLeaves() int {
	var batch []*schema.Table
	for _, t := range st.remainingSorted() {
		if t.IsLeaf() {
			batch = append(batch, t)
		}
	}
	sortBatch(batch)
	for _, t := range batch {
		t.UnlinkParents()
		st.remaining.Remove(t)
	}
	st.tails = append(batch, st.tails...)
	return len(batch)
}

// peelRoots снимает таблицы без родителей в конец головы.
func (st *state) peelRoots() int {
	var batch []*schema.Table
	for _, t := range st.remainingSorted() {
		if t.IsRoot() {
			batch = append(batch, t)
		}
	}
	sortBatch(batch)
	for _, t := range batch {
		t.UnlinkChildren()
		st.remaining.Remove(t)
	}
	st.heads = append(st.heads, batch...)
	return len(batch)
}

// breakCycle удаляет связи среди оставшихся таблиц. Возвращает false, если удалить нечего.
func (st *state) breakCycle() bool {
	tables := st.remainingSorted()

	if !st.impliedDropped {
		st.impliedDropped = true
		var removed []*schema.ForeignKey
		for _, t := range tables {
			removed = append(removed, t.RemoveNonRealForeignKeys()...)
		}
		if len(removed) != 0 {
			st.log.Debug("implied constraints dropped", zap.Int("n", len(removed)))
			st.dropped = append(st.dropped, removed...)
			return true
		}
	}

	var selfRefs []*schema.ForeignKey
	for _, t := range tables {
		selfRefs = append(selfRefs, t.RemoveSelfReferencingConstraints()...)
	}
	if len(selfRefs) != 0 {
		for _, fk := range selfRefs {
			st.log.Info("self reference removed", zap.Stringer("constraint", fk), zap.Stringer("table", fk.ChildTable))
		}
		st.sacrificed = append(st.sacrificed, selfRefs...)
		return true
	}

	victim := mostUnbalanced(tables)
	if victim == nil {
		return false
	}
	fk := victim.RemoveAForeignKey()
	if fk == nil {
		return false
	}
	st.log.Info("cycle broken",
		zap.Stringer("table", victim),
		zap.Stringer("constraint", fk),
		zap.Stringer("child", fk.ChildTable),
		zap.Stringer("parent", fk.ParentTable),
	)
	st.sacrificed = append(st.sacrificed, fk)
	return true
}

// mostUnbalanced выбирает таблицу с наибольшей разницей между максимальным
// числом детей и родителей. Таблицы уже отсортированы, так что первая победа остается.
func mostUnbalanced(tables []*schema.Table) *schema.Table {
	var (
		victim *schema.Table
		best   = -1
	)
	for _, t := range tables {
		diff := abs(t.MaxChildren() - t.MaxParents())
		if diff > best {
			victim, best = t, diff
		}
	}
	return victim
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
