// Package policy помечает колонки, которые не участвуют в выводе связей
// или не рисуются на диаграммах.
package policy

import (
	"regexp"

	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/schema"
)

// Policy меняет флаги колонок схемы. Политики только запрещают, но не разрешают обратно.
type Policy interface {
	Apply(s *schema.Schema) error
}

// Chain применяет политики по порядку.
type Chain []Policy

func (c Chain) Apply(s *schema.Schema) error {
	for _, p := range c {
		if err := p.Apply(s); err != nil {
			return err
		}
	}
	return nil
}

type Config struct {
	// Колонки, которые не могут быть дочерними в выведенных связях
	ExcludeImpliedParents []string
	// Колонки, на которые не могут ссылаться выведенные связи
	ExcludeImpliedChildren []string
	// Колонки, которые не рисуются на диаграммах
	ExcludeColumns []string
}

// Decision что запретить колонке.
type Decision struct {
	NoImpliedParents  bool
	NoImpliedChildren bool
	Excluded          bool
}

func (d Decision) apply(col *schema.Column) {
	if d.NoImpliedParents {
		col.AllowImpliedParents = false
	}
	if d.NoImpliedChildren {
		col.AllowImpliedChildren = false
	}
	if d.Excluded {
		col.IsExcluded = true
	}
}

// Regexp сравнивает регулярные выражения с именами колонок
// вида table.column и schema.table.column без учета регистра.
type Regexp struct {
	impliedParents  []*regexp.Regexp
	impliedChildren []*regexp.Regexp
	excluded        []*regexp.Regexp
}

func NewRegexp(cfg Config) (*Regexp, error) {
	var (
		r   Regexp
		err error
	)
	if r.impliedParents, err = compile(cfg.ExcludeImpliedParents); err != nil {
		return nil, xerrors.Errorf("implied parents patterns: %w", err)
	}
	if r.impliedChildren, err = compile(cfg.ExcludeImpliedChildren); err != nil {
		return nil, xerrors.Errorf("implied children patterns: %w", err)
	}
	if r.excluded, err = compile(cfg.ExcludeColumns); err != nil {
		return nil, xerrors.Errorf("excluded columns patterns: %w", err)
	}
	return &r, nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)^(?:" + p + ")$")
		if err != nil {
			return nil, xerrors.Errorf("compile %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func (r *Regexp) Decide(col *schema.Column) Decision {
	names := []string{
		col.Table().Name.Name + "." + col.Name,
		col.String(),
	}
	return Decision{
		NoImpliedParents:  matchAny(r.impliedParents, names),
		NoImpliedChildren: matchAny(r.impliedChildren, names),
		Excluded:          matchAny(r.excluded, names),
	}
}

func (r *Regexp) Apply(s *schema.Schema) error {
	for _, t := range s.SortedTables() {
		for _, col := range t.Columns() {
			r.Decide(col).apply(col)
		}
	}
	return nil
}

func matchAny(res []*regexp.Regexp, names []string) bool {
	for _, re := range res {
		for _, name := range names {
			if re.MatchString(name) {
				return true
			}
		}
	}
	return false
}
