// Package infer ищет связи между таблицами, которые не объявлены в базе данных.
//
// Поиск эвристический: совпадение имени, типа и длины колонки не гарантирует связь.
// Найденные связи только предлагаются, создает их вызывающая сторона через Materialize.
package infer

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/schema"
)

// Link предполагаемая связь одной дочерней колонки с одной родительской.
type Link struct {
	Parent *schema.Column
	Child  *schema.Column
	Origin schema.Origin
}

func (l Link) String() string {
	return fmt.Sprintf("%s -> %s", l.Parent, l.Child)
}

// Matcher предлагает связи для набора таблиц. Таблицы не изменяются.
type Matcher interface {
	Match(tables []*schema.Table) []Link
}

// Chain объединяет результаты нескольких Matcher без повторов.
// При совпадении пары колонок остается связь от первого Matcher.
type Chain []Matcher

func (c Chain) Match(tables []*schema.Table) []Link {
	seen := mapset.NewThreadUnsafeSet[[2]*schema.Column]()
	var res []Link
	for _, m := range c {
		for _, l := range m.Match(tables) {
			if !seen.Add([2]*schema.Column{l.Parent, l.Child}) {
				continue
			}
			res = append(res, l)
		}
	}
	return res
}

// Materialize создает внешние ключи для найденных связей.
func Materialize(links []Link) ([]*schema.ForeignKey, error) {
	fks := make([]*schema.ForeignKey, 0, len(links))
	for _, l := range links {
		if l.Parent == nil || l.Child == nil {
			return nil, xerrors.Errorf("link with missing column: %w", schema.ErrInvalidGraph)
		}
		origin := l.Origin
		if origin == schema.OriginDeclared {
			origin = schema.OriginImplied
		}
		name := schema.Identifier{
			Schema: l.Child.Table().Name.Schema,
			Name:   syntheticName(l),
		}
		fk, err := schema.NewForeignKey(name, []*schema.Column{l.Child}, []*schema.Column{l.Parent}, origin)
		if err != nil {
			return nil, xerrors.Errorf("materialize %s: %w", l, err)
		}
		fks = append(fks, fk)
	}
	return fks, nil
}

func syntheticName(l Link) string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%s_%s_implied",
		l.Child.Table().Name.Name, l.Child.Name,
		l.Parent.Table().Name.Name, l.Parent.Name))
}

// linked проверяет, есть ли связь между колонками в любую сторону.
func linked(a, b *schema.Column) bool {
	return a.ParentConstraint(b) != nil || b.ParentConstraint(a) != nil
}
