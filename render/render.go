// Package render выводит результаты анализа в текст и исходники Graphviz.
package render

import (
	"embed"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/xerrors"

	"github.com/Feresey/relgraph/infer"
	"github.com/Feresey/relgraph/neighborhood"
	"github.com/Feresey/relgraph/schema"
)

//go:embed templates/*.tpl
var templates embed.FS

type TemplateName string

const (
	OrderTemplate        TemplateName = "order.txt.tpl"
	SacrificedTemplate   TemplateName = "sacrificed.txt.tpl"
	AnomaliesTemplate    TemplateName = "anomalies.txt.tpl"
	NeighborhoodTemplate TemplateName = "neighborhood.dot.tpl"
)

// Order по одной таблице на строку.
func Order(w io.Writer, tables []*schema.Table) error {
	return dump(w, OrderTemplate, tables)
}

// Sacrificed связи, удаленные для разрыва циклов.
func Sacrificed(w io.Writer, fks []*schema.ForeignKey) error {
	return dump(w, SacrificedTemplate, fks)
}

// Anomalies колонки, которые по имени похожи на внешние ключи, но не объявлены ими.
func Anomalies(w io.Writer, links []infer.Link) error {
	return dump(w, AnomaliesTemplate, links)
}

// Neighborhood исходник диаграммы окрестности таблицы.
func Neighborhood(w io.Writer, g *neighborhood.Graph) error {
	return dump(w, NeighborhoodTemplate, g)
}

func dump(w io.Writer, tplName TemplateName, data any) error {
	t := template.New("").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap{
			"columnNames": func(cols []*schema.Column) string {
				names := make([]string, 0, len(cols))
				for _, col := range cols {
					names = append(names, col.Name)
				}
				return strings.Join(names, ", ")
			},
			"nodeID":     nodeID,
			"parentPort": func(e *neighborhood.Edge) string { return port(e.Parent, e.ParentPort) },
			"childPort":  func(e *neighborhood.Edge) string { return port(e.Child, e.ChildPort) },
			"isCousin": func(n *neighborhood.Node) bool {
				return n.Role == neighborhood.RoleCousin
			},
		})
	tpl, err := t.ParseFS(templates, "templates/*.tpl")
	if err != nil {
		return xerrors.Errorf("parse templates: %w", err)
	}

	if err := tpl.ExecuteTemplate(w, string(tplName), data); err != nil {
		return xerrors.Errorf("execute template %s: %w", tplName, err)
	}
	return nil
}

// nodeID имя узла. Таблицы из других схем пишутся с именем схемы.
func nodeID(t *schema.Table) string {
	if t.IsRemote {
		return t.String()
	}
	return t.Name.Name
}

func port(col *schema.Column, p neighborhood.Port) string {
	switch p {
	case neighborhood.PortDetail:
		return col.Name + ".type"
	case neighborhood.PortEllipsis:
		return "elipses"
	default:
		return col.Name
	}
}
