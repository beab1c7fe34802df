package render_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Feresey/relgraph/infer"
	"github.com/Feresey/relgraph/neighborhood"
	"github.com/Feresey/relgraph/render"
	"github.com/Feresey/relgraph/schema"
	"github.com/Feresey/relgraph/schema/schematest"
)

func TestOrder(t *testing.T) {
	b := schematest.New(t, "public").
		Table("a", "*id").
		Table("b", "*id")
	b.Schema()

	var buf bytes.Buffer
	require.NoError(t, render.Order(&buf, []*schema.Table{b.Get("a"), b.Get("b")}))
	assert.Equal(t, "public.a\npublic.b\n", buf.String())

	buf.Reset()
	require.NoError(t, render.Order(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestSacrificed(t *testing.T) {
	b := schematest.New(t, "public").
		Table("a", "*id", "b_id").
		Table("b", "*id").
		FK("a.b_id", "b.id")
	s := b.Schema()

	var buf bytes.Buffer
	require.NoError(t, render.Sacrificed(&buf, s.ForeignKeys()))
	assert.Equal(t, "public.a(b_id) -> public.b(id) \"fk_a_b_id_b_id\"\n", buf.String())
}

func TestAnomalies(t *testing.T) {
	b := schematest.New(t, "public").
		Table("customer", "*customer_id").
		Table("order", "*id", "customer_id")
	b.Schema()

	var buf bytes.Buffer
	require.NoError(t, render.Anomalies(&buf, []infer.Link{{
		Parent: b.Column("customer.customer_id"),
		Child:  b.Column("order.customer_id"),
	}}))
	assert.Equal(t,
		"public.order.customer_id's name implies that it's a child of public.customer.customer_id, but it doesn't reference that column.\n",
		buf.String())
}

func TestNeighborhood(t *testing.T) {
	b := schematest.New(t, "public").
		Table("region", "*id").
		Table("customer", "*id", "region_id", "name:VARCHAR").
		Table("order", "*id", "customer_id", "note:text").
		FK("customer.region_id", "region.id").
		FK("order.customer_id", "customer.id")
	b.Column("order.note").IsExcluded = true
	b.Column("customer.name").IsExcluded = true
	b.Schema()

	g, err := neighborhood.NewBuilder(zap.NewNop(), neighborhood.Options{TwoDegrees: true}).Build(b.Get("order"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render.Neighborhood(&buf, g))
	out := buf.String()

	assert.Contains(t, out, `digraph "order" {`)
	assert.Contains(t, out, `"order":"customer_id":w -> "customer":"id.type":e`)
	assert.Contains(t, out, `"customer":"region_id":w -> "region":"elipses":e`)
	assert.Contains(t, out, `<TD PORT="elipses" COLSPAN="2" ALIGN="LEFT">...</TD>`)
	// исключенные колонки рисуются только у центральной таблицы
	assert.Contains(t, out, `<TD PORT="note"`)
	assert.NotContains(t, out, `<TD PORT="name"`)
	assert.NotContains(t, out, "style=dashed")
}

func TestNeighborhoodExcludedEndpoint(t *testing.T) {
	b := schematest.New(t, "public").
		Table("account", "*uid", "secret").
		Table("session", "*id", "account_uid").
		FK("session.account_uid", "account.uid")
	b.Column("account.uid").IsExcluded = true
	b.Column("account.secret").IsExcluded = true
	b.Schema()

	g, err := neighborhood.NewBuilder(zap.NewNop(), neighborhood.Options{}).Build(b.Get("session"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render.Neighborhood(&buf, g))
	out := buf.String()

	// порт, на который ведет связь, есть у узла
	assert.Contains(t, out, `"session":"account_uid":w -> "account":"uid.type":e`)
	assert.Contains(t, out, `<TD PORT="uid.type"`)
	assert.NotContains(t, out, `<TD PORT="secret"`)
}
