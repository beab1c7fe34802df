package policy_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Feresey/relgraph/policy"
	"github.com/Feresey/relgraph/schema/schematest"
)

func testSchema(t *testing.T) *schematest.Builder {
	t.Helper()
	return schematest.New(t, "public").
		Table("customer", "*id", "created_at:timestamp", "name:text").
		Table("order", "*id", "customer_id", "created_at:timestamp").
		Table("audit", "*id", "customer_id")
}

func TestRegexp(t *testing.T) {
	b := testSchema(t)
	s := b.Schema()

	p, err := policy.NewRegexp(policy.Config{
		ExcludeImpliedParents:  []string{`audit\..*`},
		ExcludeImpliedChildren: []string{`public\.customer\.id`},
		ExcludeColumns:         []string{`.*\.CREATED_AT`},
	})
	require.NoError(t, err)
	require.NoError(t, p.Apply(s))

	assert.False(t, b.Column("audit.customer_id").AllowImpliedParents)
	assert.False(t, b.Column("audit.id").AllowImpliedParents)
	assert.True(t, b.Column("order.customer_id").AllowImpliedParents)

	assert.False(t, b.Column("customer.id").AllowImpliedChildren)
	assert.True(t, b.Column("order.id").AllowImpliedChildren)

	assert.True(t, b.Column("customer.created_at").IsExcluded)
	assert.True(t, b.Column("order.created_at").IsExcluded)
	assert.False(t, b.Column("customer.name").IsExcluded)
}

func TestRegexpInvalid(t *testing.T) {
	_, err := policy.NewRegexp(policy.Config{ExcludeColumns: []string{"("}})
	require.Error(t, err)
}

func TestLua(t *testing.T) {
	b := testSchema(t)
	s := b.Schema()

	lp, err := policy.NewLua(zap.NewNop(), strings.NewReader(`
		function column_policy(table, column)
			if table.name == "audit" then
				return { implied_parents = false }
			end
			if column.type == "timestamp" then
				return { excluded = true }
			end
			if column.is_primary and table.schema == "public" and table.name == "order" then
				return { implied_children = false }
			end
			return nil
		end
	`), "policy.lua")
	require.NoError(t, err)
	defer lp.Close()

	require.NoError(t, lp.Apply(s))

	assert.False(t, b.Column("audit.customer_id").AllowImpliedParents)
	assert.True(t, b.Column("audit.customer_id").AllowImpliedChildren)
	assert.True(t, b.Column("customer.created_at").IsExcluded)
	assert.False(t, b.Column("order.id").AllowImpliedChildren)
	assert.True(t, b.Column("customer.id").AllowImpliedChildren)
	assert.False(t, b.Column("customer.name").IsExcluded)
}

func TestLuaErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		apply  bool
	}{
		{
			name:   "syntax error",
			source: `function column_policy(`,
		},
		{
			name:   "missing function",
			source: `column_policy = 1`,
		},
		{
			name:   "runtime error",
			source: `function column_policy(t, c) error("boom") end`,
			apply:  true,
		},
		{
			name:   "wrong result",
			source: `function column_policy(t, c) return "yes" end`,
			apply:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema(t).Schema()
			lp, err := policy.NewLua(zap.NewNop(), strings.NewReader(tt.source), "policy.lua")
			if !tt.apply {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer lp.Close()
			require.Error(t, lp.Apply(s))
		})
	}
}

func TestChain(t *testing.T) {
	b := testSchema(t)
	s := b.Schema()

	re, err := policy.NewRegexp(policy.Config{ExcludeColumns: []string{`customer\.name`}})
	require.NoError(t, err)
	lp, err := policy.NewLua(zap.NewNop(), strings.NewReader(`
		function column_policy(table, column)
			return { excluded = false, implied_parents = true }
		end
	`), "noop.lua")
	require.NoError(t, err)
	defer lp.Close()

	require.NoError(t, policy.Chain{re, lp}.Apply(s))
	// следующая политика не снимает запрет предыдущей
	assert.True(t, b.Column("customer.name").IsExcluded)
}
