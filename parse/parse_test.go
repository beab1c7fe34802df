package parse

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Feresey/relgraph/parse/queries"
	"github.com/Feresey/relgraph/schema"
)

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	lc := zap.NewDevelopmentConfig()
	lc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	log, err := lc.Build(zap.AddStacktrace(zap.WarnLevel))
	require.NoError(t, err)
	return log
}

var (
	customerTable = queries.Table{OID: 1, Schema: "public", Table: "customer", Kind: "r"}
	orderTable    = queries.Table{OID: 2, Schema: "public", Table: "order", Kind: "r"}

	customerColumns = []queries.Column{
		{TableOID: 1, ColumnNum: 1, ColumnName: "id", TypeName: "int4"},
		{TableOID: 1, ColumnNum: 2, ColumnName: "email", TypeName: "varchar", IsNullable: true,
			CharacterMaxLength: sql.NullInt32{Int32: 255, Valid: true}},
	}
	orderColumns = []queries.Column{
		{TableOID: 2, ColumnNum: 2, ColumnName: "customer_id", TypeName: "int4"},
		{TableOID: 2, ColumnNum: 1, ColumnName: "id", TypeName: "int4"},
	}

	customerKeys = []queries.Constraint{
		{SchemaName: "public", ConstraintOID: 10, ConstraintName: "customer_pkey", ConstraintType: "p",
			TableOID: 1, Columns: []string{"id"}},
		{SchemaName: "public", ConstraintOID: 11, ConstraintName: "customer_email_key", ConstraintType: "u",
			TableOID: 1, Columns: []string{"email"}},
	}
	orderKeys = []queries.Constraint{
		{SchemaName: "public", ConstraintOID: 21, ConstraintName: "order_customer_fk", ConstraintType: "f",
			TableOID: 2, Columns: []string{"customer_id"},
			ForeignTableOID: sql.NullInt32{Int32: 1, Valid: true}, ForeignColumns: []string{"id"},
			DeleteRule: "c", UpdateRule: "a"},
		{SchemaName: "public", ConstraintOID: 20, ConstraintName: "order_pkey", ConstraintType: "p",
			TableOID: 2, Columns: []string{"id"}},
	}
)

func checkOrderSchema(t *testing.T, s *schema.Schema) (customer, order *schema.Table) {
	t.Helper()
	r := require.New(t)

	customer = s.Table("public", "customer")
	order = s.Table("public", "order")
	r.NotNil(customer)
	r.NotNil(order)

	r.Len(order.Columns(), 2)
	assert.Equal(t, "id", order.Columns()[0].Name)
	assert.Equal(t, []*schema.Column{order.Column("id")}, order.PrimaryKey())
	assert.True(t, customer.Column("email").IsUnique)
	assert.Equal(t, 255, customer.Column("email").Length)
	assert.True(t, customer.Column("email").IsNullable)
	assert.False(t, customer.Column("id").IsNullable)

	r.Len(order.ForeignKeys(), 1)
	fk := order.ForeignKeys()[0]
	assert.Equal(t, "order_customer_fk", fk.Name.Name)
	assert.Equal(t, customer, fk.ParentTable)
	assert.Equal(t, schema.RuleCascade, fk.DeleteRule)
	assert.Equal(t, schema.RuleNoAction, fk.UpdateRule)
	assert.True(t, fk.IsReal())
	assert.Equal(t, 1, customer.NumChildren())
	return customer, order
}

func TestParse(t *testing.T) {
	ctx := context.Background()
	log := testLogger(t)

	t.Run("simple", func(t *testing.T) {
		q := NewMockQueries(t)
		q.On("Tables", mock.Anything, mock.Anything, []queries.TablesPattern{{Schema: "public"}}).
			Return([]queries.Table{customerTable, orderTable}, nil)
		q.On("Columns", mock.Anything, mock.Anything, []int{1, 2}).
			Return(append(append([]queries.Column{}, orderColumns...), customerColumns...), nil)
		q.On("Constraints", mock.Anything, mock.Anything, []int{1, 2}).
			Return(append(append([]queries.Constraint{}, orderKeys...), customerKeys...), nil)

		p := Parser{log: log.Named(t.Name()), q: q}
		s, err := p.LoadSchema(ctx, Config{
			Schema:   "public",
			Patterns: []Pattern{{Schema: "public"}},
			Workers:  2,
		})
		require.NoError(t, err)
		require.Len(t, s.Tables, 2)

		customer, order := checkOrderSchema(t, s)
		assert.False(t, customer.IsRemote)
		assert.False(t, order.IsRemote)
		assert.Equal(t, 2, order.Name.OID)
	})

	t.Run("referenced table", func(t *testing.T) {
		q := NewMockQueries(t)
		q.On("Tables", mock.Anything, mock.Anything, []queries.TablesPattern{{Schema: "public", Tables: "order"}}).
			Return([]queries.Table{orderTable}, nil)
		q.On("Columns", mock.Anything, mock.Anything, []int{2}).Return(orderColumns, nil)
		q.On("Constraints", mock.Anything, mock.Anything, []int{2}).Return(orderKeys, nil)
		q.On("TablesByOID", mock.Anything, mock.Anything, []int{1}).Return([]queries.Table{customerTable}, nil)
		q.On("Columns", mock.Anything, mock.Anything, []int{1}).Return(customerColumns, nil)
		q.On("Constraints", mock.Anything, mock.Anything, []int{1}).Return(append(customerKeys, queries.Constraint{
			SchemaName: "public", ConstraintOID: 12, ConstraintName: "customer_region_fk", ConstraintType: "f",
			TableOID: 1, Columns: []string{"id"},
			ForeignTableOID: sql.NullInt32{Int32: 99, Valid: true}, ForeignColumns: []string{"id"},
		}), nil)

		p := Parser{log: log.Named(t.Name()), q: q}
		s, err := p.LoadSchema(ctx, Config{
			Schema:   "public",
			Patterns: []Pattern{{Schema: "public", Tables: "order"}},
		})
		require.NoError(t, err)
		require.Len(t, s.Tables, 2)

		customer, order := checkOrderSchema(t, s)
		assert.True(t, customer.IsRemote)
		assert.False(t, order.IsRemote)
		// внешние ключи загруженных по ссылке таблиц не загружаются
		assert.Empty(t, customer.ForeignKeys())
	})

	t.Run("other schema is remote", func(t *testing.T) {
		audit := queries.Table{OID: 3, Schema: "audit", Table: "log", Kind: "v"}
		q := NewMockQueries(t)
		q.On("Tables", mock.Anything, mock.Anything, mock.Anything).Return([]queries.Table{audit}, nil)
		q.On("Columns", mock.Anything, mock.Anything, []int{3}).Return([]queries.Column{
			{TableOID: 3, ColumnNum: 1, ColumnName: "id", TypeName: "int8"},
		}, nil)
		q.On("Constraints", mock.Anything, mock.Anything, []int{3}).Return(nil, nil)

		p := Parser{log: log.Named(t.Name()), q: q}
		s, err := p.LoadSchema(ctx, Config{Schema: "public", Patterns: []Pattern{{Schema: "audit"}}})
		require.NoError(t, err)
		table := s.Table("audit", "log")
		require.NotNil(t, table)
		assert.True(t, table.IsRemote)
		assert.True(t, table.IsView)
	})
}

func TestParsePartitionedParent(t *testing.T) {
	measurement := queries.Table{OID: 5, Schema: "public", Table: "measurement", Kind: "p"}
	sensor := queries.Table{OID: 6, Schema: "public", Table: "sensor", Kind: "r"}

	q := NewMockQueries(t)
	q.On("Tables", mock.Anything, mock.Anything, mock.Anything).
		Return([]queries.Table{measurement, sensor}, nil)
	q.On("Columns", mock.Anything, mock.Anything, []int{5, 6}).Return([]queries.Column{
		{TableOID: 5, ColumnNum: 1, ColumnName: "id", TypeName: "int8"},
		{TableOID: 6, ColumnNum: 1, ColumnName: "id", TypeName: "int4"},
		{TableOID: 6, ColumnNum: 2, ColumnName: "measurement_id", TypeName: "int8"},
	}, nil)
	q.On("Constraints", mock.Anything, mock.Anything, []int{5, 6}).Return([]queries.Constraint{
		{SchemaName: "public", ConstraintOID: 50, ConstraintName: "measurement_pkey", ConstraintType: "p",
			TableOID: 5, Columns: []string{"id"}},
		{SchemaName: "public", ConstraintOID: 60, ConstraintName: "sensor_pkey", ConstraintType: "p",
			TableOID: 6, Columns: []string{"id"}},
		{SchemaName: "public", ConstraintOID: 61, ConstraintName: "sensor_measurement_fk", ConstraintType: "f",
			TableOID: 6, Columns: []string{"measurement_id"},
			ForeignTableOID: sql.NullInt32{Int32: 5, Valid: true}, ForeignColumns: []string{"id"}},
		// копии ключа на партиции measurement_y2023 и measurement_y2024
		{SchemaName: "public", ConstraintOID: 62, ConstraintName: "sensor_measurement_fk", ConstraintType: "f",
			TableOID: 6, Columns: []string{"measurement_id"},
			ForeignTableOID: sql.NullInt32{Int32: 7, Valid: true}, ForeignColumns: []string{"id"},
			ParentOID: 61},
		{SchemaName: "public", ConstraintOID: 63, ConstraintName: "sensor_measurement_fk", ConstraintType: "f",
			TableOID: 6, Columns: []string{"measurement_id"},
			ForeignTableOID: sql.NullInt32{Int32: 8, Valid: true}, ForeignColumns: []string{"id"},
			ParentOID: 61},
	}, nil)

	p := Parser{log: testLogger(t), q: q}
	s, err := p.LoadSchema(context.Background(), Config{Schema: "public", Patterns: []Pattern{{Schema: "public"}}})
	require.NoError(t, err)

	// партиции не загружаются, TablesByOID не вызывается
	require.Len(t, s.Tables, 2)
	q.AssertNotCalled(t, "TablesByOID", mock.Anything, mock.Anything, mock.Anything)

	sensorTable := s.Table("public", "sensor")
	require.NotNil(t, sensorTable)
	require.Len(t, sensorTable.ForeignKeys(), 1)
	fk := sensorTable.ForeignKeys()[0]
	assert.Equal(t, 61, fk.Name.OID)
	assert.Equal(t, s.Table("public", "measurement"), fk.ParentTable)
	assert.Equal(t, 1, s.Table("public", "measurement").NumChildren())
}

func TestParseErrors(t *testing.T) {
	ctx := context.Background()
	log := testLogger(t)
	errDB := errors.New("db is down")

	tests := []struct {
		name  string
		setup func(q *MockQueries)
	}{
		{
			name: "tables",
			setup: func(q *MockQueries) {
				q.On("Tables", mock.Anything, mock.Anything, mock.Anything).Return(nil, errDB)
			},
		},
		{
			name: "columns",
			setup: func(q *MockQueries) {
				q.On("Tables", mock.Anything, mock.Anything, mock.Anything).Return([]queries.Table{customerTable}, nil)
				q.On("Columns", mock.Anything, mock.Anything, []int{1}).Return(nil, errDB)
			},
		},
		{
			name: "constraints",
			setup: func(q *MockQueries) {
				q.On("Tables", mock.Anything, mock.Anything, mock.Anything).Return([]queries.Table{customerTable}, nil)
				q.On("Columns", mock.Anything, mock.Anything, []int{1}).Return(customerColumns, nil)
				q.On("Constraints", mock.Anything, mock.Anything, []int{1}).Return(nil, errDB)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			q := NewMockQueries(t)
			tt.setup(q)
			p := Parser{log: log.Named(tt.name), q: q}
			_, err := p.LoadSchema(ctx, Config{Schema: "public", Patterns: []Pattern{{Schema: "public"}}})
			require.ErrorIs(t, err, errDB)
		})
	}
}

func TestParseUnknownColumn(t *testing.T) {
	q := NewMockQueries(t)
	q.On("Tables", mock.Anything, mock.Anything, mock.Anything).Return([]queries.Table{customerTable}, nil)
	q.On("Columns", mock.Anything, mock.Anything, []int{1}).Return(customerColumns, nil)
	q.On("Constraints", mock.Anything, mock.Anything, []int{1}).Return([]queries.Constraint{
		{ConstraintName: "customer_pkey", ConstraintType: "p", TableOID: 1, Columns: []string{"uuid"}},
	}, nil)

	p := Parser{log: testLogger(t), q: q}
	_, err := p.LoadSchema(context.Background(), Config{Schema: "public", Patterns: []Pattern{{Schema: "public"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "uuid" not found`)
}
