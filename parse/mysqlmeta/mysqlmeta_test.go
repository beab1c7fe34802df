package mysqlmeta

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Feresey/relgraph/parse/queries"
	"github.com/Feresey/relgraph/schema"
)

var (
	tableColumns  = []string{"TABLE_NAME", "TABLE_TYPE", "TABLE_COMMENT"}
	columnColumns = []string{
		"TABLE_NAME", "ORDINAL_POSITION", "COLUMN_NAME", "DATA_TYPE",
		"CHARACTER_MAXIMUM_LENGTH", "IS_NULLABLE", "COLUMN_KEY", "COLUMN_COMMENT",
	}
	keyColumns = []string{
		"CONSTRAINT_NAME", "TABLE_NAME", "COLUMN_NAME",
		"REFERENCED_TABLE_SCHEMA", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME",
		"DELETE_RULE", "UPDATE_RULE",
	}
)

func TestLoadSchema(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mk.ExpectQuery("SELECT\\s+TABLE_NAME,\\s+TABLE_TYPE.+").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows(tableColumns).
			AddRow("customer", "BASE TABLE", "").
			AddRow("order_line", "BASE TABLE", "").
			AddRow("orders", "BASE TABLE", "customer orders").
			AddRow("recent_orders", "VIEW", ""))
	mk.ExpectQuery("SELECT\\s+TABLE_NAME,\\s+ORDINAL_POSITION.+").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows(columnColumns).
			AddRow("customer", 1, "id", "int", nil, "NO", "PRI", "").
			AddRow("customer", 2, "email", "varchar", 255, "YES", "UNI", "").
			AddRow("order_line", 1, "order_id", "int", nil, "NO", "PRI", "").
			AddRow("order_line", 2, "line_no", "int", nil, "NO", "PRI", "").
			AddRow("orders", 1, "id", "int", nil, "NO", "PRI", "").
			AddRow("orders", 2, "customer_id", "int", nil, "NO", "MUL", "").
			AddRow("orders", 3, "created_by", "int", nil, "YES", "MUL", "").
			AddRow("recent_orders", 1, "id", "int", nil, "NO", "", ""))
	mk.ExpectQuery("SELECT\\s+k.CONSTRAINT_NAME.+").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow("PRIMARY", "customer", "id", nil, nil, nil, nil, nil).
			AddRow("PRIMARY", "order_line", "order_id", nil, nil, nil, nil, nil).
			AddRow("PRIMARY", "order_line", "line_no", nil, nil, nil, nil, nil).
			AddRow("order_line_order_fk", "order_line", "order_id", "shop", "orders", "id", "CASCADE", "NO ACTION").
			AddRow("PRIMARY", "orders", "id", nil, nil, nil, nil, nil).
			AddRow("orders_created_by_fk", "orders", "created_by", "auth", "users", "id", "SET NULL", "RESTRICT").
			AddRow("orders_customer_fk", "orders", "customer_id", "shop", "customer", "id", "RESTRICT", "CASCADE"))
	mk.ExpectQuery("(?s)SELECT\\s+TABLE_NAME,\\s+ORDINAL_POSITION.+AND TABLE_NAME = \\?").
		WithArgs("auth", "users").
		WillReturnRows(sqlmock.NewRows(columnColumns).
			AddRow("users", 1, "id", "int", nil, "NO", "PRI", ""))

	s, err := NewLoader(db, zap.NewNop()).LoadSchema(context.Background(), "shop")
	require.NoError(t, err)
	require.NoError(t, mk.ExpectationsWereMet())

	require.Len(t, s.Tables, 5)

	customer := s.Table("shop", "customer")
	require.NotNil(t, customer)
	assert.True(t, customer.Column("email").IsUnique)
	assert.True(t, customer.Column("email").IsNullable)
	assert.Equal(t, 255, customer.Column("email").Length)
	assert.Equal(t, []*schema.Column{customer.Column("id")}, customer.PrimaryKey())

	line := s.Table("shop", "order_line")
	require.NotNil(t, line)
	assert.Equal(t, []*schema.Column{line.Column("order_id"), line.Column("line_no")}, line.PrimaryKey())

	assert.True(t, s.Table("shop", "recent_orders").IsView)
	assert.Equal(t, "customer orders", s.Table("shop", "orders").Comment)

	users := s.Table("auth", "users")
	require.NotNil(t, users)
	assert.True(t, users.IsRemote)

	orders := s.Table("shop", "orders")
	fks := orders.ForeignKeys()
	require.Len(t, fks, 2)
	assert.Equal(t, "orders_created_by_fk", fks[0].Name.Name)
	assert.Equal(t, users, fks[0].ParentTable)
	assert.Equal(t, schema.RuleSetNull, fks[0].DeleteRule)
	assert.Equal(t, schema.RuleRestrict, fks[0].UpdateRule)
	assert.Equal(t, customer, fks[1].ParentTable)
	assert.Equal(t, schema.RuleCascade, fks[1].UpdateRule)
}

func TestLoadSchemaQueryError(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	errDB := errors.New("access denied")
	mk.ExpectQuery("SELECT\\s+TABLE_NAME.+").WithArgs("shop").WillReturnError(errDB)

	_, err = NewLoader(db, zap.NewNop()).LoadSchema(context.Background(), "shop")
	require.ErrorIs(t, err, errDB)

	var qerr queries.Error
	require.ErrorAs(t, err, &qerr)
	assert.Contains(t, qerr.Pretty(), "-- list tables")
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		in   sql.NullString
		want schema.Rule
	}{
		{in: sql.NullString{String: "CASCADE", Valid: true}, want: schema.RuleCascade},
		{in: sql.NullString{String: "set default", Valid: true}, want: schema.RuleSetDefault},
		{in: sql.NullString{String: "NO ACTION", Valid: true}, want: schema.RuleNoAction},
		{in: sql.NullString{}, want: schema.RuleNoAction},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRule(tt.in), "%v", tt.in)
	}
}
