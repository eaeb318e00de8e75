package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInsert(t *testing.T) {
	stmt, err := Parse([]byte(`INSERT INTO users (id, name) VALUES (1, 'alice');`))
	require.NoError(t, err)
	require.NotNil(t, stmt.Insert)

	assert.Equal(t, "users", stmt.Insert.Table)
	assert.Equal(t, []string{"id", "name"}, stmt.Insert.Columns)
	require.Len(t, stmt.Insert.Rows, 1)
	row := stmt.Insert.Rows[0]
	assert.Equal(t, int64(1), row[0].Int)
	assert.Equal(t, "alice", string(row[1].Text))
}

func TestParseInsertMultiRowWithoutColumnList(t *testing.T) {
	stmt, err := Parse([]byte(`insert into t values (1, 'a'), (2, 'b')`))
	require.NoError(t, err)
	require.NotNil(t, stmt.Insert)
	assert.Nil(t, stmt.Insert.Columns)
	assert.Len(t, stmt.Insert.Rows, 2)
}

func TestParseInsertMismatchedColumnCount(t *testing.T) {
	_, err := Parse([]byte(`INSERT INTO t (a, b) VALUES (1);`))
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidSyntax, perr.Kind)
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse([]byte(`SELECT * FROM users;`))
	require.NoError(t, err)
	require.NotNil(t, stmt.Select)
	assert.Equal(t, "users", stmt.Select.Table)
	assert.Nil(t, stmt.Select.Where)
}

func TestParseSelectWithWhere(t *testing.T) {
	stmt, err := Parse([]byte(`SELECT * FROM users WHERE id = 5;`))
	require.NoError(t, err)
	where := stmt.Select.Where
	require.NotNil(t, where)
	require.True(t, where.IsBinary)
	assert.Equal(t, OpEQ, where.Op)
	assert.True(t, where.Left.IsColumn)
	assert.Equal(t, "id", where.Left.Column)
	assert.True(t, where.Right.IsLiteral)
	assert.Equal(t, int64(5), where.Right.Literal.Int)
}

func TestParseSelectWithAndOr(t *testing.T) {
	stmt, err := Parse([]byte(`SELECT * FROM t WHERE a = 1 AND b = 2 OR c != 3;`))
	require.NoError(t, err)
	where := stmt.Select.Where
	require.NotNil(t, where)
	assert.Equal(t, OpOr, where.Op)
	assert.Equal(t, OpAnd, where.Left.Op)
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse([]byte(`DELETE FROM users WHERE id = 1;`))
	require.NoError(t, err)
	require.NotNil(t, stmt.Delete)
	assert.Equal(t, "users", stmt.Delete.Table)
	assert.NotNil(t, stmt.Delete.Where)
}

func TestParseUnknownStatement(t *testing.T) {
	_, err := Parse([]byte(`DROP TABLE t;`))
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrUnexpectedToken, perr.Kind)
}

func TestParseIntegerOverflow(t *testing.T) {
	_, err := Parse([]byte(`INSERT INTO t VALUES (99999999999999999999999);`))
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrIntegerOverflow, perr.Kind)
}

// TestParseIntegerOverflowBoundary exercises the narrow window where the
// literal fits in a uint64 (so strconv.ParseUint succeeds) but not in an
// int64: exactly 2^63, with no leading minus.
func TestParseIntegerOverflowBoundary(t *testing.T) {
	_, err := Parse([]byte(`INSERT INTO t VALUES (9223372036854775808);`))
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrIntegerOverflow, perr.Kind)
}

// TestParseIntegerMinBoundary checks that the one negative literal whose
// magnitude is exactly 2^63 (math.MinInt64) is accepted, not flagged as
// an overflow.
func TestParseIntegerMinBoundary(t *testing.T) {
	stmt, err := Parse([]byte(`INSERT INTO t VALUES (-9223372036854775808);`))
	require.NoError(t, err)
	require.NotNil(t, stmt.Insert)
	require.Len(t, stmt.Insert.Rows, 1)
	require.Len(t, stmt.Insert.Rows[0], 1)
	assert.Equal(t, int64(-9223372036854775808), stmt.Insert.Rows[0][0].Int)
}

func TestParseTrailingGarbage(t *testing.T) {
	_, err := Parse([]byte(`SELECT * FROM t; garbage`))
	require.Error(t, err)
}
