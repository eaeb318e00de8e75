package sql

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/kraytos17/zdb/internal/btree"
)

// store is the minimal zdb.Database surface the VM needs; satisfied by
// *zdb.Database without importing the root package here (which imports
// this one's siblings, not this package, so no cycle). Kept as an
// interface anyway to keep the VM unit-testable against a fake.
type store interface {
	Set(key uint64, value []byte) error
	Get(key uint64) ([]byte, bool, error)
	Delete(key uint64) error
	Cursor() *btree.Cursor
	Range(lo, hi uint64, visit btree.Visitor)
}

// Row is a decoded result row: column name to literal value, in schema
// column order.
type Row struct {
	Columns []string
	Values  []Value
}

// VM executes parsed Statements against a store, maintaining one inferred
// Schema per table name. Grounded on the teacher's qlEval/qlExec
// dispatch (pkg/db/ql_exec.go), trimmed to the single-table, no-index
// grammar spec.md §6 describes.
type VM struct {
	db store

	mu      sync.Mutex
	schemas map[string]Schema
}

// New returns a VM bound to db, with no tables known yet.
func New(db store) *VM {
	return &VM{db: db, schemas: make(map[string]Schema)}
}

// Exec runs one parsed Statement, returning decoded result rows for a
// SELECT (nil for INSERT/DELETE).
func (vm *VM) Exec(stmt *Statement) ([]Row, error) {
	switch {
	case stmt.Insert != nil:
		return nil, vm.execInsert(stmt.Insert)
	case stmt.Select != nil:
		return vm.execSelect(stmt.Select)
	case stmt.Delete != nil:
		return nil, vm.execDelete(stmt.Delete)
	default:
		return nil, errors.New("sql: empty statement")
	}
}

func (vm *VM) execInsert(stmt *InsertStmt) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	schema, ok := vm.schemas[stmt.Table]
	if !ok {
		if len(stmt.Rows) == 0 {
			return fmt.Errorf("sql: INSERT with no rows cannot infer a schema for %q", stmt.Table)
		}
		s, err := inferSchema(stmt.Columns, stmt.Rows[0])
		if err != nil {
			return err
		}
		schema = s
		vm.schemas[stmt.Table] = schema
	}

	for _, row := range stmt.Rows {
		if len(row) != len(schema.Columns) {
			return fmt.Errorf("sql: row has %d values, table %q has %d columns", len(row), stmt.Table, len(schema.Columns))
		}
		if row[schema.Key].Kind != KindInteger {
			return ErrNoPrimaryKey
		}
		key := uint64(row[schema.Key].Int)
		if err := vm.db.Set(key, encodeRow(row)); err != nil {
			return fmt.Errorf("sql: insert: %w", err)
		}
	}
	return nil
}

func (vm *VM) execSelect(stmt *SelectStmt) ([]Row, error) {
	vm.mu.Lock()
	schema, ok := vm.schemas[stmt.Table]
	vm.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %q", ErrColumnNotFound, stmt.Table)
	}

	if err := checkColumns(schema, stmt.Where); err != nil {
		return nil, err
	}

	// Point lookup fast path: WHERE <primary key column> = <integer literal>.
	if key, ok := pointLookupKey(schema, stmt.Where); ok {
		value, found, err := vm.db.Get(key)
		if err != nil {
			return nil, fmt.Errorf("sql: select: %w", err)
		}
		if !found {
			return nil, nil
		}
		row, err := decodeRow(value, len(schema.Columns))
		if err != nil {
			return nil, err
		}
		return []Row{{Columns: schema.Columns, Values: row}}, nil
	}

	var rows []Row
	var evalErr error
	c := vm.db.Cursor()
	for c.Valid() {
		value, found, err := vm.db.Get(c.Key())
		if err != nil {
			return nil, fmt.Errorf("sql: select: %w", err)
		}
		if found {
			row, err := decodeRow(value, len(schema.Columns))
			if err != nil {
				return nil, err
			}
			keep, err := matches(schema, row, stmt.Where)
			if err != nil {
				evalErr = err
				break
			}
			if keep {
				rows = append(rows, Row{Columns: schema.Columns, Values: row})
			}
		}
		c.Next()
	}
	if evalErr != nil {
		return nil, evalErr
	}
	return rows, nil
}

func (vm *VM) execDelete(stmt *DeleteStmt) error {
	vm.mu.Lock()
	schema, ok := vm.schemas[stmt.Table]
	vm.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown table %q", ErrColumnNotFound, stmt.Table)
	}
	if err := checkColumns(schema, stmt.Where); err != nil {
		return err
	}

	if key, ok := pointLookupKey(schema, stmt.Where); ok {
		return vm.db.Delete(key)
	}

	var keys []uint64
	c := vm.db.Cursor()
	for c.Valid() {
		value, found, err := vm.db.Get(c.Key())
		if err == nil && found {
			row, derr := decodeRow(value, len(schema.Columns))
			if derr == nil {
				if keep, merr := matches(schema, row, stmt.Where); merr == nil && keep {
					keys = append(keys, c.Key())
				}
			}
		}
		c.Next()
	}
	for _, k := range keys {
		if err := vm.db.Delete(k); err != nil {
			return fmt.Errorf("sql: delete: %w", err)
		}
	}
	return nil
}

// pointLookupKey recognizes `WHERE <pk column> = <integer literal>` so
// SELECT/DELETE can skip the full scan.
func pointLookupKey(schema Schema, where *Expr) (uint64, bool) {
	if where == nil || !where.IsBinary || where.Op != OpEQ {
		return 0, false
	}
	col, lit := where.Left, where.Right
	if !col.IsColumn {
		col, lit = lit, col
	}
	if !col.IsColumn || !lit.IsLiteral || lit.Literal.Kind != KindInteger {
		return 0, false
	}
	idx, ok := schema.columnIndex(col.Column)
	if !ok || idx != schema.Key {
		return 0, false
	}
	return uint64(lit.Literal.Int), true
}

func checkColumns(schema Schema, expr *Expr) error {
	if expr == nil {
		return nil
	}
	if expr.IsColumn {
		if _, ok := schema.columnIndex(expr.Column); !ok {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, expr.Column)
		}
	}
	if expr.IsBinary {
		if err := checkColumns(schema, expr.Left); err != nil {
			return err
		}
		if err := checkColumns(schema, expr.Right); err != nil {
			return err
		}
	}
	return nil
}

// matches evaluates expr against a decoded row.
func matches(schema Schema, row []Value, expr *Expr) (bool, error) {
	if expr == nil {
		return true, nil
	}
	v, err := eval(schema, row, expr)
	if err != nil {
		return false, err
	}
	return v.Kind == KindInteger && v.Int != 0, nil
}

// eval recursively evaluates expr, representing booleans as KindInteger
// 0/1, matching the teacher's convention of comparisons/AND/OR
// themselves producing values rather than a distinct boolean type.
func eval(schema Schema, row []Value, expr *Expr) (Value, error) {
	switch {
	case expr.IsLiteral:
		return expr.Literal, nil
	case expr.IsColumn:
		idx, ok := schema.columnIndex(expr.Column)
		if !ok {
			return Value{}, fmt.Errorf("%w: %q", ErrColumnNotFound, expr.Column)
		}
		return row[idx], nil
	case expr.IsBinary:
		return evalBinary(schema, row, expr)
	default:
		return Value{}, errors.New("sql: empty expression")
	}
}

func evalBinary(schema Schema, row []Value, expr *Expr) (Value, error) {
	if expr.Op == OpAnd || expr.Op == OpOr {
		left, err := eval(schema, row, expr.Left)
		if err != nil {
			return Value{}, err
		}
		right, err := eval(schema, row, expr.Right)
		if err != nil {
			return Value{}, err
		}
		lb, rb := left.Kind == KindInteger && left.Int != 0, right.Kind == KindInteger && right.Int != 0
		var result bool
		if expr.Op == OpAnd {
			result = lb && rb
		} else {
			result = lb || rb
		}
		return boolValue(result), nil
	}

	left, err := eval(schema, row, expr.Left)
	if err != nil {
		return Value{}, err
	}
	right, err := eval(schema, row, expr.Right)
	if err != nil {
		return Value{}, err
	}
	if left.Kind != right.Kind {
		return Value{}, errors.New("sql: comparison of mismatched types")
	}

	var cmp int
	if left.Kind == KindInteger {
		switch {
		case left.Int < right.Int:
			cmp = -1
		case left.Int > right.Int:
			cmp = 1
		}
	} else {
		cmp = bytes.Compare(left.Text, right.Text)
	}

	switch expr.Op {
	case OpEQ:
		return boolValue(cmp == 0), nil
	case OpNE:
		return boolValue(cmp != 0), nil
	case OpGE:
		return boolValue(cmp >= 0), nil
	case OpLE:
		return boolValue(cmp <= 0), nil
	case OpGT:
		return boolValue(cmp > 0), nil
	case OpLT:
		return boolValue(cmp < 0), nil
	default:
		return Value{}, errors.New("sql: unknown operator")
	}
}

func boolValue(b bool) Value {
	if b {
		return Value{Kind: KindInteger, Int: 1}
	}
	return Value{Kind: KindInteger, Int: 0}
}
