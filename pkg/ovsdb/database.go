package ovsdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	ovsdbjson "github.com/ebay/libovsdb"
	"github.com/go-logr/logr"
	guuid "github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/libovsdb"
	"github.com/ibm/ovn-central/pkg/ovn"
)

const TableConnection = "connection"

// Databaser reads and updates rows of one OVN database through its ctl tool.
type Databaser interface {
	List(ctx context.Context, table string) ([]libovsdb.Row, error)
	// Find returns the rows matching every condition, conditions use the ctl syntax column=value.
	Find(ctx context.Context, table string, conditions ...string) ([]libovsdb.Row, error)
	Set(ctx context.Context, table, uuid, column string, value interface{}) error
	// CreateConnection adds a listener with the given target to the global table of the database.
	CreateConnection(ctx context.Context, target string) error
}

type DatabaseCtl struct {
	db     ovn.DB
	runner executor.Runner
	log    logr.Logger
}

func NewDatabaseCtl(db ovn.DB, runner executor.Runner, log logr.Logger) (Databaser, error) {
	if err := db.Validate(); err != nil {
		return nil, err
	}
	return &DatabaseCtl{db: db, runner: runner, log: log.WithValues("db", string(db))}, nil
}

func (con *DatabaseCtl) List(ctx context.Context, table string) ([]libovsdb.Row, error) {
	return con.query(ctx, "list", table)
}

func (con *DatabaseCtl) Find(ctx context.Context, table string, conditions ...string) ([]libovsdb.Row, error) {
	return con.query(ctx, "find", table, conditions...)
}

func (con *DatabaseCtl) query(ctx context.Context, verb, table string, conditions ...string) ([]libovsdb.Row, error) {
	args := append([]string{"--format=json", verb, table}, conditions...)
	out, err := con.runner.Run(ctx, con.db.Ctl(), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", verb, table)
	}
	rows, err := libovsdb.ParseTable(out)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s output %q", verb, table, string(out))
	}
	con.log.V(6).Info("query", "verb", verb, "table", table, "conditions", conditions, "rows", len(rows))
	return rows, nil
}

func (con *DatabaseCtl) Set(ctx context.Context, table, uuid, column string, value interface{}) error {
	v, err := FormatValue(value)
	if err != nil {
		return err
	}
	_, err = con.runner.Run(ctx, con.db.Ctl(), "set", table, uuid, column+"="+v)
	return errors.Wrapf(err, "set %s %s %s", table, uuid, column)
}

func (con *DatabaseCtl) CreateConnection(ctx context.Context, target string) error {
	_, err := con.runner.Run(ctx, con.db.Ctl(),
		"--",
		"--id=@connection",
		"create", TableConnection,
		fmt.Sprintf("target=%q", target),
		"--",
		"add", con.db.GlobalTable(),
		".", "connections", "@connection")
	return errors.Wrapf(err, "create connection %s", target)
}

// FormatValue renders a Go value as a ctl atom.
func FormatValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return strconv.Quote(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", errors.Errorf("unsupported value type %T %v", value, value)
}

// EqualCondition builds a column="value" condition for Find.
func EqualCondition(column, value string) string {
	return column + "=" + strconv.Quote(value)
}

// DatabaseMock keeps an in-memory connection table and counts mutations.
type DatabaseMock struct {
	Error error

	mu      sync.Mutex
	rows    map[string]map[string]interface{}
	creates int
	sets    int
}

func NewDatabaseMock() *DatabaseMock {
	return &DatabaseMock{rows: map[string]map[string]interface{}{}}
}

// AddConnection inserts a connection row and returns its uuid.
func (con *DatabaseMock) AddConnection(target, role string, readOnly bool) string {
	con.mu.Lock()
	defer con.mu.Unlock()
	return con.addConnection(target, role, readOnly)
}

func (con *DatabaseMock) addConnection(target, role string, readOnly bool) string {
	id := guuid.NewString()
	con.rows[id] = map[string]interface{}{
		libovsdb.COL_UUID:  ovsdbjson.UUID{GoUUID: id},
		"target":           target,
		"role":             role,
		"read_only":        readOnly,
		"inactivity_probe": ovsdbjson.OvsSet{GoSet: []interface{}{}},
	}
	return id
}

func (con *DatabaseMock) List(ctx context.Context, table string) ([]libovsdb.Row, error) {
	return con.Find(ctx, table)
}

func (con *DatabaseMock) Find(ctx context.Context, table string, conditions ...string) ([]libovsdb.Row, error) {
	if con.Error != nil {
		return nil, con.Error
	}
	if table != TableConnection {
		return nil, errors.Errorf("unknown table %s", table)
	}
	con.mu.Lock()
	defer con.mu.Unlock()
	ids := make([]string, 0, len(con.rows))
	for id := range con.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var res []libovsdb.Row
	for _, id := range ids {
		fields := con.rows[id]
		match := true
		for _, cond := range conditions {
			kv := strings.SplitN(cond, "=", 2)
			if len(kv) != 2 {
				return nil, errors.Errorf("malformed condition %q", cond)
			}
			v, err := FormatValue(fields[kv[0]])
			if err != nil || v != kv[1] {
				match = false
				break
			}
		}
		if match {
			row := libovsdb.Row{Fields: map[string]interface{}{}}
			for k, v := range fields {
				row.Fields[k] = v
			}
			res = append(res, row)
		}
	}
	return res, nil
}

func (con *DatabaseMock) Set(ctx context.Context, table, uuid, column string, value interface{}) error {
	if con.Error != nil {
		return con.Error
	}
	if _, err := FormatValue(value); err != nil {
		return err
	}
	con.mu.Lock()
	defer con.mu.Unlock()
	row, ok := con.rows[uuid]
	if !ok {
		return errors.Errorf("no row %s in %s", uuid, table)
	}
	switch v := value.(type) {
	case int:
		row[column] = float64(v)
	case int64:
		row[column] = float64(v)
	default:
		row[column] = v
	}
	con.sets++
	return nil
}

func (con *DatabaseMock) CreateConnection(ctx context.Context, target string) error {
	if con.Error != nil {
		return con.Error
	}
	con.mu.Lock()
	defer con.mu.Unlock()
	con.addConnection(target, "", false)
	con.creates++
	return nil
}

func (con *DatabaseMock) Creates() int {
	con.mu.Lock()
	defer con.mu.Unlock()
	return con.creates
}

func (con *DatabaseMock) Sets() int {
	con.mu.Lock()
	defer con.mu.Unlock()
	return con.sets
}
