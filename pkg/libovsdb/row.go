package libovsdb

import (
	"fmt"

	"github.com/ebay/libovsdb"
)

// Row is a table Row according to RFC7047
type Row struct {
	Fields map[string]interface{}
}

func (r *Row) GetUUID() (*libovsdb.UUID, error) {
	uuidInt, ok := r.Fields[COL_UUID]
	if !ok {
		return nil, fmt.Errorf("row doesn't contain %s", COL_UUID)
	}
	uuid, ok := uuidInt.(libovsdb.UUID)
	if !ok {
		return nil, fmt.Errorf("wrong uuid type %T %v", uuidInt, uuidInt)
	}
	return &uuid, nil
}

// GetString returns a string column. A missing column is an error, an empty optional
// string is returned as "".
func (r *Row) GetString(column string) (string, error) {
	val, err := r.optional(column)
	if err != nil || val == nil {
		return "", err
	}
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("column %s: wrong string type %T %v", column, val, val)
	}
	return s, nil
}

func (r *Row) GetBool(column string) (bool, error) {
	val, err := r.optional(column)
	if err != nil || val == nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("column %s: wrong bool type %T %v", column, val, val)
	}
	return b, nil
}

// GetInteger returns an integer column and whether it is set. Optional integers are printed
// as a bare number when set and as an empty set otherwise.
func (r *Row) GetInteger(column string) (int64, bool, error) {
	val, err := r.optional(column)
	if err != nil || val == nil {
		return 0, false, err
	}
	f, ok := val.(float64)
	if !ok {
		return 0, false, fmt.Errorf("column %s: wrong integer type %T %v", column, val, val)
	}
	return int64(f), true, nil
}

func (r *Row) GetMap(column string) (map[string]string, error) {
	val, ok := r.Fields[column]
	if !ok {
		return nil, fmt.Errorf("row doesn't contain %s", column)
	}
	res := map[string]string{}
	switch v := val.(type) {
	case libovsdb.OvsMap:
		for k, e := range v.GoMap {
			res[fmt.Sprint(k)] = fmt.Sprint(e)
		}
	case libovsdb.OvsSet:
		if len(v.GoSet) != 0 {
			return nil, fmt.Errorf("column %s: wrong map type %v", column, val)
		}
	default:
		return nil, fmt.Errorf("column %s: wrong map type %T %v", column, val, val)
	}
	return res, nil
}

// optional unwraps a column of the form min 0 max 1, returning nil for an empty set.
func (r *Row) optional(column string) (interface{}, error) {
	val, ok := r.Fields[column]
	if !ok {
		return nil, fmt.Errorf("row doesn't contain %s", column)
	}
	set, ok := val.(libovsdb.OvsSet)
	if !ok {
		return val, nil
	}
	switch len(set.GoSet) {
	case 0:
		return nil, nil
	case 1:
		return set.GoSet[0], nil
	}
	return nil, fmt.Errorf("column %s: expected at most one value, got %d", column, len(set.GoSet))
}
