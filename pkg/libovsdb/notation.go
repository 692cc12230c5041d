package libovsdb

import (
	"fmt"

	"github.com/ebay/libovsdb"
)

const COL_UUID = "_uuid"

// ovsSliceToGoNotation converts a cell printed by the ctl tools in RFC 7047 notation into
// libovsdb.UUID, libovsdb.OvsSet or libovsdb.OvsMap. Atoms are returned as decoded by
// encoding/json.
func ovsSliceToGoNotation(val interface{}) (interface{}, error) {
	sl, ok := val.([]interface{})
	if !ok {
		return val, nil
	}
	if len(sl) != 2 {
		return nil, fmt.Errorf("malformed cell %v", val)
	}
	switch sl[0] {
	case "uuid", "named-uuid":
		id, ok := sl[1].(string)
		if !ok {
			return nil, fmt.Errorf("malformed uuid %v", val)
		}
		return libovsdb.UUID{GoUUID: id}, nil
	case "set":
		elems, ok := sl[1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("malformed set %v", val)
		}
		set := libovsdb.OvsSet{GoSet: make([]interface{}, 0, len(elems))}
		for _, e := range elems {
			goVal, err := ovsSliceToGoNotation(e)
			if err != nil {
				return nil, err
			}
			set.GoSet = append(set.GoSet, goVal)
		}
		return set, nil
	case "map":
		pairs, ok := sl[1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("malformed map %v", val)
		}
		m := libovsdb.OvsMap{GoMap: make(map[interface{}]interface{}, len(pairs))}
		for _, p := range pairs {
			pair, ok := p.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("malformed map pair %v", p)
			}
			k, err := ovsSliceToGoNotation(pair[0])
			if err != nil {
				return nil, err
			}
			v, err := ovsSliceToGoNotation(pair[1])
			if err != nil {
				return nil, err
			}
			m.GoMap[k] = v
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown notation %q", sl[0])
}
