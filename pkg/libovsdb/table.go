package libovsdb

import (
	"encoding/json"
	"fmt"
)

// Table is the output of `ovn-<db>ctl --format=json list|find <table>`: column names in
// Headings and one positionally matched cell array per row in Data.
type Table struct {
	Headings []string        `json:"headings"`
	Data     [][]interface{} `json:"data"`
}

// ParseTable decodes the ctl JSON output into rows.
func ParseTable(b []byte) ([]Row, error) {
	var t Table
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("unmarshal table: %v", err)
	}
	return t.Rows()
}

func (t *Table) Rows() ([]Row, error) {
	rows := make([]Row, 0, len(t.Data))
	for i, data := range t.Data {
		if len(data) != len(t.Headings) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(data), len(t.Headings))
		}
		row := Row{Fields: make(map[string]interface{}, len(data))}
		for j, cell := range data {
			val, err := ovsSliceToGoNotation(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %v", i, t.Headings[j], err)
			}
			row.Fields[t.Headings[j]] = val
		}
		rows = append(rows, row)
	}
	return rows, nil
}
