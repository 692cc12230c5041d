package OVN_Southbound

import (
	"github.com/ebay/libovsdb"

	ovsdbrow "github.com/ibm/ovn-central/pkg/libovsdb"
)

type Connection struct {
	External_ids     map[string]string `json:"external_ids,omitempty"`
	Inactivity_probe *int64            `json:"inactivity_probe,omitempty"`
	Is_connected     bool              `json:"is_connected,omitempty"`
	Read_only        bool              `json:"read_only,omitempty"`
	Role             string            `json:"role,omitempty"`
	Status           map[string]string `json:"status,omitempty"`
	Target           string            `json:"target,omitempty"`
	Uuid             libovsdb.UUID     `json:"_uuid,omitempty"`
}

func (c *Connection) FromRow(row *ovsdbrow.Row) error {
	uuid, err := row.GetUUID()
	if err != nil {
		return err
	}
	c.Uuid = *uuid
	if c.Target, err = row.GetString("target"); err != nil {
		return err
	}
	if c.Role, err = row.GetString("role"); err != nil {
		return err
	}
	if c.Read_only, err = row.GetBool("read_only"); err != nil {
		return err
	}
	// Columns below are not requested by every caller.
	if _, ok := row.Fields["is_connected"]; ok {
		if c.Is_connected, err = row.GetBool("is_connected"); err != nil {
			return err
		}
	}
	if _, ok := row.Fields["inactivity_probe"]; ok {
		probe, set, err := row.GetInteger("inactivity_probe")
		if err != nil {
			return err
		}
		if set {
			c.Inactivity_probe = &probe
		}
	}
	if _, ok := row.Fields["external_ids"]; ok {
		if c.External_ids, err = row.GetMap("external_ids"); err != nil {
			return err
		}
	}
	if _, ok := row.Fields["status"]; ok {
		if c.Status, err = row.GetMap("status"); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionsFromRows converts the rows of `ovn-sbctl --format=json list connection`.
func ConnectionsFromRows(rows []ovsdbrow.Row) ([]Connection, error) {
	conns := make([]Connection, 0, len(rows))
	for i := range rows {
		var c Connection
		if err := c.FromRow(&rows[i]); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}
