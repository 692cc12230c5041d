package ovn

import (
	"fmt"

	"github.com/pkg/errors"
)

// DB identifies one of the two clustered OVN databases.
type DB string

const (
	NB DB = "nb"
	SB DB = "sb"
)

var ErrUnsupportedDB = errors.New("unsupported database, expected nb or sb")

func ParseDB(s string) (DB, error) {
	switch DB(s) {
	case NB, SB:
		return DB(s), nil
	}
	return "", errors.Wrapf(ErrUnsupportedDB, "%q", s)
}

func (d DB) Validate() error {
	_, err := ParseDB(string(d))
	return err
}

// SchemaName returns OVN_Northbound or OVN_Southbound.
func (d DB) SchemaName() string {
	if d == NB {
		return "OVN_Northbound"
	}
	return "OVN_Southbound"
}

// Target is the appctl target of the database server, ovnnb_db or ovnsb_db.
func (d DB) Target() string {
	return fmt.Sprintf("ovn%s_db", d)
}

// Ctl is the name of the database ctl tool, ovn-nbctl or ovn-sbctl.
func (d DB) Ctl() string {
	return fmt.Sprintf("ovn-%sctl", d)
}

// GlobalTable is the root table holding the connections column.
func (d DB) GlobalTable() string {
	if d == NB {
		return "NB_Global"
	}
	return "SB_Global"
}

// File is the database file name inside the release database directory.
func (d DB) File() string {
	return d.Target() + ".db"
}
