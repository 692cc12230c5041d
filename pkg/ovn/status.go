package ovn

import (
	"bufio"
	"strconv"
	"strings"

	guuid "github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotReady is returned when the database server is not running or not clustered yet.
var ErrNotReady = errors.New("ovsdb-server not ready")

// ClusterStatus is the parsed output of `cluster/status <schema>`.
type ClusterStatus struct {
	Name                string
	ClusterID           guuid.UUID
	ServerID            guuid.UUID
	Address             string
	Status              string
	Role                string
	Term                int
	Leader              string
	Vote                string
	ElectionTimer       int
	Log                 []int
	EntriesNotCommitted int
	EntriesNotApplied   int
	Connections         []string
	Servers             []Server
}

type Server struct {
	ID      string
	Address string
}

func (s *ClusterStatus) IsClusterLeader() bool {
	return s.Role == "leader"
}

// ParseClusterStatus parses cluster/status output. Output that lacks the cluster id, the role
// or the election timer belongs to a server that is not part of a cluster yet and yields
// ErrNotReady.
func ParseClusterStatus(out string) (*ClusterStatus, error) {
	var (
		st   ClusterStatus
		seen = map[string]bool{}
		err  error
	)
	inServers := false
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if inServers {
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
				st.Servers = append(st.Servers, parseServer(strings.TrimSpace(line)))
				continue
			}
			inServers = false
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key, val := line[:idx], strings.TrimSpace(line[idx+1:])
		seen[key] = true
		switch key {
		case "Name":
			st.Name = val
		case "Cluster ID":
			st.ClusterID, err = parseLongID(val)
		case "Server ID":
			st.ServerID, err = parseLongID(val)
		case "Address":
			st.Address = val
		case "Status":
			st.Status = val
		case "Role":
			st.Role = val
		case "Term":
			st.Term, err = strconv.Atoi(val)
		case "Leader":
			st.Leader = val
		case "Vote":
			st.Vote = val
		case "Election timer":
			st.ElectionTimer, err = strconv.Atoi(val)
		case "Log":
			st.Log, err = parseLog(val)
		case "Entries not yet committed":
			st.EntriesNotCommitted, err = strconv.Atoi(val)
		case "Entries not yet applied":
			st.EntriesNotApplied, err = strconv.Atoi(val)
		case "Connections":
			st.Connections = strings.Fields(val)
		case "Servers":
			inServers = true
		}
		if err != nil {
			return nil, errors.Wrapf(ErrNotReady, "parse %q: %v", line, err)
		}
	}
	for _, required := range []string{"Cluster ID", "Role", "Election timer"} {
		if !seen[required] {
			return nil, errors.Wrapf(ErrNotReady, "cluster status has no %q", required)
		}
	}
	return &st, nil
}

// parseLongID takes the full id out of "3ec2 (3ec25e2f-4bd4-4d3a-8a5d-5e8a1b5b8f11)".
func parseLongID(val string) (guuid.UUID, error) {
	start, end := strings.Index(val, "("), strings.LastIndex(val, ")")
	if start < 0 || end < start {
		return guuid.Nil, errors.Errorf("no full id in %q", val)
	}
	return guuid.Parse(val[start+1 : end])
}

func parseLog(val string) ([]int, error) {
	val = strings.Trim(val, "[]")
	var res []int
	for _, f := range strings.Split(val, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

// parseServer parses "a1b2 (a1b2 at ssl:10.0.0.1:6644) (self) next_index=5".
func parseServer(line string) Server {
	var s Server
	if fields := strings.Fields(line); len(fields) > 0 {
		s.ID = fields[0]
	}
	if at := strings.Index(line, " at "); at >= 0 {
		rest := line[at+len(" at "):]
		if end := strings.Index(rest, ")"); end >= 0 {
			s.Address = rest[:end]
		}
	}
	return s
}
