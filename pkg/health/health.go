// Package health implements the Nagios check of the Southbound connection table. A periodic
// job writes the verdict of the DB leader to a file and the NRPE check reports that file.
package health

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ibm/ovn-central/pkg/common"
	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/ovsdb"
	sbtypes "github.com/ibm/ovn-central/pkg/types/OVN_Southbound"
)

type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusCritical
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

const (
	OutputFile = "/var/lib/nagios/ovn_db_connections.out"
	// MaxAge is how old the output file may get before the check turns critical.
	MaxAge = 10 * time.Minute

	ExpectedConnections = 2
	TargetSB            = "pssl:6642"
	TargetSBAdmin       = "pssl:16642"
	RoleOVNController   = "ovn-controller"

	NotLeaderOutput = "no-op (unit is not the DB leader)"
)

type Alert struct {
	Status Status
	Msg    string
}

func CheckRoleTarget(c *sbtypes.Connection) Alert {
	uuid := c.Uuid.GoUUID
	if c.Target != TargetSB && c.Target != TargetSBAdmin {
		return Alert{StatusCritical, fmt.Sprintf("%s: unexpected target: %s", uuid, c.Target)}
	}
	if c.Role != RoleOVNController && c.Role != "" {
		return Alert{StatusCritical, fmt.Sprintf("%s: unexpected role: %s", uuid, c.Role)}
	}
	if c.Target == TargetSB {
		if c.Role == RoleOVNController {
			return Alert{StatusOK, fmt.Sprintf("%s: role ovn-controller uses target %s", uuid, TargetSB)}
		}
		return Alert{StatusWarning, fmt.Sprintf("%s: RBAC is disabled", uuid)}
	}
	if c.Role == "" {
		return Alert{StatusOK, fmt.Sprintf(`%s: role "" uses target %s`, uuid, TargetSBAdmin)}
	}
	return Alert{StatusCritical, fmt.Sprintf("%s: target %s should not be used by role %s", uuid, TargetSBAdmin, c.Role)}
}

func CheckReadOnly(c *sbtypes.Connection) Alert {
	if c.Read_only {
		return Alert{StatusCritical, fmt.Sprintf("%s: connection is read only", c.Uuid.GoUUID)}
	}
	return Alert{StatusOK, fmt.Sprintf("%s: connection is not read_only", c.Uuid.GoUUID)}
}

// CheckConnections expects exactly one ovn-controller connection on pssl:6642 and one
// administrative connection on pssl:16642, both writable.
func CheckConnections(conns []sbtypes.Connection) []Alert {
	var alerts []Alert
	if len(conns) != ExpectedConnections {
		alerts = append(alerts, Alert{StatusCritical,
			fmt.Sprintf("expected %d ovn-sb connections, got %d", ExpectedConnections, len(conns))})
	}
	controllers := 0
	for i := range conns {
		if conns[i].Role == RoleOVNController {
			controllers++
		}
		alerts = append(alerts, CheckRoleTarget(&conns[i]), CheckReadOnly(&conns[i]))
	}
	if controllers != 1 {
		alerts = append(alerts, Alert{StatusCritical,
			fmt.Sprintf("expected 1 ovn-controller connection, got %d", controllers)})
	}
	return alerts
}

// Aggregate renders alerts as one status line, e.g.
// "CRITICAL: ; critical[1]: ['...']; warnings[1]: ['...']" or "OK: no issues".
func Aggregate(alerts []Alert) string {
	var crit, warn []string
	for _, a := range alerts {
		switch a.Status {
		case StatusCritical:
			crit = append(crit, a.Msg)
		case StatusWarning:
			warn = append(warn, a.Msg)
		}
	}
	severity := StatusOK
	detail := ""
	if len(crit) > 0 {
		severity = StatusCritical
		detail += fmt.Sprintf("; critical[%d]: %s", len(crit), pyList(crit))
	}
	if len(warn) > 0 {
		if severity != StatusCritical {
			severity = StatusWarning
		}
		detail += fmt.Sprintf("; warnings[%d]: %s", len(warn), pyList(warn))
	}
	if len(crit) == 0 && len(warn) == 0 {
		detail = "no issues"
	}
	return fmt.Sprintf("%s: %s", severity, detail)
}

// pyList renders msgs the way the existing dashboards parse them: ['a', 'b'].
func pyList(msgs []string) string {
	quoted := make([]string, 0, len(msgs))
	for _, m := range msgs {
		quote := "'"
		if strings.Contains(m, "'") && !strings.Contains(m, `"`) {
			quote = `"`
		}
		m = strings.ReplaceAll(m, `\`, `\\`)
		if quote == "'" {
			m = strings.ReplaceAll(m, "'", `\'`)
		}
		quoted = append(quoted, quote+m+quote)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Runner produces the output file from the leader's view of the connection table.
type Runner struct {
	fs     afero.Fs
	appctl ovn.Appctl
	sb     ovsdb.Databaser
	output string
	log    logr.Logger
}

func NewRunner(fs afero.Fs, appctl ovn.Appctl, sb ovsdb.Databaser, output string, log logr.Logger) *Runner {
	if output == "" {
		output = OutputFile
	}
	return &Runner{fs: fs, appctl: appctl, sb: sb, output: output, log: log}
}

// IsLeader reads the Role line of the Southbound cluster status.
func (r *Runner) IsLeader(ctx context.Context) (bool, error) {
	out, err := r.appctl.Call(ctx, ovn.SB.Target(), "cluster/status", ovn.SB.SchemaName())
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Role:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Role:")) == "leader", nil
		}
	}
	r.log.Info("'Role:' line not found in cluster/status output", "db", ovn.SB.Target())
	return false, nil
}

// Check returns the output line for the current state. Failing OVN commands become an
// UNKNOWN line carrying their output.
func (r *Runner) Check(ctx context.Context) (string, error) {
	output, err := r.check(ctx)
	var cmdErr *executor.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Sprintf("%s: %s", StatusUnknown, cmdErr.Output), nil
	}
	return output, err
}

func (r *Runner) check(ctx context.Context) (string, error) {
	leader, err := r.IsLeader(ctx)
	if err != nil {
		return "", err
	}
	if !leader {
		return NotLeaderOutput, nil
	}
	rows, err := r.sb.List(ctx, ovsdb.TableConnection)
	if err != nil {
		return "", err
	}
	conns, err := sbtypes.ConnectionsFromRows(rows)
	if err != nil {
		return "", err
	}
	return Aggregate(CheckConnections(conns)), nil
}

// Run checks and replaces the output file.
func (r *Runner) Run(ctx context.Context) error {
	output, err := r.Check(ctx)
	if err != nil {
		return err
	}
	r.log.V(1).Info("connections checked", "output", output)
	return errors.Wrapf(common.WriteFileAtomic(r.fs, r.output, []byte(output), 0644),
		"cannot write output file %s", r.output)
}

// Result is what the NRPE check prints and its exit code.
type Result struct {
	Status  Status
	Message string
}

func (r Result) ExitCode() int {
	return int(r.Status)
}

// ReadOutput turns the output file into an NRPE result.
func ReadOutput(fs afero.Fs, path string, now time.Time) Result {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{StatusUnknown, fmt.Sprintf("UNKNOWN: %s does not exist (yet?)", path)}
		}
		return Result{StatusUnknown, fmt.Sprintf("UNKNOWN: %v", err)}
	}
	if age := now.Sub(info.ModTime()); age > MaxAge {
		return Result{StatusCritical, fmt.Sprintf("CRITICAL: %s is %d seconds old (> %d seconds)",
			path, int(age.Seconds()), int(MaxAge.Seconds()))}
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Result{StatusUnknown, fmt.Sprintf("UNKNOWN: %v", err)}
	}
	output := string(data)
	for _, s := range []Status{StatusCritical, StatusUnknown, StatusWarning} {
		if strings.HasPrefix(output, s.String()+": ") {
			return Result{s, output}
		}
	}
	if strings.HasPrefix(output, StatusOK.String()+": ") {
		return Result{StatusOK, output}
	}
	return Result{StatusOK, "OK: " + output}
}
