package health_test

import (
	"context"
	"errors"
	"time"

	"github.com/ebay/libovsdb"
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/ibm/ovn-central/pkg/executor"
	. "github.com/ibm/ovn-central/pkg/health"
	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/ovsdb"
	sbtypes "github.com/ibm/ovn-central/pkg/types/OVN_Southbound"
)

const (
	controllerUUID = "29b1b0c3-2d4c-4b5e-9f7a-1a2b3c4d5e6f"
	adminUUID      = "8f7e6d5c-4b3a-4291-8e7d-6c5b4a392817"

	leaderStatus = `a3c5
Name: OVN_Southbound
Cluster ID: 2c7d (2c7d1a2b-7e9f-4a8b-9c0d-1e2f3a4b5c6d)
Server ID: a3c5 (a3c5e6f7-0a1b-4c2d-8e3f-4a5b6c7d8e9f)
Address: ssl:10.5.0.11:6644
Status: cluster member
Role: leader
Term: 3
Leader: self
Vote: self

Election timer: 4000
Log: [2, 92]
`
)

func conn(uuid, target, role string, readOnly bool) sbtypes.Connection {
	return sbtypes.Connection{Uuid: libovsdb.UUID{GoUUID: uuid}, Target: target, Role: role, Read_only: readOnly}
}

type appctlMock struct {
	out  string
	err  error
	args []string
}

func (a *appctlMock) Call(ctx context.Context, target string, args ...string) (string, error) {
	a.args = append([]string{target}, args...)
	return a.out, a.err
}

var _ = Describe("connection checks", func() {
	DescribeTable("role and target",
		func(target, role string, expStatus Status, expMsg string) {
			c := conn(controllerUUID, target, role, false)
			Expect(CheckRoleTarget(&c)).To(Equal(Alert{Status: expStatus, Msg: expMsg}))
		},
		Entry("controller on 6642", "pssl:6642", "ovn-controller", StatusOK,
			controllerUUID+": role ovn-controller uses target pssl:6642"),
		Entry("rbac disabled", "pssl:6642", "", StatusWarning, controllerUUID+": RBAC is disabled"),
		Entry("admin on 16642", "pssl:16642", "", StatusOK, controllerUUID+`: role "" uses target pssl:16642`),
		Entry("controller on 16642", "pssl:16642", "ovn-controller", StatusCritical,
			controllerUUID+": target pssl:16642 should not be used by role ovn-controller"),
		Entry("unexpected target", "ptcp:6642", "ovn-controller", StatusCritical,
			controllerUUID+": unexpected target: ptcp:6642"),
		Entry("unexpected role", "pssl:6642", "ovn-northd", StatusCritical,
			controllerUUID+": unexpected role: ovn-northd"),
	)

	It("flags read only connections", func() {
		c := conn(adminUUID, "pssl:16642", "", true)
		Expect(CheckReadOnly(&c)).To(Equal(Alert{Status: StatusCritical, Msg: adminUUID + ": connection is read only"}))
		c.Read_only = false
		Expect(CheckReadOnly(&c).Status).To(Equal(StatusOK))
	})

	It("accepts the expected connections", func() {
		alerts := CheckConnections([]sbtypes.Connection{
			conn(controllerUUID, "pssl:6642", "ovn-controller", false),
			conn(adminUUID, "pssl:16642", "", false),
		})
		Expect(alerts).To(HaveLen(4))
		Expect(Aggregate(alerts)).To(Equal("OK: no issues"))
	})

	It("counts connections and controllers", func() {
		alerts := CheckConnections([]sbtypes.Connection{conn(adminUUID, "pssl:16642", "", false)})
		Expect(alerts).To(ContainElement(Alert{Status: StatusCritical, Msg: "expected 2 ovn-sb connections, got 1"}))
		Expect(alerts).To(ContainElement(Alert{Status: StatusCritical, Msg: "expected 1 ovn-controller connection, got 0"}))
	})
})

var _ = Describe("Aggregate", func() {
	It("reports criticals before warnings", func() {
		out := Aggregate([]Alert{
			{Status: StatusCritical, Msg: "a: connection is read only"},
			{Status: StatusWarning, Msg: "b: RBAC is disabled"},
			{Status: StatusCritical, Msg: "expected 1 ovn-controller connection, got 0"},
			{Status: StatusOK, Msg: "c: fine"},
		})
		Expect(out).To(Equal("CRITICAL: ; critical[2]: ['a: connection is read only', 'expected 1 ovn-controller connection, got 0']; warnings[1]: ['b: RBAC is disabled']"))
	})

	It("reports warnings alone", func() {
		Expect(Aggregate([]Alert{{Status: StatusWarning, Msg: "b: RBAC is disabled"}})).
			To(Equal("WARNING: ; warnings[1]: ['b: RBAC is disabled']"))
	})

	It("reports no issues without alerts", func() {
		Expect(Aggregate(nil)).To(Equal("OK: no issues"))
	})
})

var _ = Describe("Runner", func() {
	var (
		fs     afero.Fs
		appctl *appctlMock
		sb     *ovsdb.DatabaseMock
		runner *Runner
		ctx    context.Context
	)
	const output = "/var/lib/nagios/ovn_db_connections.out"

	BeforeEach(func() {
		fs = afero.NewMemMapFs()
		appctl = &appctlMock{out: leaderStatus}
		sb = ovsdb.NewDatabaseMock()
		runner = NewRunner(fs, appctl, sb, output, logr.Discard())
		ctx = context.Background()
	})

	read := func() string {
		data, err := afero.ReadFile(fs, output)
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	It("writes the verdict of the leader", func() {
		sb.AddConnection("pssl:6642", "ovn-controller", false)
		sb.AddConnection("pssl:16642", "", false)
		Expect(runner.Run(ctx)).To(Succeed())
		Expect(read()).To(Equal("OK: no issues"))
		Expect(appctl.args).To(Equal([]string{"ovnsb_db", "cluster/status", "OVN_Southbound"}))
		exists, err := afero.Exists(fs, output+".tmp")
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())
	})

	It("reports a disabled RBAC", func() {
		sb.AddConnection("pssl:6642", "", false)
		sb.AddConnection("pssl:16642", "", false)
		Expect(runner.Run(ctx)).To(Succeed())
		Expect(read()).To(HavePrefix("CRITICAL: ; critical[1]: ['expected 1 ovn-controller connection, got 0']; warnings[1]: ["))
		Expect(read()).To(ContainSubstring("RBAC is disabled"))
	})

	It("does nothing on followers", func() {
		appctl.out = "Role: follower\n"
		Expect(runner.Run(ctx)).To(Succeed())
		Expect(read()).To(Equal(NotLeaderOutput))
	})

	It("treats a missing Role line as a follower", func() {
		appctl.out = "Name: OVN_Southbound\n"
		leader, err := runner.IsLeader(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(leader).To(BeFalse())
	})

	It("reports failing commands as unknown", func() {
		appctl.err = &executor.CommandError{
			Cmd:    []string{"ovn-appctl"},
			Output: []byte("2021-01-01T00:00:00Z|00001|unixctl|WARN|failed to connect to /var/run/ovn/ovnsb_db.ctl"),
			Err:    errors.New("exit status 1"),
		}
		Expect(runner.Run(ctx)).To(Succeed())
		Expect(read()).To(Equal("UNKNOWN: 2021-01-01T00:00:00Z|00001|unixctl|WARN|failed to connect to /var/run/ovn/ovnsb_db.ctl"))
	})

	It("returns other failures", func() {
		appctl.err = errors.New("exec: \"ovn-appctl\": executable file not found in $PATH")
		Expect(runner.Run(ctx)).NotTo(Succeed())
		exists, _ := afero.Exists(fs, output)
		Expect(exists).To(BeFalse())
	})
})

var _ = Describe("ReadOutput", func() {
	const path = "/var/lib/nagios/ovn_db_connections.out"
	var (
		fs  afero.Fs
		now time.Time
	)

	BeforeEach(func() {
		fs = afero.NewMemMapFs()
		now = time.Now()
	})

	write := func(content string, mtime time.Time) {
		Expect(afero.WriteFile(fs, path, []byte(content), 0644)).To(Succeed())
		Expect(fs.Chtimes(path, mtime, mtime)).To(Succeed())
	}

	It("is unknown while the file is missing", func() {
		res := ReadOutput(fs, path, now)
		Expect(res.Status).To(Equal(StatusUnknown))
		Expect(res.ExitCode()).To(Equal(3))
		Expect(res.Message).To(Equal("UNKNOWN: " + path + " does not exist (yet?)"))
	})

	It("is critical when the file is stale", func() {
		write("OK: no issues", now.Add(-11*time.Minute))
		res := ReadOutput(fs, path, now)
		Expect(res.Status).To(Equal(StatusCritical))
		Expect(res.ExitCode()).To(Equal(2))
	})

	DescribeTable("maps the content to a status",
		func(content string, expStatus Status, expMsg string) {
			write(content, now.Add(-time.Minute))
			Expect(ReadOutput(fs, path, now)).To(Equal(Result{Status: expStatus, Message: expMsg}))
		},
		Entry("ok", "OK: no issues", StatusOK, "OK: no issues"),
		Entry("not leader", NotLeaderOutput, StatusOK, "OK: "+NotLeaderOutput),
		Entry("warning", "WARNING: ; warnings[1]: ['x: RBAC is disabled']", StatusWarning,
			"WARNING: ; warnings[1]: ['x: RBAC is disabled']"),
		Entry("critical", "CRITICAL: ; critical[1]: ['x']", StatusCritical, "CRITICAL: ; critical[1]: ['x']"),
		Entry("unknown", "UNKNOWN: connection refused", StatusUnknown, "UNKNOWN: connection refused"),
	)
})

var _ = Describe("Runner with the ovn-appctl command line", func() {
	It("queries the Southbound control socket", func() {
		release, err := ovn.LookupRelease(ovn.Ussuri)
		Expect(err).NotTo(HaveOccurred())
		cmd := &executor.RunnerMock{Response: []byte(leaderStatus)}
		runner := NewRunner(afero.NewMemMapFs(), ovn.NewCLIAppctl(cmd, release), ovsdb.NewDatabaseMock(), "", logr.Discard())
		leader, err := runner.IsLeader(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(leader).To(BeTrue())
		Expect(cmd.Calls()[0].String()).To(Equal("ovn-appctl -t /var/run/ovn/ovnsb_db.ctl cluster/status OVN_Southbound"))
	})
})
