package e2e_test

import (
	"context"
	"flag"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/klogr"

	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/unixctl"
)

var (
	release = flag.String("ovn-release", "", "OVN release of the unit under test, e.g. ussuri; empty skips the suite")

	cluster ovn.Cluster
	ctx     context.Context
	cancel  context.CancelFunc
)

func TestE2e(t *testing.T) {
	if *release == "" {
		t.Skip("-ovn-release not given")
	}
	RegisterFailHandler(Fail)
	RunSpecs(t, "E2e Suite")
}

var _ = BeforeSuite(func() {
	r, err := ovn.LookupRelease(*release)
	Expect(err).NotTo(HaveOccurred())
	log := klogr.New()
	appctl := ovn.NewSocketAppctl(unixctl.NewClient(log), r, afero.NewOsFs(), log)
	cluster = ovn.NewAppctlCluster(appctl, r, log)
	ctx, cancel = context.WithTimeout(context.Background(), time.Minute)
})

var _ = AfterSuite(func() {
	cancel()
	klog.Flush()
})

var _ = Describe("E2e", func() {
	Describe("cluster status over the control sockets", func() {
		for _, db := range []ovn.DB{ovn.NB, ovn.SB} {
			db := db
			It("should report the Raft status of "+db.Target(), func() {
				status, err := cluster.ClusterStatus(ctx, db)
				Expect(err).NotTo(HaveOccurred())
				Expect(status).NotTo(BeNil(), "%s is not ready", db.Target())
				Expect(status.Name).To(Equal(db.SchemaName()))
				Expect(status.ElectionTimer).To(BeNumerically(">=", 1000))
				Expect(status.Role).To(BeElementOf("leader", "follower", "candidate"))
				klog.Infof("%s: role %s, election timer %d", db.Target(), status.Role, status.ElectionTimer)
			})
		}
		It("should report the northd status", func() {
			st, err := cluster.NorthdStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st).NotTo(BeEmpty())
		})
	})
})
