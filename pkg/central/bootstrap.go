package central

import (
	"context"
	"net"
	"path/filepath"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/ovn"
)

// ClusterBootstrapper creates database files that join an existing Raft cluster.
// ovn-ctl accepts a single remote address only, so the file is prepared up front with
// every peer and ovn-ctl leaves an existing file alone.
type ClusterBootstrapper struct {
	fs      afero.Fs
	runner  executor.Runner
	release *ovn.Release
	log     logr.Logger
}

func NewClusterBootstrapper(fs afero.Fs, runner executor.Runner, release *ovn.Release, log logr.Logger) *ClusterBootstrapper {
	return &ClusterBootstrapper{fs: fs, runner: runner, release: release, log: log}
}

// JoinCluster runs `ovsdb-tool join-cluster` unless dbFile already exists. A relative
// dbFile is taken from the release database directory.
func (b *ClusterBootstrapper) JoinCluster(ctx context.Context, dbFile, schemaName string, localConn, remoteConn []string) error {
	path := dbFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.release.DBDir, dbFile)
	}
	exists, err := afero.Exists(b.fs, path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if exists {
		b.log.V(1).Info("OVN database exists on disk, not creating a new one joining cluster", "path", path)
		return nil
	}
	args := []string{"join-cluster", path, schemaName}
	args = append(args, localConn...)
	args = append(args, remoteConn...)
	b.log.Info("join cluster", "cmd", append([]string{"ovsdb-tool"}, args...))
	if _, err := b.runner.Run(ctx, "ovsdb-tool", args...); err != nil {
		return errors.Wrapf(err, "join cluster %s", schemaName)
	}
	return nil
}

// JoinDB joins the cluster of db on its cluster port.
func (b *ClusterBootstrapper) JoinDB(ctx context.Context, db ovn.DB, localAddr string, remoteAddrs []string, clusterPort int) error {
	if err := db.Validate(); err != nil {
		return err
	}
	return b.JoinCluster(ctx, db.File(), db.SchemaName(),
		ConnectionStrings([]string{localAddr}, clusterPort),
		ConnectionStrings(remoteAddrs, clusterPort))
}

// ConnectionStrings renders ssl:<addr>:<port> for every address.
func ConnectionStrings(addrs []string, port int) []string {
	res := make([]string, 0, len(addrs))
	for _, a := range addrs {
		res = append(res, "ssl:"+net.JoinHostPort(a, strconv.Itoa(port)))
	}
	return res
}
