package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/klogr"

	"github.com/ibm/ovn-central/pkg/config"
	"github.com/ibm/ovn-central/pkg/executor"
	"github.com/ibm/ovn-central/pkg/health"
	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/ovsdb"
)

var (
	configFile string
	timeout    time.Duration

	rootCmd = &cobra.Command{
		Use:   "run-ovn-db-connections-check",
		Short: "Check the Southbound connection table and record the result for NRPE",
		Long: `run-ovn-db-connections-check runs periodically on every unit. On the Southbound
DB leader it verifies the connection table, elsewhere it records a no-op result.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runCheck(ctx)
		},
	}
)

func init() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlag(flag.CommandLine.Lookup("v"))
	pflag.CommandLine.AddGoFlag(flag.CommandLine.Lookup("logtostderr"))
	pflag.CommandLine.Set("logtostderr", "true")

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file (yaml, json or toml)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
}

func runCheck(ctx context.Context) error {
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	release, err := ovn.LookupRelease(cfg.Release)
	if err != nil {
		return err
	}
	log := klogr.New()
	runner := executor.NewExecRunner(log.WithName("exec"))
	sb, err := ovsdb.NewDatabaseCtl(ovn.SB, runner, log.WithName("ovsdb"))
	if err != nil {
		return err
	}
	checker := health.NewRunner(afero.NewOsFs(), ovn.NewCLIAppctl(runner, release), sb, cfg.NagiosOutputFile, log)
	return checker.Run(ctx)
}

func main() {
	defer klog.Flush()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		klog.Flush()
		os.Exit(1)
	}
}
