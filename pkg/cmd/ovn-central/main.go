package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "ovn-central",
		Short: "Operates the OVN central databases of a unit",
		Long: `ovn-central bootstraps the clustered OVN Northbound and Southbound databases,
creates their listeners, moves their Raft election timers and locks down the firewall.
Configuration is read from --config and OVN_CENTRAL_* environment variables.`,
		SilenceUsage: true,
	}
)

func init() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlag(flag.CommandLine.Lookup("v"))
	pflag.CommandLine.AddGoFlag(flag.CommandLine.Lookup("logtostderr"))
	pflag.CommandLine.Set("logtostderr", "true")

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (yaml, json or toml)")
	rootCmd.AddCommand(
		reconcileCmd,
		configureCmd,
		electionTimerCmd,
		listenerCmd,
		joinClusterCmd,
		clusterStatusCmd,
		assessStatusCmd,
		firewallCmd,
		installCmd,
		servicesCmd,
	)
}

func main() {
	defer klog.Flush()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		klog.Flush()
		os.Exit(1)
	}
}
