package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibm/ovn-central/pkg/central"
	"github.com/ibm/ovn-central/pkg/ovn"
	"github.com/ibm/ovn-central/pkg/reactive"
)

var (
	listenerRole string
	firewallInit bool
	firewallCMS  bool

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Run every handler whose conditions hold and report the workload status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				bus, err := reactive.NewBus(u.fs, u.cfg.StateFile, u.log.WithName("reactive"))
				if err != nil {
					return err
				}
				status, msg, err := u.central.Reconcile(ctx, bus)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status, msg)
				return nil
			})
		},
	}

	configureCmd = &cobra.Command{
		Use:   "configure",
		Short: "Create the listeners and set the election timers of the databases this unit leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				return u.central.ConfigureOVN(ctx)
			})
		},
	}

	electionTimerCmd = &cobra.Command{
		Use:   "election-timer nb|sb [seconds]",
		Short: "Move the Raft election timer of a database to the configured or given value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ovn.ParseDB(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				target := u.cfg.ElectionTimer
				if len(args) == 2 {
					if target, err = strconv.Atoi(args[1]); err != nil {
						return fmt.Errorf("invalid election timer %q: %v", args[1], err)
					}
				}
				return u.central.Timer.Converge(ctx, db, target)
			})
		},
	}

	listenerCmd = &cobra.Command{
		Use:   "listener nb|sb port",
		Short: "Make sure a pssl:<port> listener exists with the configured inactivity probe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ovn.ParseDB(args[0])
			if err != nil {
				return err
			}
			port, err := strconv.Atoi(args[1])
			if err != nil || port <= 0 || port > 65535 {
				return fmt.Errorf("invalid port %q", args[1])
			}
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				settings := central.PortSettings{"inactivity_probe": u.cfg.InactivityProbeMs()}
				if cmd.Flags().Changed("role") {
					settings["role"] = listenerRole
				}
				return u.central.Listeners.Reconcile(ctx, db, central.PortMap{port: settings})
			})
		},
	}

	joinClusterCmd = &cobra.Command{
		Use:   "join-cluster nb|sb",
		Short: "Prepare the database file joining the peers, unless it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ovn.ParseDB(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				port := u.cfg.Ports.NBCluster
				if db == ovn.SB {
					port = u.cfg.Ports.SBCluster
				}
				return u.central.Bootstrapper.JoinDB(ctx, db, u.cfg.LocalAddress, u.cfg.RemoteAddresses, port)
			})
		},
	}

	clusterStatusCmd = &cobra.Command{
		Use:   "cluster-status nb|sb",
		Short: "Show the Raft status of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ovn.ParseDB(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				status, err := u.central.Cluster.ClusterStatus(ctx, db)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if status == nil {
					fmt.Fprintf(out, "%s: not ready\n", db.Target())
					return nil
				}
				fmt.Fprintf(out, "name: %s\ncluster id: %s\nserver id: %s\nrole: %s\nterm: %d\nleader: %s\nelection timer: %d\nservers: %d\n",
					status.Name, status.ClusterID, status.ServerID, status.Role, status.Term, status.Leader,
					status.ElectionTimer, len(status.Servers))
				return nil
			})
		},
	}

	assessStatusCmd = &cobra.Command{
		Use:   "assess-status",
		Short: "Print the workload status of the unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				status, msg, err := u.central.AssessStatus(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status, msg)
				return nil
			})
		},
	}

	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Mask the packaged services so they do not create standalone databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				return u.central.Services.Mask(ctx)
			})
		},
	}

	servicesCmd = &cobra.Command{
		Use:   "services",
		Short: "List the monitored services that are not running, fails when there are any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				inactive, err := u.central.Services.Inactive(ctx)
				if err != nil {
					return err
				}
				if len(inactive) > 0 {
					return fmt.Errorf("services not running: %s", strings.Join(inactive, ", "))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all services running")
				return nil
			})
		},
	}

	firewallCmd = &cobra.Command{
		Use:   "firewall",
		Short: "Restrict the database and cluster ports to the peers and clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, u *unit) error {
				if firewallInit {
					if err := u.central.Firewall.Initialize(ctx); err != nil {
						return err
					}
				}
				return u.central.Firewall.Configure(ctx, u.central.FirewallAccess(firewallCMS))
			})
		},
	}
)

func init() {
	listenerCmd.Flags().StringVar(&listenerRole, "role", "", "RBAC role of the listener, e.g. ovn-controller")
	firewallCmd.Flags().BoolVar(&firewallInit, "init", false, "enable the firewall first, this disrupts active connections")
	firewallCmd.Flags().BoolVar(&firewallCMS, "clients", false, "also open the client ports to clients.remote-addresses")
}
