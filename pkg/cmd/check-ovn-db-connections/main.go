package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ibm/ovn-central/pkg/health"
)

var (
	outputFile string

	rootCmd = &cobra.Command{
		Use:   "check-ovn-db-connections",
		Short: "NRPE check reporting the result of run-ovn-db-connections-check",
		Args:  cobra.NoArgs,
		// the exit code is the check result
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			res := health.ReadOutput(afero.NewOsFs(), outputFile, time.Now())
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			os.Exit(res.ExitCode())
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "file", "f", health.OutputFile, "result file written by run-ovn-db-connections-check")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("UNKNOWN: %v\n", err)
		os.Exit(int(health.StatusUnknown))
	}
}
