// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	interval        *time.Duration
	timeout         *time.Duration
	resolveTimeout  *time.Duration
	count           *uint
	workerNumber    *uint
	resolverAddr    *string
	spinnerInterval *time.Duration
	unprivileged    *bool
	listenAddr      *string
	configFile      *string
	debug           *bool
	logFile         *string
)

func newRootCmd() (rootCmd *cobra.Command) {
	rootCmd = &cobra.Command{
		Use:          "pinginfo [flags] host [host...]",
		Short:        "pinginfo repeatedly probes hosts for reachability and latency, showing a live table",
		Version:      "0.9",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if *workerNumber > 64 {
				return fmt.Errorf("--workers out of range [0..64]")
			}
			if *spinnerInterval < 10*time.Millisecond {
				return fmt.Errorf("--spinner must be at least 10ms")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && *configFile == "" {
				return fmt.Errorf("needs at least one host to probe (or --config)")
			}
			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := ProbeAndReport(ctx, cmd, args)
			if errors.Is(err, context.Canceled) {
				// an interrupted run is not worth an error message on top.
				cmd.SilenceErrors = true
			}
			return err
		},
	}
	// Sets up the flags.
	debug = rootCmd.PersistentFlags().Bool(
		"debug", false, "enable debugging output")
	interval = rootCmd.PersistentFlags().DurationP(
		"interval", "i", time.Second, "distance between round starts")
	timeout = rootCmd.PersistentFlags().DurationP(
		"timeout", "t", 1500*time.Millisecond, "per-probe timeout")
	count = rootCmd.PersistentFlags().UintP(
		"count", "c", 4, "number of rounds, 0 keeps probing until interrupted")
	workerNumber = rootCmd.PersistentFlags().Uint(
		"workers", 0, "number of probe and resolver workers, 0 sizes by host count")
	resolverAddr = rootCmd.PersistentFlags().String(
		"resolver", "", "DNS server \"host:port\" for reverse lookups, defaults to the system resolver")
	resolveTimeout = rootCmd.PersistentFlags().Duration(
		"resolve-timeout", time.Second, "per-reverse-lookup timeout")
	unprivileged = rootCmd.PersistentFlags().Bool(
		"unprivileged", false, "use unprivileged UDP \"pings\" instead of raw ICMP sockets")
	listenAddr = rootCmd.PersistentFlags().String(
		"listen", "", "also serve a live web view on this \"host:port\"")
	configFile = rootCmd.PersistentFlags().String(
		"config", "", "YAML run configuration file")
	spinnerInterval = rootCmd.PersistentFlags().Duration(
		"spinner", 100*time.Millisecond, "spinner interval")
	logFile = rootCmd.PersistentFlags().String(
		"log-file", "", "additionally log (JSON) to this file, with rotation")
	return
}
