// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/siemens/pinginfo/probe"
	"github.com/siemens/pinginfo/resolver"
	"github.com/siemens/pinginfo/sweep"
	"github.com/siemens/pinginfo/types"
	"github.com/siemens/pinginfo/webview"

	"github.com/gosuri/uilive"
	"github.com/miekg/dns"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ProbeAndReport assembles a probing run from the configuration file and the
// CLI flags, then sweeps the hosts round after round, rendering each round's
// snapshot as a live terminal table (and optionally additionally serving it
// as a live web view).
func ProbeAndReport(ctx context.Context, cmd *cobra.Command, hosts []string) error {
	log := newLogger(*debug, *logFile)
	defer func() { _ = log.Sync() }()

	cfg, err := runConfig(cmd, hosts)
	if err != nil {
		return err
	}
	cfg.SetDefaults()

	// Now lets put the required processing elements and their plumbing in
	// place.
	//
	//   - Prober issuing one bounded ICMP probe per host and round.
	//   - Resolver pool digging up display names, best effort only.
	//   - Sweeper coordinating the rounds and assembling the snapshots.
	//
	// Rendering is done on the snapshots the sweeper hands out.
	var proberopts []probe.Option
	if *unprivileged {
		proberopts = append(proberopts, probe.AsUnprivileged())
	}
	prober := probe.New(cfg.Workers, proberopts...)
	defer prober.StopWait()

	// Reverse lookups don't need a DNS connection per host; a handful of
	// pooled connections serves even long host lists.
	rsize := cfg.Workers
	if rsize > 32 {
		rsize = 32
	}
	var rsv sweep.Resolver
	pool, err := newResolverPool(ctx, rsize)
	if err != nil {
		log.Warn("continuing without reverse name resolution", zap.Error(err))
	} else {
		rsv = pool
		defer pool.StopWait()
	}

	sweeper, err := sweep.New(cfg, prober, rsv, sweep.WithLogger(log))
	if err != nil {
		return err
	}

	// Fire off the rendering goroutine. Dunno what uilive's background
	// updating mode using Start() is good for? It may trigger anytime with
	// the rendering into the buffer not yet complete, thus making the
	// terminal output very flickery. So we avoid Start() and instead trigger
	// an explicit flush to the terminal after having completed the rendering.
	term := uilive.New()
	rndr := newRenderer(term, len(cfg.Hosts))
	sweepingDone := make(chan struct{})
	renderingDone := make(chan struct{})
	go func() {
		defer close(renderingDone)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rndr.Render()
				term.Flush()
			case <-sweepingDone:
				rndr.Render()
				term.Flush()
				return
			}
		}
	}()

	present := rndr.Present
	if *listenAddr != "" {
		web := webview.NewServer(log)
		websrv := &http.Server{Addr: *listenAddr, Handler: web.Handler()}
		go func() {
			if err := websrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("web view failed", zap.Error(err))
			}
		}()
		defer func() {
			shutctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = websrv.Shutdown(shutctx)
			web.Close()
		}()
		log.Info("web view listening", zap.String("address", *listenAddr))
		present = func(snapshot types.Snapshot) {
			rndr.Present(snapshot)
			web.Present(snapshot)
		}
	}

	err = sweeper.Run(ctx, present)
	close(sweepingDone)
	<-renderingDone
	return err
}

// runConfig returns the run configuration from the configuration file, if
// any, with all flags explicitly set on the command line taking precedence;
// without a configuration file the flags alone rule. Hosts given as CLI
// arguments always replace the configured host list.
func runConfig(cmd *cobra.Command, hosts []string) (sweep.Config, error) {
	var cfg sweep.Config
	fromFile := *configFile != ""
	if fromFile {
		var err error
		cfg, err = sweep.Load(*configFile)
		if err != nil {
			return cfg, err
		}
	}
	if len(hosts) > 0 {
		cfg.Hosts = hosts
	}
	flags := cmd.Flags()
	if !fromFile || flags.Changed("interval") {
		cfg.Interval = *interval
	}
	if !fromFile || flags.Changed("timeout") {
		cfg.Timeout = *timeout
	}
	if !fromFile || flags.Changed("resolve-timeout") {
		cfg.ResolveTimeout = *resolveTimeout
	}
	if !fromFile || flags.Changed("count") {
		cfg.Count = int(*count)
	}
	if !fromFile || flags.Changed("workers") {
		cfg.Workers = int(*workerNumber)
	}
	return cfg, nil
}

// newResolverPool returns a reverse lookup pool talking either to the
// explicitly specified DNS server or to the system's configured resolver.
func newResolverPool(ctx context.Context, size int) (*resolver.Pool, error) {
	if *resolverAddr != "" {
		return resolver.New(ctx, size, new(dns.Client), *resolverAddr)
	}
	return resolver.NewFromSystem(ctx, size)
}
