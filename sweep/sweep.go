// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/siemens/pinginfo/types"

	"go.uber.org/zap"
)

// timeoutSlack is the extra leeway the coordinator grants a probe executor
// past the configured per-probe timeout before stamping the host as timed
// out on its own authority. It absorbs scheduling jitter between submitting
// a probe to the worker pool and the probe actually launching.
const timeoutSlack = 100 * time.Millisecond

// Prober issues a single reachability/latency check against one host,
// bounded by a timeout. The callback receives a non-terminal Probing outcome
// when the probe actually launches (as opposed to still sitting in an
// executor queue), followed by the terminal outcome exactly once.
// [probe.Prober] satisfies this contract.
type Prober interface {
	Probe(ctx context.Context, host string, timeout time.Duration, fn func(types.Outcome))
}

// Resolver looks up a host's display name best-effort: Reverse kicks off a
// lookup whose successful result becomes visible through Cached, and Cached
// never blocks. [resolver.Pool] satisfies this contract.
type Resolver interface {
	Reverse(ctx context.Context, addr string, fn func(name string, err error))
	Cached(addr string) (string, bool)
}

// Presenter renders a round's snapshot; it is a pure consumer and entirely
// decoupled from the coordinator's timing and concurrency.
type Presenter func(types.Snapshot)

// Sweeper coordinates probing rounds: one probe per configured host per
// round, all concurrent, joined against the per-probe deadline, assembled
// into ordered snapshots.
type Sweeper struct {
	cfg      Config
	prober   Prober
	resolver Resolver
	log      *zap.Logger

	mu        sync.Mutex
	resolving map[string]struct{} // reverse lookups currently in flight
}

// Option can be passed to New when creating new Sweeper objects.
type Option func(*Sweeper)

// WithLogger lets the sweeper report its round lifecycle to the specified
// logger instead of staying mute.
func WithLogger(log *zap.Logger) Option {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// New returns a new Sweeper for the specified configuration, probing with
// the specified prober and resolving display names with the specified
// resolver (which may be nil to skip name resolution altogether).
//
// The configuration is defaulted and validated here, before any round can
// start; an invalid configuration returns a [*ConfigError].
func New(cfg Config, prober Prober, resolver Resolver, options ...Option) (*Sweeper, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Sweeper{
		cfg:       cfg,
		prober:    prober,
		resolver:  resolver,
		log:       zap.NewNop(),
		resolving: map[string]struct{}{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Config returns the sweeper's effective (defaulted) configuration.
func (s *Sweeper) Config() Config { return s.cfg }

// Run sweeps all configured hosts once per round, handing each round's
// snapshot to the specified presenter, until the configured round count is
// exhausted or the context gets cancelled. It returns nil after a completed
// run and the context's error after a cancelled one; a cancelled round
// publishes no snapshot.
//
// Rounds start interval apart; when a round overruns the interval the next
// one starts immediately, but never does more than one round's work run
// concurrently.
func (s *Sweeper) Run(ctx context.Context, present Presenter) error {
	for n := 1; ; n++ {
		t0 := time.Now()
		snapshot, err := s.round(ctx, n, t0)
		if err != nil {
			return err
		}
		if present != nil {
			s.present(present, snapshot)
		}
		if s.cfg.Count > 0 && n >= s.cfg.Count {
			return nil
		}
		// Best-effort cadence: sleep out whatever remains of the interval.
		// time.After with an already-passed deadline fires immediately, so an
		// overrunning round never causes a lag pile-up.
		select {
		case <-time.After(time.Until(t0.Add(s.cfg.Interval))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// round probes all configured hosts concurrently and assembles the round's
// snapshot in configured host order, no matter in which order the individual
// probes completed.
func (s *Sweeper) round(ctx context.Context, n int, t0 time.Time) (types.Snapshot, error) {
	s.log.Debug("round starting",
		zap.Int("round", n), zap.Int("hosts", len(s.cfg.Hosts)))
	entries := make([]types.Entry, len(s.cfg.Hosts))
	var wg sync.WaitGroup
	for idx, host := range s.cfg.Hosts {
		s.kickResolve(ctx, host)
		wg.Add(1)
		go func(idx int, host string) {
			defer wg.Done()
			entries[idx] = types.Entry{Outcome: s.outcome(ctx, host)}
		}(idx, host)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		s.log.Debug("round aborted", zap.Int("round", n), zap.Error(err))
		return types.Snapshot{}, err
	}
	// Display names attach at assembly time only: a lookup arriving after a
	// host's outcome was joined shows up in a subsequent round.
	if s.resolver != nil {
		for idx := range entries {
			entries[idx].ResolvedName, _ = s.resolver.Cached(entries[idx].Host)
		}
	}
	s.log.Debug("round complete",
		zap.Int("round", n), zap.Duration("took", time.Since(t0)))
	return types.Snapshot{Round: n, Start: t0, Entries: entries}, nil
}

// outcome joins a single host's probe against the per-probe deadline. The
// deadline clock only starts once the executor reports the probe as
// launched: time a probe spends queueing inside the executor must not eat
// into its timeout budget. A launched probe whose executor then stays silent
// past the timeout (plus scheduling slack) is stamped as timed out without
// further waiting; the executor's own late verdict then goes nowhere, while
// the executor still releases its resources on its own eventual exit.
func (s *Sweeper) outcome(ctx context.Context, host string) types.Outcome {
	outch := make(chan types.Outcome, 2) // launch notification plus verdict
	s.prober.Probe(ctx, host, s.cfg.Timeout, func(out types.Outcome) {
		select {
		case outch <- out:
		default:
		}
	})
	wecker := time.NewTimer(s.cfg.Timeout + timeoutSlack)
	wecker.Stop() // armed only upon the launch notification
	defer wecker.Stop()
	for {
		select {
		case out := <-outch:
			if !out.Status.IsTerminal() {
				wecker.Reset(s.cfg.Timeout + timeoutSlack)
				continue
			}
			return out
		case <-wecker.C:
			s.log.Debug("probe executor overran its deadline", zap.String("host", host))
			return types.Outcome{Host: host, Status: types.TimedOut}
		case <-ctx.Done():
			// The round is being aborted; the caller discards this placeholder
			// together with the whole round.
			return types.Outcome{Host: host, Status: types.TimedOut}
		}
	}
}

// kickResolve starts a reverse lookup for the host unless one already
// succeeded or is still in flight. Failed lookups may be retried on a later
// round; re-resolving is wasteful but never harmful.
func (s *Sweeper) kickResolve(ctx context.Context, host string) {
	if s.resolver == nil {
		return
	}
	if _, ok := s.resolver.Cached(host); ok {
		return
	}
	s.mu.Lock()
	if _, inflight := s.resolving[host]; inflight {
		s.mu.Unlock()
		return
	}
	s.resolving[host] = struct{}{}
	s.mu.Unlock()
	rctx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout)
	s.resolver.Reverse(rctx, host, func(name string, err error) {
		cancel()
		s.mu.Lock()
		delete(s.resolving, host)
		s.mu.Unlock()
		if err != nil {
			s.log.Debug("reverse lookup failed",
				zap.String("host", host), zap.Error(err))
			return
		}
		s.log.Debug("reverse lookup",
			zap.String("host", host), zap.String("name", name))
	})
}

// present hands a snapshot to the presenter; a panicking presenter is
// reported but never aborts the run.
func (s *Sweeper) present(present Presenter, snapshot types.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("presenter failure", zap.Any("reason", r))
		}
	}()
	present(snapshot)
}
