// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/siemens/pinginfo/types"

	"github.com/VividCortex/ewma"
	"github.com/gammazero/workerpool"
	"github.com/go-ping/ping"
	"golang.org/x/time/rate"
)

// Primitive carries out a single reachability check against a single host,
// bounded by the specified timeout and abortable through the specified
// context. It must return a terminal outcome and must not leak any resource
// (socket, goroutine, child process) past its own return.
type Primitive func(ctx context.Context, host string, timeout time.Duration) types.Outcome

// Prober issues reachability/latency probes against hosts using a
// goroutine-limited worker pool, reporting each probe's terminal
// [types.Outcome] through a per-probe callback.
type Prober struct {
	count        int           // number of echoes per probe.
	echoInterval time.Duration // distance between echoes of a single probe.
	unprivileged bool          // if true, uses UDP-based pings instead of privileged ICMPs.

	primitive Primitive              // the reachability check to run per probe.
	limiter   *rate.Limiter          // optional probe launch pacing.
	workers   *workerpool.WorkerPool // probe workers for running incoming jobs concurrently.
	stopOnce  sync.Once
}

// Option can be passed to New when creating new Prober objects.
type Option func(*Prober)

// New returns a new [Prober] with a maximum worker pool of the specified
// size. The new prober defaults to a single ICMP echo per probe; multiple
// echoes can be requested with [WithCount], their round-trip times then get
// smoothed into the single reported latency.
//
// The prober can be configured during creation using several options:
//   - [WithCount]
//   - [WithEchoInterval]
//   - [AsUnprivileged]
//   - [WithRateLimit]
//   - [WithPrimitive]
func New(size int, options ...Option) *Prober {
	prober := &Prober{
		count:        1,
		echoInterval: time.Second,
		workers:      workerpool.New(size),
	}
	for _, opt := range options {
		opt(prober)
	}
	if prober.primitive == nil {
		prober.primitive = prober.icmp
	}
	return prober
}

// WithCount sets the number of echoes sent per probe when testing
// reachability of a host.
func WithCount(count uint) Option {
	return func(p *Prober) {
		if count > 0 {
			p.count = int(count)
		}
	}
}

// WithEchoInterval sets the interval between consecutive echoes of a single
// probe; it only matters for probes with more than one echo.
func WithEchoInterval(interval time.Duration) Option {
	return func(p *Prober) {
		p.echoInterval = interval
	}
}

// AsUnprivileged tells the Prober to carry out unprivileged pings using UDP
// instead of ICMP packets.
func AsUnprivileged() Option {
	return func(p *Prober) {
		p.unprivileged = true
	}
}

// WithRateLimit paces probe launches, so probing large host lists doesn't
// burst ICMP traffic into the network all at once.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(p *Prober) {
		p.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithPrimitive replaces the default ICMP reachability check with the
// specified one.
func WithPrimitive(primitive Primitive) Option {
	return func(p *Prober) {
		p.primitive = primitive
	}
}

// Probe enqueues a single reachability/latency check against the specified
// host, bounded by the specified timeout. The callback fn first receives a
// non-terminal Probing outcome the moment the probe actually launches, and
// after that exactly once the probe's terminal, normalized outcome. Callers
// accounting for the probe deadline should start their clock at the launch
// notification: time spent queueing for a free worker or waiting out the
// rate limiter does not count against the timeout. fn may be invoked from a
// worker goroutine, so it must be safe for concurrent use.
//
// A probe whose context is cancelled before it launches skips the launch
// notification and reports its terminal TimedOut right away; the coordinator
// owning the round discards such late verdicts anyway.
func (p *Prober) Probe(ctx context.Context, host string, timeout time.Duration, fn func(types.Outcome)) {
	p.workers.Submit(func() {
		out := types.Outcome{Host: host, Status: types.TimedOut}
		defer func() { fn(out.Normalized()) }()
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}
		// A quick and non-blocking check to see if the context has been
		// cancelled before we start our work...
		select {
		case <-ctx.Done():
			return
		default:
		}
		fn(types.Outcome{Host: host, Status: types.Probing})
		out = p.primitive(ctx, host, timeout)
		out.Host = host
	})
}

// icmp is the default probing primitive: it sends the configured number of
// ICMP echoes and classifies the result.
func (p *Prober) icmp(ctx context.Context, host string, timeout time.Duration) types.Outcome {
	out := types.Outcome{Host: host}
	pinger, err := ping.NewPinger(host)
	if err != nil {
		out.Status = types.Failed
		out.Detail = err.Error()
		return out
	}
	pinger.SetPrivileged(!p.unprivileged)
	pinger.Count = p.count
	pinger.Interval = p.echoInterval
	// Always limit waiting for the last echo to get reflected (or not)!
	pinger.Timeout = timeout
	avg := ewma.NewMovingAverage()
	pinger.OnRecv = func(pkt *ping.Packet) {
		avg.Add(float64(pkt.Rtt))
	}
	// While the echoes are in flight we need to monitor the context in case
	// it becomes "done" by either getting cancelled or reaching its deadline.
	// The done channel here works "the other way round" in the sense that it
	// terminates the concurrent context monitoring.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()
	// Now start making some noise...
	if err := pinger.Run(); err != nil {
		out.Status = classifyRunError(err)
		if out.Status == types.Failed {
			out.Detail = err.Error()
		}
		return out
	}
	if ctx.Err() != nil {
		out.Status = types.TimedOut
		return out
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		// The deadline passed without a single reflected echo.
		out.Status = types.TimedOut
		return out
	}
	out.Status = types.Reachable
	if rtt := time.Duration(avg.Value()); rtt > 0 {
		out.Latency = rtt
	} else {
		out.Latency = stats.AvgRtt
	}
	return out
}

// classifyRunError separates delivery refusals by the local network stack
// from probes that could not be carried out at all.
func classifyRunError(err error) types.Status {
	if errors.Is(err, os.ErrPermission) {
		return types.Failed
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return types.Unreachable
	}
	msg := err.Error()
	if strings.Contains(msg, "unreachable") || strings.Contains(msg, "no route") ||
		strings.Contains(msg, "connection refused") {
		return types.Unreachable
	}
	return types.Failed
}

// StopWait waits for all queued probes to get processed and then shuts the
// worker pool down.
func (p *Prober) StopWait() {
	p.stopOnce.Do(func() {
		p.workers.StopWait()
	})
}
