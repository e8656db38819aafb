// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/siemens/pinginfo/probe"
	"github.com/siemens/pinginfo/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

// planned is what a fakeProber answers for a single host: the given outcome,
// but only after the given delay has passed.
type planned struct {
	delay time.Duration
	out   types.Outcome
}

// fakeProber answers probes from a fixed plan; each probe launches right
// away, but hosts without a plan then stay silent forever, so the
// coordinator has to stamp them itself.
type fakeProber struct {
	mu     sync.Mutex
	probes int
	plan   map[string]planned
}

func (f *fakeProber) Probe(ctx context.Context, host string, timeout time.Duration, fn func(types.Outcome)) {
	f.mu.Lock()
	f.probes++
	f.mu.Unlock()
	p, planned := f.plan[host]
	go func() {
		fn(types.Outcome{Host: host, Status: types.Probing})
		delay := p.delay
		if !planned {
			delay = time.Hour // never answer within any sane spec timeout.
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		out := p.out
		out.Host = host
		fn(out.Normalized())
	}()
}

func (f *fakeProber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// fakeResolver resolves from a fixed name table after an optional delay;
// addresses missing from the table report resolution failures.
type fakeResolver struct {
	mu    sync.Mutex
	delay time.Duration
	names map[string]string
	cache map[string]string
	calls int
}

func newFakeResolver(delay time.Duration, names map[string]string) *fakeResolver {
	return &fakeResolver{
		delay: delay,
		names: names,
		cache: map[string]string{},
	}
}

func (f *fakeResolver) Reverse(ctx context.Context, addr string, fn func(string, error)) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	go func() {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			fn("", ctx.Err())
			return
		}
		f.mu.Lock()
		name, ok := f.names[addr]
		if ok {
			f.cache[addr] = name
		}
		f.mu.Unlock()
		if !ok {
			fn("", errors.New("no such name"))
			return
		}
		fn(name, nil)
	}()
}

func (f *fakeResolver) Cached(addr string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.cache[addr]
	return name, ok
}

func (f *fakeResolver) reverses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// collector is a Presenter gathering the presented snapshots together with
// their hand-off times.
type collector struct {
	mu        sync.Mutex
	snapshots []types.Snapshot
	times     []time.Time
}

func (c *collector) present(snapshot types.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, snapshot)
	c.times = append(c.times, time.Now())
}

func (c *collector) all() []types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Snapshot(nil), c.snapshots...)
}

var _ = Describe("sweeper", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("rejects a broken configuration before any round starts", func() {
		prober := &fakeProber{}
		_, err := New(Config{}, prober, nil)
		var cfgerr *ConfigError
		Expect(errors.As(err, &cfgerr)).To(BeTrue())
		Expect(cfgerr.Field).To(Equal("hosts"))
		Expect(prober.count()).To(BeZero(), "no probe may ever be issued")
	})

	It("assembles snapshots in configured host order regardless of completion order",
		NodeTimeout(30*time.Second), func(specctx context.Context) {
			ctx, cancel := context.WithCancel(specctx)
			defer cancel()
			prober := &fakeProber{plan: map[string]planned{
				"slowpoke": {delay: 150 * time.Millisecond,
					out: types.Outcome{Status: types.Reachable, Latency: 150 * time.Millisecond}},
				"middling": {delay: 50 * time.Millisecond,
					out: types.Outcome{Status: types.Unreachable}},
				"swifty": {delay: 5 * time.Millisecond,
					out: types.Outcome{Status: types.Reachable, Latency: 5 * time.Millisecond}},
			}}
			sweeper := Successful(New(Config{
				Hosts:    []string{"slowpoke", "middling", "swifty"},
				Interval: 10 * time.Millisecond,
				Timeout:  time.Second,
				Count:    1,
			}, prober, nil))
			c := &collector{}
			Expect(sweeper.Run(ctx, c.present)).To(Succeed())

			snapshots := c.all()
			Expect(snapshots).To(HaveLen(1))
			Expect(snapshots[0].Round).To(Equal(1))
			hosts := []string{}
			for _, entry := range snapshots[0].Entries {
				hosts = append(hosts, entry.Host)
			}
			Expect(hosts).To(Equal([]string{"slowpoke", "middling", "swifty"}))
			Expect(snapshots[0].Entries[1].Status).To(Equal(types.Unreachable))
			Expect(snapshots[0].Entries[1].Latency).To(BeZero())
		})

	It("stamps silent probes as timed out and bounds the round by the slowest probe, not the sum",
		NodeTimeout(30*time.Second), func(specctx context.Context) {
			ctx, cancel := context.WithCancel(specctx)
			defer cancel()
			prober := &fakeProber{plan: map[string]planned{
				// "10.0.0.1" deliberately unplanned: it never answers.
				"10.0.0.2": {delay: 20 * time.Millisecond,
					out: types.Outcome{Status: types.Reachable, Latency: 20 * time.Millisecond}},
			}}
			sweeper := Successful(New(Config{
				Hosts:    []string{"10.0.0.1", "10.0.0.2"},
				Interval: 500 * time.Millisecond,
				Timeout:  200 * time.Millisecond,
				Count:    2,
			}, prober, nil))
			c := &collector{}
			start := time.Now()
			Expect(sweeper.Run(ctx, c.present)).To(Succeed())

			snapshots := c.all()
			Expect(snapshots).To(HaveLen(2))
			for round, snapshot := range snapshots {
				Expect(snapshot.Entries).To(HaveLen(2))
				Expect(snapshot.Entries[0].Status).To(Equal(types.TimedOut), "round %d", round+1)
				Expect(snapshot.Entries[0].Latency).To(BeZero())
				Expect(snapshot.Entries[1].Status).To(Equal(types.Reachable))
				Expect(snapshot.Entries[1].Latency).To(Equal(20 * time.Millisecond))
			}
			c.mu.Lock()
			handoffs := append([]time.Time(nil), c.times...)
			c.mu.Unlock()
			Expect(handoffs[0].Sub(start)).To(BeNumerically("<", 450*time.Millisecond),
				"hand-off must be bounded by the timeout, not the sum of all probes")
			Expect(handoffs[1].Sub(snapshots[1].Start)).To(BeNumerically("<", 450*time.Millisecond))
		})

	It("does not charge executor queueing time against a probe's deadline",
		NodeTimeout(30*time.Second), func(specctx context.Context) {
			ctx, cancel := context.WithCancel(specctx)
			defer cancel()
			// A single worker serializes the five probes, so the later ones
			// sit in the queue well past the probe timeout before they ever
			// get to run; they still answer within their own deadline and
			// must not be stamped as timed out.
			prober := probe.New(1, probe.WithPrimitive(
				func(_ context.Context, host string, _ time.Duration) types.Outcome {
					time.Sleep(150 * time.Millisecond)
					return types.Outcome{
						Host:    host,
						Status:  types.Reachable,
						Latency: 150 * time.Millisecond,
					}
				}))
			defer prober.StopWait()
			sweeper := Successful(New(Config{
				Hosts:    []string{"h1", "h2", "h3", "h4", "h5"},
				Interval: 5 * time.Second,
				Timeout:  400 * time.Millisecond,
				Count:    1,
			}, prober, nil))
			c := &collector{}
			Expect(sweeper.Run(ctx, c.present)).To(Succeed())

			snapshots := c.all()
			Expect(snapshots).To(HaveLen(1))
			Expect(snapshots[0].Entries).To(HaveLen(5))
			for _, entry := range snapshots[0].Entries {
				Expect(entry.Status).To(Equal(types.Reachable),
					"%s was merely queued, not slow", entry.Host)
				Expect(entry.Latency).To(Equal(150 * time.Millisecond))
			}
		})

	It("produces exactly the configured number of rounds and then stops",
		NodeTimeout(30*time.Second), func(specctx context.Context) {
			ctx, cancel := context.WithCancel(specctx)
			defer cancel()
			prober := &fakeProber{plan: map[string]planned{
				"gw": {out: types.Outcome{Status: types.Reachable, Latency: time.Millisecond}},
			}}
			sweeper := Successful(New(Config{
				Hosts:    []string{"gw"},
				Interval: 10 * time.Millisecond,
				Timeout:  100 * time.Millisecond,
				Count:    3,
			}, prober, nil))
			c := &collector{}
			Expect(sweeper.Run(ctx, c.present)).To(Succeed())
			Expect(c.all()).To(HaveLen(3))
			Expect(prober.count()).To(Equal(3), "no fourth round may ever have started")
			rounds := []int{}
			for _, snapshot := range c.all() {
				rounds = append(rounds, snapshot.Round)
			}
			Expect(rounds).To(Equal([]int{1, 2, 3}))
		})

	It("stops an unbounded run on cancellation without presenting the aborted round",
		NodeTimeout(30*time.Second), func(specctx context.Context) {
			ctx, cancel := context.WithCancel(specctx)
			defer cancel()
			prober := &fakeProber{plan: map[string]planned{
				"gw": {delay: 30 * time.Millisecond,
					out: types.Outcome{Status: types.Reachable, Latency: time.Millisecond}},
			}}
			sweeper := Successful(New(Config{
				Hosts:    []string{"gw"},
				Interval: 50 * time.Millisecond,
				Timeout:  100 * time.Millisecond,
				Count:    0, // unbounded
			}, prober, nil))
			c := &collector{}
			done := make(chan error, 1)
			go func() {
				done <- sweeper.Run(ctx, c.present)
			}()
			Eventually(func() int { return len(c.all()) }).
				WithTimeout(5 * time.Second).Should(BeNumerically(">=", 2))
			cancel()
			var err error
			Eventually(done).WithTimeout(2 * time.Second).Should(Receive(&err))
			Expect(err).To(MatchError(context.Canceled))
			presented := len(c.all())
			Consistently(func() int { return len(c.all()) }).
				WithTimeout(500 * time.Millisecond).Should(Equal(presented),
				"no further rounds after cancellation")
		})

	It("attaches reverse names as they become available, never blocking outcomes",
		NodeTimeout(30*time.Second), func(specctx context.Context) {
			ctx, cancel := context.WithCancel(specctx)
			defer cancel()
			prober := &fakeProber{plan: map[string]planned{
				"192.0.2.1": {out: types.Outcome{Status: types.Reachable, Latency: time.Millisecond}},
				"192.0.2.2": {out: types.Outcome{Status: types.Reachable, Latency: time.Millisecond}},
			}}
			resolver := newFakeResolver(120*time.Millisecond, map[string]string{
				"192.0.2.1": "gw.example.org",
				// 192.0.2.2 has no reverse name and keeps failing.
			})
			sweeper := Successful(New(Config{
				Hosts:    []string{"192.0.2.1", "192.0.2.2"},
				Interval: 100 * time.Millisecond,
				Timeout:  50 * time.Millisecond,
				Count:    3,
			}, prober, resolver))
			c := &collector{}
			Expect(sweeper.Run(ctx, c.present)).To(Succeed())

			snapshots := c.all()
			Expect(snapshots).To(HaveLen(3))
			Expect(snapshots[0].Entries[0].ResolvedName).To(BeEmpty(),
				"the lookup was still pending when the first round assembled")
			Expect(snapshots[2].Entries[0].ResolvedName).To(Equal("gw.example.org"))
			Expect(snapshots[2].Entries[0].DisplayName()).To(Equal("gw.example.org"))
			for _, snapshot := range snapshots {
				Expect(snapshot.Entries[1].ResolvedName).To(BeEmpty())
				Expect(snapshot.Entries[1].Status).To(Equal(types.Reachable),
					"a failing resolver must never change a probe outcome")
				Expect(snapshot.Entries[1].DisplayName()).To(Equal("192.0.2.2"))
			}
			Expect(resolver.reverses()).To(BeNumerically("<=", 2+3),
				"in-flight lookups must not be kicked off again")
		})

	It("keeps sweeping when the presenter goes belly-up",
		NodeTimeout(30*time.Second), func(specctx context.Context) {
			ctx, cancel := context.WithCancel(specctx)
			defer cancel()
			prober := &fakeProber{plan: map[string]planned{
				"gw": {out: types.Outcome{Status: types.Reachable, Latency: time.Millisecond}},
			}}
			sweeper := Successful(New(Config{
				Hosts:    []string{"gw"},
				Interval: 10 * time.Millisecond,
				Timeout:  100 * time.Millisecond,
				Count:    2,
			}, prober, nil))
			presented := 0
			Expect(sweeper.Run(ctx, func(types.Snapshot) {
				presented++
				if presented == 1 {
					panic("render glitch")
				}
			})).To(Succeed())
			Expect(presented).To(Equal(2))
		})

})
