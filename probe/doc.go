/*
Package probe implements the probe executor: single-shot ICMP(v4/v6)
reachability and latency checks against individual hosts.

[Prober] objects support concurrent probe jobs with maximum goroutine limits.
A probe is submitted together with a callback; the callback receives exactly
one terminal [types.Outcome] once the probe has been decided:

	         +---+
	host --->| P +---> fn(types.Outcome)
	         +---+

The actual reachability check is carried out by a [Primitive]. The default
primitive sends ICMP echoes using [go-ping/ping], bounded by the per-probe
timeout and abortable through the probe's context, so that a cancelled run
never leaves a pinger (and its socket) behind. Alternate primitives can be
plugged in with [WithPrimitive], which is also how the test suite swaps in
deterministic fakes.

When a probe sends more than one echo ([WithCount]), the individual
round-trip times are smoothed into the reported latency using
[VividCortex/ewma].

# Acknowledgements

Under its hood, [Prober] leverages [gammazero/workerpool] as the limiting
goroutine pool.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
[go-ping/ping]: https://github.com/go-ping/ping
[VividCortex/ewma]: https://github.com/VividCortex/ewma
*/
package probe
