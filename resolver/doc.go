/*
Package resolver implements a simple limiting DNS client-request execution
pool for best-effort reverse lookups. Pinginfo uses [Pool] with a pool of
“DNS workers” for PTR lookups of the probed host addresses. Lookup results
are cached for the lifetime of a run with last-successful-wins semantics, so
a failed or still-pending lookup never displaces a name that has already been
resolved.

Reverse lookups are strictly best-effort: any failure (non-address input,
NXDOMAIN, timeout) merely yields an absent name, so the display falls back to
the raw host identifier.

Usage

	pool, err := resolver.NewFromSystem(context.Background(), 4)
	pool.Reverse(ctx, "192.0.2.1", func(name string, err error) {
	    // do something with name, unless there's an error reported
	})
	name, ok := pool.Cached("192.0.2.1")

# Acknowledgements

Under its hood, [Pool] leverages [gammazero/workerpool] as the limiting
goroutine pool.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package resolver
