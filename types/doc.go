/*
Package types defines pinginfo's information model. Which is rather simple and
mainly revolves around [Outcome] and [Snapshot], as well as the probe [Status]
of hosts.

An [Outcome] records the verdict of a single probe against a single host in a
single round: its [Status], the measured round-trip [time.Duration] for
reachable hosts, and a short diagnostic for failed probes. A [Snapshot]
collects one [Entry] per configured host for one round, in configured host
order, and is immutable once published.

Please keep in mind that pinginfo is inherently concurrent: all hosts of a
round are probed (and reverse-resolved) at the same time. Outcomes and
snapshots therefore use plain value semantics throughout, so they can travel
through callbacks and channels without any locking.
*/
package types
