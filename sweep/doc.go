/*
Package sweep implements the round coordinator: for each round, it fans out
one probe per configured host concurrently, joins all outcomes against the
per-probe deadline, and assembles an ordered, immutable [types.Snapshot] that
is handed to a presenter. Rounds repeat on a fixed wall-clock cadence until
the configured count is exhausted or the run's context gets cancelled.

The coordinator enforces the per-probe timeout itself, with the deadline
clock starting when a probe reports its launch, not when it was enqueued. A
launched probe whose executor then stays silent past the deadline gets
stamped as timed out without the round waiting for it, so a single stuck
host never stretches the round's wall-clock duration beyond the timeout.
Completion order never leaks into snapshots; entries always appear in
configured host order.

Reverse name resolution runs on the side with its own independent bound and
never blocks a host's probe outcome: names are attached from the resolver
cache at snapshot assembly time, so a late lookup simply shows up in a
subsequent round.

Cancelling the run's context aborts the round in flight; the aborted round
publishes no snapshot and [Sweeper.Run] returns the context's error, so
callers can report "cancelled" distinctly from "completed".
*/
package sweep
