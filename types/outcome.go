// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "time"

// Outcome is the verdict of a single probe against a single host in a single
// round. Latency is only meaningful when Status is Reachable; Detail carries a
// short diagnostic for Failed probes.
type Outcome struct {
	Host    string        `json:"host"`              // host identifier as configured.
	Status  Status        `json:"status"`            // probe verdict.
	Latency time.Duration `json:"latency"`           // round-trip time; only when reachable.
	Detail  string        `json:"detail,omitempty"`  // short diagnostic; only when failed.
}

// Normalized returns a copy of the outcome with the latency-iff-reachable
// invariant enforced: non-reachable outcomes carry no latency, reachable
// outcomes carry no (stale) diagnostic and never a negative latency.
func (o Outcome) Normalized() Outcome {
	if o.Status != Reachable {
		o.Latency = 0
		return o
	}
	if o.Latency < 0 {
		o.Latency = 0
	}
	o.Detail = ""
	return o
}

// Entry pairs a probe outcome with the host's reverse-resolved name, if any.
// An empty ResolvedName means "display the raw host identifier".
type Entry struct {
	Outcome
	ResolvedName string `json:"resolvedName,omitempty"`
}

// DisplayName returns the resolved name, falling back to the raw host
// identifier.
func (e Entry) DisplayName() string {
	if e.ResolvedName != "" {
		return e.ResolvedName
	}
	return e.Host
}

// Snapshot is the ordered, immutable result set of one round: exactly one
// entry per configured host, in configured host order, regardless of the
// order in which the probes completed.
type Snapshot struct {
	Round   int       `json:"round"`   // 1-based round number.
	Start   time.Time `json:"start"`   // wall-clock start of the round.
	Entries []Entry   `json:"entries"` // one per configured host, in order.
}
