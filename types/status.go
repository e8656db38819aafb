// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "fmt"

// Status indicates the probe state of a host, such as reachable, timed out,
// et cetera.
type Status int

// The probe states of a host.
const (
	Unknown     Status = iota // host not yet probed.
	Probing                   // probe in flight.
	Reachable                 // host answered within the probe deadline.
	Unreachable               // the network stack refused delivery.
	TimedOut                  // probe deadline passed without an answer.
	Failed                    // probe could not be carried out at all.
)

// String returns the clear-text representation of a Status value.
func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Probing:
		return "probing"
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	case TimedOut:
		return "timeout"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", s)
}

// MarshalText returns the clear-text representation, so snapshots marshal
// their statuses as strings instead of bare numbers.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true when a probe has reached its final verdict for the
// current round.
func (s Status) IsTerminal() bool {
	switch s {
	case Reachable, Unreachable, TimedOut, Failed:
		return true
	default:
		return false
	}
}
