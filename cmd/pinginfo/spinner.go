// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// Yet another (braille) spinner.

package main

import "time"

// spinner is yet another blindingly simple spinner; just enough to get the
// job done, no bells, no frills. It derives its current phase from the wall
// clock, so there is no background ticker to start or stop.
type spinner struct {
	epoch    time.Time
	interval time.Duration
	phases   []string
}

// newSpinner returns a new spinner advancing one phase per specified
// interval.
func newSpinner(interval time.Duration) *spinner {
	phases := []string{}
	for _, r := range "⠉⠘⠰⠤⠆⠃" {
		phases = append(phases, string(r))
	}
	return &spinner{
		epoch:    time.Now(),
		interval: interval,
		phases:   phases,
	}
}

// Spinner returns the spinner string for the current phase.
func (s *spinner) Spinner() string {
	phase := int(time.Since(s.epoch)/s.interval) % len(s.phases)
	return s.phases[phase]
}
