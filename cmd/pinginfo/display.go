// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/siemens/pinginfo/types"

	"github.com/muesli/termenv"
)

// renderer renders the terminal display, based on the most recent round
// snapshot passed to its Present method.
type renderer struct {
	w       io.Writer
	hosts   int
	spinner *spinner

	mu     sync.Mutex
	latest *types.Snapshot
}

// newRenderer returns a renderer object rendering to the specified io.Writer
// for the specified number of swept hosts.
func newRenderer(w io.Writer, hosts int) *renderer {
	return &renderer{
		w:       w,
		hosts:   hosts,
		spinner: newSpinner(*spinnerInterval),
	}
}

// Present takes note of the most recent round snapshot; the rendering ticker
// picks it up on its next tick.
func (r *renderer) Present(snapshot types.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = &snapshot
}

// Render the most recent round snapshot as a table, one row per host, in the
// configured host order.
func (r *renderer) Render() {
	r.mu.Lock()
	latest := r.latest
	r.mu.Unlock()
	// If no round has completed yet, show a proxy message.
	if latest == nil {
		fmt.Fprintf(r.w, "%s sweeping %d host(s)...\n", r.spinner.Spinner(), r.hosts)
		return
	}
	// For neat display, determine the length of the longest host in the data
	// to display, so that the columns don't zig-zag around.
	hostwidth := len("HOST")
	statuswidth := len("STATUS")
	for _, entry := range latest.Entries {
		if l := len(entry.Host); l > hostwidth {
			hostwidth = l
		}
		if l := len(entry.Status.String()) + 2; l > statuswidth {
			statuswidth = l
		}
	}
	fmt.Fprintf(r.w, "round %d at %s\n",
		latest.Round, latest.Start.Format("15:04:05"))
	// Pad first, style second: the invisible escape sequences would otherwise
	// count towards the column widths.
	fmt.Fprintln(r.w, headerStyle.Styled(
		fmt.Sprintf("%-*s  %-*s  %-9s  %s",
			hostwidth, "HOST", statuswidth, "STATUS", "LATENCY", "NAME")))
	for _, entry := range latest.Entries {
		r.renderEntry(hostwidth, statuswidth, entry)
	}
}

// renderEntry renders a single host's row of the table.
func (r *renderer) renderEntry(hostwidth, statuswidth int, entry types.Entry) {
	glyph, style := statusDecoration(entry.Status)
	latency := "-"
	if entry.Status == types.Reachable {
		latency = fmt.Sprintf("%.1f ms", float64(entry.Latency.Microseconds())/1000.0)
	}
	name := entry.ResolvedName
	if name == "" {
		name = "-"
	}
	// The glyph gets padded separately, as it is a single terminal cell but
	// multiple bytes wide.
	status := style.Styled(
		glyph + " " + fmt.Sprintf("%-*s", statuswidth-2, entry.Status.String()))
	fmt.Fprintf(r.w, "%-*s  %s  %-9s  %s\n",
		hostwidth, entry.Host, status, latency, nameStyle.Styled(name))
}

// statusDecoration returns the glyph and terminal style for rendering the
// specified probe status.
func statusDecoration(status types.Status) (string, termenv.Style) {
	switch status {
	case types.Reachable:
		return "✔", reachableStyle
	case types.TimedOut:
		return "?", timedOutStyle
	case types.Unreachable, types.Failed:
		return "×", unreachableStyle
	}
	return "·", termenv.Style{}
}
