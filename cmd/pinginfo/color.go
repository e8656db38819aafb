// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import "github.com/muesli/termenv"

var (
	reachableStyle   = termenv.Style{}.Foreground(termenv.ANSIGreen)
	timedOutStyle    = termenv.Style{}.Foreground(termenv.ANSIYellow)
	unreachableStyle = termenv.Style{}.Foreground(termenv.ANSIRed)
)

var (
	headerStyle = termenv.Style{}.Bold()
	nameStyle   = termenv.Style{}.Faint()
)
