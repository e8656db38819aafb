/*
Package webview implements the optional web presenter: a small HTTP server
serving a live, self-updating table of the most recent round snapshot.

[Server.Present] satisfies the sweep presenter contract; each presented
snapshot is kept as the latest state and broadcast as JSON to all connected
websocket clients. A slow or broken client merely gets dropped and never
blocks a probing round.
*/
package webview
