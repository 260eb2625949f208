// Package connectivity tracks whether the remote store is reachable.
//
// The Observer interface decouples consumers from how reachability is
// learned: the Prober polls the remote health endpoint on a ticker, while
// Manual lets tests and embedders push state directly. Subscribers receive
// edge-detected transitions, not every probe, so an online flip can trigger
// exactly one queue drain.
package connectivity
