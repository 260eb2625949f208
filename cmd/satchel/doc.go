// Package main hosts the Satchel CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon, sync queue maintenance operations, log tailing, bulk
// imports, and configuration scaffolding. It centralizes configuration
// resolution and socket discovery so subcommands can focus on user
// experience instead of wiring. Commands that work without a running daemon
// fall back to direct database access through queueaccess.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
