// Package api defines the transport-friendly DTOs shared by the IPC surface
// and the CLI, plus conversions from internal queue and sync types.
//
// Keeping the wire shapes here lets the IPC server, the daemon, and the CLI
// render the same queue entries and sync reports without importing each
// other's internals.
package api
