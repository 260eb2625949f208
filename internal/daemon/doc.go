// Package daemon coordinates the long-running Satchel process.
//
// It wires the local store, sync queue, offline facade, sync manager, and
// connectivity monitor into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon owns the scheduled sync ticker and
// cache pruning, tracks the most recent drain for status reporting, and
// exposes the queue maintenance operations the IPC surface forwards to.
//
// Keep orchestration logic here: drain mechanics live in syncer, write
// buffering in offline, and persistence in localstore and syncqueue, while
// the daemon focuses on startup, shutdown, and high level coordination.
package daemon
