// Package logs provides bounded-memory tailing of the daemon log file.
//
// It supports "last N lines" reads via a negative offset and incremental
// follow-mode reads that resume from the byte offset of the previous call,
// which is how `satchel show --follow` streams new entries. Callers pass a
// context so polling stops cleanly when the CLI exits.
package logs
