// Package debounce coalesces bursts of per-key calls into single executions.
//
// Rapid edits to one record produce one durable write instead of many: calls
// sharing a key within the window fold their payloads together and block on a
// single execution of the most recent function. MaxBatch and MaxWait bound how
// long a burst can keep deferring the write.
package debounce
