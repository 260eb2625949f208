// Package conflict decides what happens when a queued offline edit meets a
// remote record that changed in the meantime.
package conflict
