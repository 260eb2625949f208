// Package cache stores versioned, optionally expiring snapshots of remote
// reads so repeat fetches can be served without a round trip.
package cache
