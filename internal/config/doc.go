// Package config loads, normalizes, and validates Satchel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SATCHEL_REMOTE_API_KEY. The Config type centralizes every knob the daemon
// and CLI need, allowing the data directory and remote store credentials to
// be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
