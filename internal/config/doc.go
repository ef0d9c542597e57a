// Package config loads, normalizes, and validates discstack configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DISCSTACK_WORKERS. The Config type centralizes every knob the stacker, the
// dropout detectors, and the output writer need.
//
// Always obtain settings through this package so downstream code receives
// sanitized values and clear validation errors.
package config
