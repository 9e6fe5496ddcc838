// Package config loads, normalizes, and validates nogal configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes the knobs the
// CLI needs: where the category database lives, which extensions count as ROM
// archives, where run history and lock files are kept, and how structured logs
// are emitted.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extensions, and clear validation errors.
package config
