// Package config loads, normalizes, and validates tickd configuration.
//
// Values come from a TOML file (default ~/.config/tickd/config.toml, then
// ./tickd.toml) layered over Default(). Durations are written as Go duration
// strings ("1s", "59m50s") and parsed during normalization; paths are
// expanded to absolute form. Use Load for all runtime access so every
// command sees the same resolved values.
package config
