// Package config loads, normalizes, and validates spotroi configuration.
//
// Settings come from a TOML file (~/.config/spotroi/config.toml, then
// ./spotroi.toml, or an explicit --config path) layered over Default().
// Command-line flags are applied by the CLI after Load returns.
package config
