// Package config loads threadsync's configuration file.
//
// # File Formats
//
// Files ending in .toml are parsed as TOML; anything else is parsed as
// YAML. Both formats use the same keys.
//
// # Environment Variables
//
// References of the form ${VAR_NAME} anywhere in the file are replaced
// with the variable's value before parsing, so tokens can stay out of the
// file:
//
//	server:
//	  token: "${THREADSYNC_TOKEN}"
//
// # Defaults
//
// Every field except server.origin has a default; see Defaults. Durations
// are written as Go duration strings ("5s", "10m").
//
// # Location
//
// DefaultPath checks THREADSYNC_CONFIG, then
// $XDG_CONFIG_HOME/threadsync/config.yaml, then
// ~/.config/threadsync/config.yaml.
package config
