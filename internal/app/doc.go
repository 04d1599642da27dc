// Package app wires application dependencies for the CLI.
//
// It reads Config from defaults and an optional TOML file, builds the
// store, ledger, public log client and services, and exposes them via the
// Wire struct for commands to use.
package app
