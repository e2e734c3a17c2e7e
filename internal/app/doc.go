// Package app wires the configurator together: it loads the definitions,
// builds one session per tab, opens the saved state store and serves health
// and metrics endpoints. It is decoupled from any entrypoint like the CLI.
package app
