// Package config loads, normalizes, and validates EchoPress configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and HF_TOKEN. The Config type centralizes every knob the
// daemon and CLI need so providers, timeouts, and directories are discovered
// in one pass.
package config
