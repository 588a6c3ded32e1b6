// Package config loads, normalizes, and validates clipforge configuration
// from TOML. Path fields are tilde-expanded and made absolute during load,
// and secrets may be supplied through environment variables so config files
// can be committed without credentials.
package config
