// Package config loads the process settings (HTTP server, rate limits, AWS
// lookup options) from defaults, environment variables, a YAML file and CLI
// flags, with precedence: CLI flags > YAML config > Environment variables >
// Defaults. Application settings resolved from the instance live in package
// settings instead.
package config
