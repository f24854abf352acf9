// Package application wires the boot resolver to the AWS clients and builds
// the settings, handlers and HTTP server from a resolved bundle, keeping the
// main packages focused on CLI parsing and orchestration.
package application
