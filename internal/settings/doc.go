// Package settings is the configuration-loading layer that consumes the boot
// bundle. It merges appsettings.yaml, the environment specific
// appsettings.<Environment>.yaml and the parameters resolved from the instance,
// in that order, into one flattened key space.
package settings
