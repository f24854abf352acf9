// Package boot resolves the process's environment and configuration parameters
// from the instance it runs on. It probes the instance metadata service for an
// identifier, reads the instance tags, and collects the parameters stored under
// the environment's path into a Bundle that the settings layer consumes before
// the rest of the application starts. Off-instance, a LocalDevelopment bundle is
// returned without any remote call.
package boot
