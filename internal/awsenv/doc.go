// Package awsenv adapts the AWS SDK clients (instance metadata, EC2 and SSM
// Parameter Store) to the collaborator interfaces consumed by package boot, and
// records every remote call in Prometheus metrics.
package awsenv
