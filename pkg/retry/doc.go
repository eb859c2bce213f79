// Package retry retries operations that fail with transient errors, backing
// off exponentially between attempts.
//
// Errors are classified with the errors package: only transient errors are
// retried, anything else is returned at once. The command uses it to connect
// to NATS at startup:
//
//	err := retry.Do(ctx, retry.Startup(), client.Connect)
package retry
