// Package natsclient manages the NATS connection used to publish pipeline
// chunks, with circuit breaker protection and JetStream support.
//
// The circuit opens after a threshold of consecutive failures (default 5).
// While open, Connect and the publish calls fail fast with ErrCircuitOpen;
// after the backoff the circuit half-opens and the next call may try again.
// Each opening doubles the backoff up to a maximum.
//
// Basic usage:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "mspikes.sampled.pen", data)
//
// Durable delivery goes through a JetStream stream:
//
//	if _, err := client.EnsureStream(ctx, "MSPIKES", "mspikes.>"); err != nil {
//	    return err
//	}
//	err = client.PublishToStream(ctx, "mspikes.events.pen", data)
//
// Integration tests start a server with NewTestServer, which is only built
// with the integration tag.
package natsclient
