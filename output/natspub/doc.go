// Package natspub provides the nats_publisher sink, which publishes every
// chunk it receives as a JSON record on the subject <prefix>.<kind>.<id>.
//
// Without a url the node publishes on the connection shared through
// component.Dependencies. With stream set, messages go through a JetStream
// stream covering <prefix>.> and each publish waits for the server ack.
//
//	pub = nats_publisher(detect, prefix="lab", stream="LAB")
package natspub
