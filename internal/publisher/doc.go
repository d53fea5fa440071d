// Package publisher adapts external event sources to the registry's
// DeliverEvent entry point.
//
// RedisSubscriber pattern-subscribes to <prefix>* and treats the channel
// suffix as the subscription class. IngestHandler accepts JSON messages over
// a WebSocket. Neither acknowledges delivery to the publisher.
package publisher
