// Package messaging publishes messages to a broker without tying callers to
// one. Kafka, NATS, NSQ and Google Pub/Sub are supported, plus an in-memory
// driver for local runs and tests.
package messaging
