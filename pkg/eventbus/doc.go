// Package eventbus carries domain notifications between services.
//
// Every message is an Envelope: a unique event id, an event type, a
// timestamp, the user (and optionally team) it concerns, and a free-form
// data map. Producers depend on Publisher, consumers on Subscriber.
//
// Backends:
//
//   - MemoryBus    in-process fan-out with bounded per-subscriber buffers.
//     Slow subscribers drop messages instead of blocking publishers.
//   - RedisBus     Redis Streams. Publish is XADD; Subscribe joins a consumer
//     group and acknowledges every delivered message after the handler
//     returns, whatever the outcome, so a failing handler never blocks the
//     stream.
//   - Archive      a Publisher decorator that stores a copy of every envelope
//     in a MongoDB collection before forwarding it.
//
// Batch collects envelopes produced inside a storage unit of work and
// publishes them once the unit has committed.
//
// # Delivery
//
// Delivery is at least once for RedisBus and at most once for MemoryBus.
// Handlers must be idempotent on Envelope.EventID; see package idempotency.
package eventbus
