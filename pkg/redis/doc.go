// Package redis connects go-redis clients from environment configuration.
//
// The client backs the Redis Streams event bus, the shared idempotency
// store and the identity mapping table. Keys written by those components
// start with Config.KeyPrefix so one Redis database can host several
// deployments.
package redis
