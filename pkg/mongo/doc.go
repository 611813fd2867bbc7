// Package mongo connects the mongo-driver v2 client from environment
// configuration. The service uses MongoDB only as an append-only archive of
// published domain events (see eventbus.Archive); Collection opens that
// collection and makes sure its lookup index exists.
package mongo
