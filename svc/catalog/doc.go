// Package catalog maintains the subscription plan catalog.
//
// Plans are described in YAML. A default catalog with the Economy, Business
// and First class plans is embedded in the binary; deployments may point
// PLAN_CATALOG_PATH at their own file. Seed writes the catalog into an empty
// store, SyncProvider publishes plans to the payment provider and records the
// returned product and price references, and SetActive toggles a plan, which
// is the only change allowed once subscriptions reference it.
package catalog
