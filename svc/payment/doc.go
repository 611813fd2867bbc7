// Package payment defines the payment processor boundary used for checkout,
// catalog publishing and payment confirmation, and ships a Paddle
// implementation built on the official SDK.
//
// The package also turns verified Paddle webhooks into the provider-neutral
// events consumed by the reconcile package.
package payment
