// Package inbound exposes the HTTP surface: the PayPal webhook endpoint and
// the read-only donation endpoints.
//
// Webhook deliveries are routed by surface through a Dispatcher; dedupe and
// retry bookkeeping live in the webhooks.Processor behind it.
package inbound
