// Package webhooks verifies and dispatches PayPal webhook deliveries.
//
// Delivery processing is driven by a claim lifecycle:
// retry_ready -> processing -> processed|dead.
// A delivery that failed transiently is re-claimed on the next redelivery
// instead of being deduped as processed.
package webhooks
