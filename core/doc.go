// Package core contains the donation domain contracts, entities and the
// webhook reconciliation logic. Adapters (sql stores, PayPal verifier, HTTP
// ingress) depend on this package; core must not depend on them.
package core
