// Package admission decides whether a caller may invoke an expensive,
// metered action.
//
// Two cooperating strategies gate the same downstream resource: a
// rolling-window request limiter for plain generation, and a balance-based
// credit ledger for tiered actions such as refinement and expert mode. The
// Manager maps each action name to its strategy and cost and exposes one
// check/commit contract to request handlers.
//
// The two strategies fail differently on store outage, and deliberately so:
// the window limiter protects a soft UX quota and fails open, while the
// ledger protects a durable resource and fails closed. The asymmetry is
// configured as an explicit policy on each strategy, not scattered per call
// site.
package admission
