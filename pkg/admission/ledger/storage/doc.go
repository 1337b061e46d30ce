// Package storage provides backends for credit balances and their audit
// trail.
//
// Backends apply each balance mutation and its audit transaction atomically
// and enforce the ledger's conditional checks at the store level, so
// concurrent mutations against the same subject serialize correctly. An
// in-memory backend serves tests; the SQLite backend serves single-instance
// deployments.
package storage
