// Package ledger implements a balance-based credit ledger with an
// append-only audit trail.
//
// Credits are a durable, potentially purchasable resource, so unlike the
// window limiter the ledger fails closed: if the balance cannot be
// determined the action is denied. This asymmetry between the two admission
// strategies is intentional and declared as a Policy value rather than
// implied by code paths.
//
// Every successful balance mutation appends exactly one Transaction whose
// BalanceAfter equals the balance immediately following the mutation; the
// ledger is only as trustworthy as this log.
package ledger
