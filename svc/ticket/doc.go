// Package ticket implements the prepaid ticket balance: lazy account
// creation, spending, refunds, admin corrections and the periodic refill
// sweep that tops balances up to the ceiling of the user's plan.
//
// Every balance change appends one row to the ledger inside the same
// billing.Store unit of work, with BalanceBefore and BalanceAfter, so the
// ledger replays to the current balance. Events are published only after
// the unit commits.
package ticket
