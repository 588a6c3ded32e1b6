// Package ledger implements atomic credit accounting for clip generation.
package ledger
