// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

// Package credits implements the credit ledger that gates queue mutations.
//
// The ledger exposes atomic per-identity spend and credit operations. Two
// implementations are provided: a Badger-backed ledger for production
// (balances survive restarts) and an in-memory ledger for tests and
// ephemeral deployments. Callers must treat the returned CreditState as an
// opaque snapshot to relay, not interpret.
package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jukewire/jukewire/internal/models"
)

// ErrInsufficientCredits is returned by Spend when the identity's balance
// cannot cover the requested amount. No balance change occurs.
var ErrInsufficientCredits = errors.New("insufficient credits")

// LedgerError wraps storage-level failures so callers can distinguish a
// rejected spend from a broken ledger.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// IsLedgerError reports whether err is a storage-level ledger failure.
func IsLedgerError(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}

// Ledger is the credit ledger contract consumed by the mutation protocol.
type Ledger interface {
	// Spend atomically debits amount from identity. Fails with
	// ErrInsufficientCredits when the balance is too low, or a
	// *LedgerError on storage failure.
	Spend(ctx context.Context, identity string, amount int64) (*models.CreditState, error)

	// Credit atomically adds amount to identity's balance.
	Credit(ctx context.Context, identity string, amount int64) (*models.CreditState, error)

	// Balance returns the current snapshot without mutating it.
	// Identities never seen before report the starting balance.
	Balance(ctx context.Context, identity string) (*models.CreditState, error)

	// Close releases ledger resources.
	Close() error
}
