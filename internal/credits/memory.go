// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package credits

import (
	"context"
	"sync"

	"github.com/jukewire/jukewire/internal/models"
)

// MemoryLedger is an in-memory Ledger for tests and ephemeral deployments.
type MemoryLedger struct {
	mu              sync.Mutex
	balances        map[string]int64
	startingBalance int64
}

// NewMemory creates an in-memory ledger seeding unknown identities with
// startingBalance.
func NewMemory(startingBalance int64) *MemoryLedger {
	return &MemoryLedger{
		balances:        make(map[string]int64),
		startingBalance: startingBalance,
	}
}

// Spend implements Ledger.
func (l *MemoryLedger) Spend(ctx context.Context, identity string, amount int64) (*models.CreditState, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LedgerError{Op: "spend", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.balance(identity)
	if current < amount {
		return nil, ErrInsufficientCredits
	}
	l.balances[identity] = current - amount
	return snapshot(identity, l.balances[identity]), nil
}

// Credit implements Ledger.
func (l *MemoryLedger) Credit(ctx context.Context, identity string, amount int64) (*models.CreditState, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LedgerError{Op: "credit", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[identity] = l.balance(identity) + amount
	return snapshot(identity, l.balances[identity]), nil
}

// Balance implements Ledger.
func (l *MemoryLedger) Balance(ctx context.Context, identity string) (*models.CreditState, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LedgerError{Op: "balance", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return snapshot(identity, l.balance(identity)), nil
}

// Close implements Ledger.
func (l *MemoryLedger) Close() error { return nil }

// balance must be called with mu held.
func (l *MemoryLedger) balance(identity string) int64 {
	if b, ok := l.balances[identity]; ok {
		return b
	}
	return l.startingBalance
}
