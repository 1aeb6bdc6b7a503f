// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package credits

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/jukewire/jukewire/internal/logging"
	"github.com/jukewire/jukewire/internal/models"
)

// keyPrefix namespaces balance keys so future record types can share the DB.
const keyPrefix = "balance/"

// BadgerLedger persists balances in a Badger key-value store. Each balance
// is an 8-byte big-endian int64 under "balance/<identity>"; Badger's
// serializable transactions make Spend's read-check-write atomic.
type BadgerLedger struct {
	db              *badger.DB
	startingBalance int64
}

// OpenBadger opens (or creates) the ledger database at path. Identities
// not yet present are seeded with startingBalance on first access.
func OpenBadger(path string, startingBalance int64) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &LedgerError{Op: "open", Err: err}
	}

	logging.Info().Str("path", path).Int64("starting_balance", startingBalance).Msg("credit ledger opened")

	return &BadgerLedger{db: db, startingBalance: startingBalance}, nil
}

// Spend implements Ledger.
func (l *BadgerLedger) Spend(ctx context.Context, identity string, amount int64) (*models.CreditState, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LedgerError{Op: "spend", Err: err}
	}

	var balance int64
	err := l.db.Update(func(txn *badger.Txn) error {
		current, err := l.readBalance(txn, identity)
		if err != nil {
			return err
		}
		if current < amount {
			return ErrInsufficientCredits
		}
		balance = current - amount
		return writeBalance(txn, identity, balance)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return nil, ErrInsufficientCredits
		}
		return nil, &LedgerError{Op: "spend", Err: err}
	}

	return snapshot(identity, balance), nil
}

// Credit implements Ledger.
func (l *BadgerLedger) Credit(ctx context.Context, identity string, amount int64) (*models.CreditState, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LedgerError{Op: "credit", Err: err}
	}

	var balance int64
	err := l.db.Update(func(txn *badger.Txn) error {
		current, err := l.readBalance(txn, identity)
		if err != nil {
			return err
		}
		balance = current + amount
		return writeBalance(txn, identity, balance)
	})
	if err != nil {
		return nil, &LedgerError{Op: "credit", Err: err}
	}

	return snapshot(identity, balance), nil
}

// Balance implements Ledger.
func (l *BadgerLedger) Balance(ctx context.Context, identity string) (*models.CreditState, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LedgerError{Op: "balance", Err: err}
	}

	var balance int64
	err := l.db.View(func(txn *badger.Txn) error {
		current, err := l.readBalance(txn, identity)
		if err != nil {
			return err
		}
		balance = current
		return nil
	})
	if err != nil {
		return nil, &LedgerError{Op: "balance", Err: err}
	}

	return snapshot(identity, balance), nil
}

// Close implements Ledger.
func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

// readBalance returns the stored balance, seeding unknown identities with
// the starting balance.
func (l *BadgerLedger) readBalance(txn *badger.Txn, identity string) (int64, error) {
	item, err := txn.Get([]byte(keyPrefix + identity))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return l.startingBalance, nil
	}
	if err != nil {
		return 0, err
	}

	var balance int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return errors.New("corrupt balance record")
		}
		balance = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return balance, err
}

func writeBalance(txn *badger.Txn, identity string, balance int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(balance))
	return txn.Set([]byte(keyPrefix+identity), buf)
}

func snapshot(identity string, balance int64) *models.CreditState {
	return &models.CreditState{
		Identity:  identity,
		Balance:   balance,
		UpdatedAt: time.Now().UTC(),
	}
}
