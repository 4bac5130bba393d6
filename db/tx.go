package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Transactor runs fn as one unit of work. Repositories reached through the
// context passed to fn take part in it. Calls nested inside fn join the outer unit.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// unit is carried by the context of a running transaction.
type unit struct {
	tx pgx.Tx

	mu          sync.Mutex
	undo        []func()
	afterCommit []func()
}

func current(ctx context.Context) *unit {
	u, _ := ctx.Value(txKey{}).(*unit)
	return u
}

// InTransaction reports whether ctx belongs to a running unit of work.
func InTransaction(ctx context.Context) bool {
	return current(ctx) != nil
}

// Conn returns the transaction carried by ctx, or pool when there is none.
func Conn(ctx context.Context, pool DB) DB {
	if u := current(ctx); u != nil && u.tx != nil {
		return u.tx
	}
	return pool
}

// OnRollback registers fn to revert an in-memory write if the unit of work fails.
// Outside a unit of work it does nothing.
func OnRollback(ctx context.Context, fn func()) {
	u := current(ctx)
	if u == nil {
		return
	}
	u.mu.Lock()
	u.undo = append(u.undo, fn)
	u.mu.Unlock()
}

// AfterCommit defers fn until the unit of work commits. Outside a unit of work fn runs at once.
func AfterCommit(ctx context.Context, fn func()) {
	u := current(ctx)
	if u == nil {
		fn()
		return
	}
	u.mu.Lock()
	u.afterCommit = append(u.afterCommit, fn)
	u.mu.Unlock()
}

func (u *unit) rollback() {
	u.mu.Lock()
	undo := u.undo
	u.undo, u.afterCommit = nil, nil
	u.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func (u *unit) commit() {
	u.mu.Lock()
	after := u.afterCommit
	u.undo, u.afterCommit = nil, nil
	u.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

// PGTransactor runs units of work in one PostgreSQL transaction.
type PGTransactor struct {
	pool DB
}

func NewTransactor(pool DB) *PGTransactor {
	return &PGTransactor{pool: pool}
}

func (t *PGTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	u := &unit{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, u)); err != nil {
		u.rollback()
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		u.rollback()
		return fmt.Errorf("db: commit: %w", err)
	}
	u.commit()
	return nil
}

// MemoryTransactor gives the memory stores all-or-nothing units of work: writes
// register undo steps that run in reverse order when fn fails.
type MemoryTransactor struct{}

func NewMemoryTransactor() MemoryTransactor {
	return MemoryTransactor{}
}

func (MemoryTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	u := &unit{}
	if err := fn(context.WithValue(ctx, txKey{}, u)); err != nil {
		u.rollback()
		return err
	}
	u.commit()
	return nil
}
