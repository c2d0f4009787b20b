package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// ErrSessionFinished is returned when a session is committed or rolled back twice.
var ErrSessionFinished = errors.New("database session already finished")

type sessionKey struct{}

// Session is a transaction bound to the lifetime of one request.
// Rollback hooks run when the transaction rolls back or fails to commit.
type Session struct {
	ctx context.Context
	tx  *sqlx.Tx

	mu         sync.Mutex
	done       bool
	onRollback []func(context.Context)
}

// Begin starts a session and returns a context carrying it.
func Begin(ctx context.Context, db *sqlx.DB) (context.Context, *Session, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin session: %w", err)
	}
	s := &Session{ctx: ctx, tx: tx}
	return context.WithValue(ctx, sessionKey{}, s), s, nil
}

// Commit commits the transaction. A failed commit runs the rollback hooks.
func (s *Session) Commit() error {
	if !s.finish() {
		return ErrSessionFinished
	}
	if err := s.tx.Commit(); err != nil {
		s.runHooks()
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Rollback aborts the transaction and runs the rollback hooks.
func (s *Session) Rollback() error {
	if !s.finish() {
		return ErrSessionFinished
	}
	err := s.tx.Rollback()
	s.runHooks()
	if err != nil {
		return fmt.Errorf("rollback session: %w", err)
	}
	return nil
}

func (s *Session) finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.done = true
	return true
}

func (s *Session) runHooks() {
	s.mu.Lock()
	hooks := s.onRollback
	s.onRollback = nil
	s.mu.Unlock()

	ctx := context.WithoutCancel(s.ctx)
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](ctx)
	}
}

// WithSession runs fn inside a session: commit on success, rollback on error or panic.
func WithSession(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context) error) (err error) {
	sctx, s, err := Begin(ctx, db)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.Rollback()
			panic(p)
		}
	}()

	if err := fn(sctx); err != nil {
		if rbErr := s.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return s.Commit()
}

// Executor returns the session transaction carried by ctx, or fallback when there is none.
func Executor(ctx context.Context, fallback sqlx.ExtContext) sqlx.ExtContext {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return s.tx
	}
	return fallback
}

// OnRollback registers fn to run if the session carried by ctx rolls back.
// It reports false when ctx carries no open session.
func OnRollback(ctx context.Context, fn func(context.Context)) bool {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.onRollback = append(s.onRollback, fn)
	return true
}
