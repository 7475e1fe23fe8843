package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
// Repositories depend on this, never on the pool directly.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Session 단일 파이프라인 호출 동안 점유하는 커넥션
// ⭐ 호출 시작 시 Acquire, 모든 종료 경로에서 Release
type Session struct {
	conn     *pgxpool.Conn
	released bool
}

// Acquire takes one connection from the pool for the duration of an invocation
func (db *DB) Acquire(ctx context.Context) (*Session, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Querier returns the session's connection
func (s *Session) Querier() Querier {
	return s.conn
}

// Release returns the connection to the pool. Safe to call more than once.
func (s *Session) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	s.conn.Release()
}
