// Package pool narrows pgx connection types to the interfaces the stores
// actually use, so that tests can stand in for them.
package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// something that begins a SQL transaction.
//
// extracted from "pgxpool.Pool", "pgxpool.Conn" and "pgx.Tx".
type Begin interface {
	Begin(ctx context.Context) (Tx, error)
}

// something that sends SQL.
//
// extracted from "pgxpool.Conn" and "pgx.Tx".
type Queryer interface {
	// send a SQL command without result rows.
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)

	// send a SQL command with result rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// send a SQL command with a single result row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// subset of "pgx.Tx".
//
// "pgx.Tx" itself does not implement Tx (go has no return-type covariance),
// so wrap a pool with Wrap and Begin from there.
type Tx interface {
	Queryer
	Begin

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type pgxTx struct {
	base pgx.Tx
}

var _ Tx = &pgxTx{}

func (tx *pgxTx) Begin(ctx context.Context) (Tx, error) {
	inner, err := tx.base.Begin(ctx)
	if inner == nil {
		return nil, err
	}
	return &pgxTx{inner}, err
}

func (tx *pgxTx) Commit(ctx context.Context) error {
	return tx.base.Commit(ctx)
}
func (tx *pgxTx) Rollback(ctx context.Context) error {
	return tx.base.Rollback(ctx)
}
func (tx *pgxTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return tx.base.Exec(ctx, sql, arguments...)
}
func (tx *pgxTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return tx.base.Query(ctx, sql, args...)
}
func (tx *pgxTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return tx.base.QueryRow(ctx, sql, args...)
}

// subset of "*pgxpool.Pool".
type Pool interface {
	Begin
	Queryer

	Config() *pgxpool.Config
	Ping(ctx context.Context) error
	Close()
}

type pgxPool struct {
	base *pgxpool.Pool
}

var _ Pool = &pgxPool{}

func (p *pgxPool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.base.Begin(ctx)
	if tx == nil {
		return nil, err
	}
	return &pgxTx{tx}, err
}
func (p *pgxPool) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return p.base.Exec(ctx, sql, arguments...)
}
func (p *pgxPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return p.base.Query(ctx, sql, args...)
}
func (p *pgxPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return p.base.QueryRow(ctx, sql, args...)
}
func (p *pgxPool) Config() *pgxpool.Config {
	return p.base.Config()
}
func (p *pgxPool) Ping(ctx context.Context) error {
	return p.base.Ping(ctx)
}
func (p *pgxPool) Close() {
	p.base.Close()
}

func Wrap(p *pgxpool.Pool) Pool {
	return &pgxPool{p}
}

// Connect opens a pgx pool for dburl and wraps it.
func Connect(ctx context.Context, dburl string) (Pool, error) {
	p, err := pgxpool.Connect(ctx, dburl)
	if err != nil {
		return nil, err
	}
	return Wrap(p), nil
}
