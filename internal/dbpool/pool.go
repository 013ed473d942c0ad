// Package dbpool owns the PostgreSQL connection pool shared by the store,
// the migrator and the notification listener.
package dbpool

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tunes a Pool. Zero values pick the defaults below.
type Options struct {
	// MaxConns is the budget for queries. The pool holds one more
	// connection, reserved for the LISTEN bridge.
	MaxConns         int32
	StatementTimeout time.Duration
	AppName          string
}

const (
	DefaultMaxConns         = 20
	defaultStatementTimeout = 30 * time.Second
	defaultAppName          = "proposald"
	listenerConns           = 1
)

func (o Options) withDefaults() Options {
	if o.MaxConns <= 0 {
		o.MaxConns = DefaultMaxConns
	}

	if o.StatementTimeout <= 0 {
		o.StatementTimeout = defaultStatementTimeout
	}

	if o.AppName == "" {
		o.AppName = defaultAppName
	}

	return o
}

// Pool is a thin wrapper around pgxpool.Pool.
type Pool struct {
	pool *pgxpool.Pool
	opts Options
}

// New connects to databaseURL and verifies the server answers.
func New(ctx context.Context, databaseURL string, opts Options) (*Pool, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	params := cfg.ConnConfig.RuntimeParams
	params["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	params["application_name"] = opts.AppName

	cfg.MaxConns = opts.MaxConns + listenerConns
	cfg.MinConns = min(2, cfg.MaxConns)
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnLifetimeJitter = time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Pool{pool: pool, opts: opts}, nil
}

func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	return p.pool.Acquire(ctx)
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

func (p *Pool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) { //nolint:gocritic // mirrors pgxpool.
	return p.pool.BeginTx(ctx, txOptions)
}

func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// HealthCheck runs a round trip on a pooled connection, which catches a
// server that accepts connections but cannot execute statements.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check query: %w", err)
	}

	return nil
}

// Usage is a point-in-time view of connection use.
type Usage struct {
	InUse int32 `json:"in_use"`
	Idle  int32 `json:"idle"`
	Max   int32 `json:"max"`
}

// Usage reports how many connections are busy against the query budget.
func (p *Pool) Usage() Usage {
	s := p.pool.Stat()

	return Usage{InUse: s.AcquiredConns(), Idle: s.IdleConns(), Max: s.MaxConns()}
}

// ConnString returns the DSN the pool was built from; goose needs it to
// open its own database/sql handle.
func (p *Pool) ConnString() string {
	return p.pool.Config().ConnString()
}

func (p *Pool) Close() {
	p.pool.Close()
}
