package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fgbm/exchange-log-parser/internal/config"
	"github.com/fgbm/exchange-log-parser/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgConn is the subset of *pgxpool.Pool used by Postgres.
type pgConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Postgres stores records in PostgreSQL.
type Postgres struct {
	db     pgConn
	prefix string
}

// OpenPostgres connects a pool using cfg and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(postgresURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return newPostgres(pool, cfg.TablePrefix), nil
}

func newPostgres(db pgConn, prefix string) *Postgres {
	return &Postgres{db: db, prefix: prefix}
}

// postgresURL returns cfg.URL, or a URL built from the discrete settings.
func postgresURL(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Addr(),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

// EnsureSchema creates every registered table under a transaction-scoped
// advisory lock so parallel instances do not collide on CREATE.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", schemaLockKey); err != nil {
		return fmt.Errorf("schema lock: %w", err)
	}

	for _, def := range core.All() {
		for _, stmt := range pgCreateTable(p.prefix, def) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", tableName(p.prefix, def), err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// WriteBatch inserts records in one transaction, skipping keys already
// stored. Returns the number of rows inserted.
func (p *Postgres) WriteBatch(ctx context.Context, family core.Family, records []core.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	def := core.MustGet(family)
	rows := prepareRows(def, records)
	cols := len(def.Columns)

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for _, chunk := range chunkRows(rows, cols, pgMaxParams, 0) {
		tag, err := tx.Exec(ctx, pgInsert(p.prefix, def, len(chunk)), flatten(chunk)...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", tableName(p.prefix, def), err)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", tableName(p.prefix, def), err)
	}
	return inserted, nil
}

// Count returns the number of stored rows of a family.
func (p *Postgres) Count(ctx context.Context, family core.Family) (int64, error) {
	def := core.MustGet(family)
	var n int64
	err := p.db.QueryRow(ctx, "SELECT count(*) FROM "+pgIdent(tableName(p.prefix, def))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", tableName(p.prefix, def), err)
	}
	return n, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() {
	p.db.Close()
}
