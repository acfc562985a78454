package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fgbm/exchange-log-parser/internal/config"
	"github.com/fgbm/exchange-log-parser/internal/core"
	_ "github.com/microsoft/go-mssqldb" // registers the sqlserver driver
)

// MSSQL stores records in SQL Server.
type MSSQL struct {
	db     *sql.DB
	prefix string
}

// OpenMSSQL opens a connection pool using cfg and verifies it with a ping.
func OpenMSSQL(ctx context.Context, cfg config.DatabaseConfig) (*MSSQL, error) {
	db, err := sql.Open("sqlserver", mssqlURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mssql: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(max(cfg.MinConns, 2))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mssql: %w", err)
	}

	return newMSSQL(db, cfg.TablePrefix), nil
}

func newMSSQL(db *sql.DB, prefix string) *MSSQL {
	return &MSSQL{db: db, prefix: prefix}
}

func mssqlURL(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	q := url.Values{}
	q.Set("database", cfg.Name)
	q.Set("TrustServerCertificate", strconv.FormatBool(cfg.TrustServerCert))
	q.Set("connection timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Addr(),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// EnsureSchema creates every registered table while holding an application
// lock so parallel instances do not collide on CREATE.
func (m *MSSQL) EnsureSchema(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"EXEC sp_getapplock @Resource = @p1, @LockMode = 'Exclusive', @LockOwner = 'Transaction'",
		schemaLockKey); err != nil {
		return fmt.Errorf("schema lock: %w", err)
	}

	for _, def := range core.All() {
		for _, stmt := range msCreateTable(m.prefix, def) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", tableName(m.prefix, def), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// WriteBatch inserts records in one transaction, skipping keys already
// stored. Returns the number of rows inserted.
func (m *MSSQL) WriteBatch(ctx context.Context, family core.Family, records []core.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	def := core.MustGet(family)
	rows := prepareRows(def, records)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var inserted int64
	for _, chunk := range chunkRows(rows, len(def.Columns), mssqlMaxParams, mssqlMaxRows) {
		res, err := tx.ExecContext(ctx, msInsert(m.prefix, def, len(chunk)), flatten(chunk)...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", tableName(m.prefix, def), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected %s: %w", tableName(m.prefix, def), err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", tableName(m.prefix, def), err)
	}
	return inserted, nil
}

// Count returns the number of stored rows of a family.
func (m *MSSQL) Count(ctx context.Context, family core.Family) (int64, error) {
	def := core.MustGet(family)
	var n int64
	err := m.db.QueryRowContext(ctx, "SELECT COUNT_BIG(*) FROM "+msTable(m.prefix, def)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", tableName(m.prefix, def), err)
	}
	return n, nil
}

func (m *MSSQL) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MSSQL) Close() {
	m.db.Close()
}
