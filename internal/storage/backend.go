// Package storage implements core.Store for PostgreSQL and SQL Server.
//
// Both backends create one table per log family with a unique index over the
// family's key columns, and insert batches in a single transaction that skips
// rows whose key is already stored. Running the same input twice leaves the
// tables unchanged.
package storage

import (
	"context"
	"fmt"

	"github.com/fgbm/exchange-log-parser/internal/config"
	"github.com/fgbm/exchange-log-parser/internal/core"
)

// Store is a core.Store that can also report row counts.
type Store interface {
	core.Store
	Count(ctx context.Context, family core.Family) (int64, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*MSSQL)(nil)
)

// Open connects the backend selected by cfg.Kind.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Kind {
	case config.KindPostgres:
		pg, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.KindMSSQL:
		ms, err := OpenMSSQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return ms, nil
	default:
		return nil, fmt.Errorf("unsupported database kind %q", cfg.Kind)
	}
}
