// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the database/sql-backed persistence layer for the
// five entities in spec.md §3 (User, Subscription, WebhookEvent,
// ProcessedVideo, ApiQuotaUsage), across the three driver-selectable
// backends spec.md §6 names: SQLite, Postgres, SqlServer. Schema is
// identical across backends; only the driver name, DSN shape, and
// placeholder syntax differ.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/watchlaterhq/autowl/internal/config"
	"github.com/watchlaterhq/autowl/internal/logging"
)

// Store wraps a driver-agnostic *sql.DB connection and knows how to
// rebind "?"-style query text to whichever placeholder syntax the
// configured provider expects.
type Store struct {
	db       *sql.DB
	provider config.DatabaseProvider
}

// Open connects to the database named by cfg.DatabaseProvider using
// cfg.ConnectionStrings.Default as the DSN, verifies the connection with
// Ping, and ensures the schema exists.
//
// Grounded on lamboktulus1379-go-project's infrastructure/persistence
// package: sql.Open followed by pool-size tuning and a Ping to fail fast
// on an unreachable database, rather than deferring discovery to the
// first query.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	driverName, err := driverFor(cfg.DatabaseProvider)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.ConnectionStrings.Default)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.DatabaseProvider, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: pinging %s: %w", cfg.DatabaseProvider, err)
	}

	s := &Store{db: db, provider: cfg.DatabaseProvider}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrating schema: %w", err)
	}

	logging.Info().Str("provider", string(cfg.DatabaseProvider)).Msg("store: connected")
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// driverFor maps a config.DatabaseProvider onto the database/sql driver
// name registered by that provider's blank import above.
func driverFor(provider config.DatabaseProvider) (string, error) {
	switch provider {
	case config.DatabaseProviderSQLite:
		return "sqlite", nil
	case config.DatabaseProviderPostgres:
		return "postgres", nil
	case config.DatabaseProviderSqlServer:
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("store: unknown DatabaseProvider %q", provider)
	}
}

// rebind rewrites "?" placeholders in query into whatever positional
// syntax the configured provider expects. SQLite accepts "?" natively;
// Postgres wants "$1", "$2", ...; SQL Server wants "@p1", "@p2", ....
//
// No library in the examples corpus provides driver-agnostic placeholder
// rebinding (the pack's ORM usage — GORM, in poyhsiao-memoNexus — hides
// this entirely, and the raw database/sql users in the pack only ever
// target a single backend). This is exactly the kind of small mechanical
// translation the standard library's strings.Builder is suited to, so it
// stays on the standard library rather than pulling in a query-building
// dependency for one helper.
func (s *Store) rebind(query string) string {
	if s.provider == config.DatabaseProviderSQLite {
		return query
	}

	var out []byte
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			out = append(out, query[i])
			continue
		}
		n++
		switch s.provider {
		case config.DatabaseProviderPostgres:
			out = append(out, []byte(fmt.Sprintf("$%d", n))...)
		case config.DatabaseProviderSqlServer:
			out = append(out, []byte(fmt.Sprintf("@p%d", n))...)
		default:
			out = append(out, '?')
		}
	}
	return string(out)
}

// exec rebinds and executes a statement expected to affect rows, e.g.
// INSERT/UPDATE/DELETE.
func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

// query rebinds and runs a query expected to return rows.
func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

// queryRow rebinds and runs a query expected to return at most one row.
func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}
