// Package persistence provides the SQLite event store and campaign read models.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrVersionConflict  = errors.New("campaign version conflict")
	ErrTimeRegression   = errors.New("world time regression")
)

// DB wraps a SQLite connection holding every campaign's event log and
// projections.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; turns are serialized through a single connection.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.conn.DB, "migrations"); err != nil {
		return err
	}
	v, err := goose.GetDBVersionContext(ctx, db.conn.DB)
	if err == nil {
		slog.Debug("schema ready", "version", v)
	}
	return nil
}

// WithTx runs fn inside a transaction. Any error from fn rolls back.
func (db *DB) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Campaign loads one campaign row.
func (db *DB) Campaign(ctx context.Context, id string) (Campaign, error) {
	return getCampaign(ctx, db.conn, id)
}

// Campaigns lists every campaign, newest first.
func (db *DB) Campaigns(ctx context.Context) ([]Campaign, error) {
	var out []Campaign
	err := db.conn.SelectContext(ctx, &out, `SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return out, nil
}

// Characters loads a campaign's projected characters with inventory.
func (db *DB) Characters(ctx context.Context, campaignID string) ([]Character, error) {
	return listCharacters(ctx, db.conn, campaignID)
}

// Legacy loads the archive record of a completed campaign.
func (db *DB) Legacy(ctx context.Context, campaignID string) (LegacyRecord, error) {
	var rec LegacyRecord
	err := db.conn.GetContext(ctx, &rec, `SELECT campaign_id, summary, final_turn, world_time, world_state, archived_at
		FROM legacy_records WHERE campaign_id = ?`, campaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("legacy %s: %w", campaignID, ErrCampaignNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("load legacy: %w", err)
	}
	return rec, nil
}
