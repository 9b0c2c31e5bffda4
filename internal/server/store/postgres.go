package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/closetapp/closet-sync/internal/dbx"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps account records as jsonb rows. Apply runs inside a
// database transaction that locks the account's sync_meta row FOR UPDATE,
// which serializes concurrent pushes across server processes — the strong
// variant of the per-account exclusion the S3 backend only approximates.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		db.Close()
		return nil, err
	}
	goose.SetLogger(goose.NopLogger())
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func loadTableRows(ctx context.Context, q dbx.DBTX, account, table string) (map[string]*syncwire.Record, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT doc FROM sync_records WHERE account = $1 AND table_name = $2`,
		account, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]*syncwire.Record{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		rec := &syncwire.Record{}
		if err := json.Unmarshal(doc, rec); err != nil {
			return nil, fmt.Errorf("corrupt record in %s/%s: %w", account, table, err)
		}
		out[rec.ID] = rec
	}
	return out, rows.Err()
}

func loadMetaRow(ctx context.Context, q dbx.DBTX, account string) (*Meta, error) {
	meta := &Meta{}
	err := q.QueryRowContext(ctx,
		`SELECT version, updated_at, items_created_today, quota_day
		   FROM sync_meta WHERE account = $1`, account).
		Scan(&meta.Version, &meta.UpdatedAt, &meta.ItemsCreatedToday, &meta.QuotaDay)
	if err == sql.ErrNoRows {
		return &Meta{}, nil
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (p *PostgresStore) LoadTable(ctx context.Context, account, table string) (map[string]*syncwire.Record, error) {
	return loadTableRows(ctx, p.db, account, table)
}

func (p *PostgresStore) LoadMeta(ctx context.Context, account string) (*Meta, error) {
	return loadMetaRow(ctx, p.db, account)
}

func (p *PostgresStore) Apply(ctx context.Context, account string, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, q dbx.DBTX) error {
		// Ensure the meta row exists, then take the per-account lock.
		if _, err := q.ExecContext(ctx,
			`INSERT INTO sync_meta (account) VALUES ($1) ON CONFLICT (account) DO NOTHING`,
			account); err != nil {
			return err
		}
		var version int64
		if err := q.QueryRowContext(ctx,
			`SELECT version FROM sync_meta WHERE account = $1 FOR UPDATE`,
			account).Scan(&version); err != nil {
			return err
		}
		return fn(ctx, &pgTx{q: q, account: account})
	})
}

type pgTx struct {
	q       dbx.DBTX
	account string
}

func (t *pgTx) LoadTable(ctx context.Context, table string) (map[string]*syncwire.Record, error) {
	return loadTableRows(ctx, t.q, t.account, table)
}

// SaveTable rewrites the whole table document. Tables are quota-capped, so
// the full rewrite stays small and keeps delete handling trivial.
func (t *pgTx) SaveTable(ctx context.Context, table string, records map[string]*syncwire.Record) error {
	if _, err := t.q.ExecContext(ctx,
		`DELETE FROM sync_records WHERE account = $1 AND table_name = $2`,
		t.account, table); err != nil {
		return err
	}
	for id, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO sync_records (account, table_name, id, doc, updated_at, deleted)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.account, table, id, doc, rec.Clock(), rec.Deleted); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LoadMeta(ctx context.Context) (*Meta, error) {
	return loadMetaRow(ctx, t.q, t.account)
}

func (t *pgTx) SaveMeta(ctx context.Context, meta *Meta) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO sync_meta (account, version, updated_at, items_created_today, quota_day)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account) DO UPDATE SET
		   version = EXCLUDED.version,
		   updated_at = EXCLUDED.updated_at,
		   items_created_today = EXCLUDED.items_created_today,
		   quota_day = EXCLUDED.quota_day`,
		t.account, meta.Version, meta.UpdatedAt, meta.ItemsCreatedToday, meta.QuotaDay)
	return err
}
