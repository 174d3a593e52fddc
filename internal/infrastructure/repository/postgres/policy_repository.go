package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/youthdesk/policy-rag/internal/core/domain"
)

type PolicyRepository struct {
	db *sql.DB
}

func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *PolicyRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/crawler/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS policies (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	category TEXT,
	target TEXT,
	body TEXT,
	url TEXT NOT NULL,
	agency TEXT,
	apply_start TEXT,
	apply_end TEXT,
	support_scale TEXT,
	application_site TEXT,
	collected_at TIMESTAMPTZ NOT NULL,
	index_status TEXT NOT NULL,
	index_error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_index_status ON policies(index_status);
CREATE INDEX IF NOT EXISTS idx_policies_category ON policies(category);
CREATE INDEX IF NOT EXISTS idx_policies_collected_at ON policies(collected_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert writes the crawled record, replacing a previous crawl of the same
// policy. The index status resets so the indexer picks the record up again.
func (r *PolicyRepository) Upsert(ctx context.Context, rec *domain.PolicyRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO policies (
	id, title, category, target, body, url, agency, apply_start, apply_end,
	support_scale, application_site, collected_at, index_status, index_error, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	category = EXCLUDED.category,
	target = EXCLUDED.target,
	body = EXCLUDED.body,
	url = EXCLUDED.url,
	agency = EXCLUDED.agency,
	apply_start = EXCLUDED.apply_start,
	apply_end = EXCLUDED.apply_end,
	support_scale = EXCLUDED.support_scale,
	application_site = EXCLUDED.application_site,
	collected_at = EXCLUDED.collected_at,
	index_status = EXCLUDED.index_status,
	index_error = EXCLUDED.index_error,
	updated_at = EXCLUDED.updated_at
`,
		rec.ID, rec.Title, rec.Category, rec.Target, rec.Body, rec.URL, rec.Agency,
		rec.ApplyStart, rec.ApplyEnd, rec.SupportScale, rec.ApplicationSite,
		rec.CollectedAt, string(rec.IndexStatus), rec.IndexError, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}
	return nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*domain.PolicyRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, category, target, body, url, agency, apply_start, apply_end,
	support_scale, application_site, collected_at, index_status, index_error, created_at, updated_at
FROM policies
WHERE id = $1
`, id)

	var rec domain.PolicyRecord
	var status string

	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Category, &rec.Target, &rec.Body, &rec.URL, &rec.Agency,
		&rec.ApplyStart, &rec.ApplyEnd, &rec.SupportScale, &rec.ApplicationSite,
		&rec.CollectedAt, &status, &rec.IndexError, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPolicyNotFound, "policy "+id, err)
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	rec.IndexStatus = domain.IndexStatus(status)
	return &rec, nil
}

// ListIDs returns every stored policy id ordered by collection time, newest
// first. Used for full reindex runs.
func (r *PolicyRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM policies ORDER BY collected_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list policy ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan policy id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy ids: %w", err)
	}
	return ids, nil
}

func (r *PolicyRepository) UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE policies
SET index_status = $2, index_error = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update index status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrPolicyNotFound, "policy "+id, sql.ErrNoRows)
	}
	return nil
}
