package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS internships (
	url                   TEXT PRIMARY KEY,
	source                TEXT NOT NULL,
	title                 TEXT NOT NULL,
	company               TEXT NOT NULL,
	location              TEXT,
	posted_date           TEXT NOT NULL,
	job_type              TEXT NOT NULL,
	salary                TEXT,
	detailed_requirements TEXT NOT NULL,
	skills                TEXT[] NOT NULL DEFAULT '{}',
	is_paid               BOOLEAN NOT NULL DEFAULT FALSE,
	is_remote             BOOLEAN NOT NULL DEFAULT FALSE,
	experience_required   TEXT,
	education_required    TEXT,
	scraped_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS internships_source_idx ON internships (source);
`

const insertRecord = `
INSERT INTO internships (
	url, source, title, company, location, posted_date, job_type, salary,
	detailed_requirements, skills, is_paid, is_remote,
	experience_required, education_required, scraped_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (url) DO NOTHING`

// PostgresMirror copies accepted records into an internships table. The
// first write of a URL wins, matching the JSON store.
type PostgresMirror struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresMirror connects to dsn and makes sure the table exists
func NewPostgresMirror(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresMirror, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	m := &PostgresMirror{pool: pool, logger: logger}
	if err := m.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

// EnsureSchema creates the internships table if needed
func (m *PostgresMirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Mirror inserts records in one batch and returns how many were new
func (m *PostgresMirror) Mirror(ctx context.Context, source domain.JobSource, records []domain.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		skills := r.Skills
		if skills == nil {
			skills = []string{}
		}
		batch.Queue(insertRecord,
			r.URL, string(source), r.Title, r.Company, r.Location, r.PostedDate,
			r.JobType, r.Salary, r.DetailedRequirements, skills, r.IsPaid, r.IsRemote,
			r.ExperienceRequired, r.EducationRequired, r.ScrapedAt,
		)
	}

	results := m.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert internship: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	m.logger.Debug("Mirrored internships",
		zap.String("source", string(source)),
		zap.Int("sent", len(records)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

// Count returns how many records are mirrored for source
func (m *PostgresMirror) Count(ctx context.Context, source domain.JobSource) (int, error) {
	var n int
	err := m.pool.QueryRow(ctx, `SELECT COUNT(*) FROM internships WHERE source = $1`, string(source)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count internships: %w", err)
	}
	return n, nil
}

// Ping checks the connection
func (m *PostgresMirror) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Close releases the pool
func (m *PostgresMirror) Close() {
	m.pool.Close()
}
