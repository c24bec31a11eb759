package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peakyragnar/NativeLLM/pkg/core/errs"
)

// PGMetadata mirrors filing metadata into Postgres for SQL reporting. It is
// optional: when no DATABASE_URL is configured the pipeline runs without it.
type PGMetadata struct {
	pool *pgxpool.Pool
}

const createFilingsTable = `
CREATE TABLE IF NOT EXISTS filings (
	filing_id      TEXT PRIMARY KEY,
	ticker         TEXT NOT NULL,
	filing_type    TEXT NOT NULL,
	fiscal_year    INT NOT NULL,
	fiscal_period  TEXT NOT NULL CHECK (fiscal_period IN ('annual', 'Q1', 'Q2', 'Q3')),
	accession      TEXT,
	text_path      TEXT,
	llm_path       TEXT,
	fact_count     INT,
	source_format  TEXT,
	processed_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPGMetadata connects a pool and ensures the filings table exists.
func NewPGMetadata(ctx context.Context, databaseURL string) (*PGMetadata, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err)
	}
	if _, err := pool.Exec(ctx, createFilingsTable); err != nil {
		pool.Close()
		return nil, errs.Wrap(errs.KindConfig, err)
	}
	return &PGMetadata{pool: pool}, nil
}

// FilingRecord is one row of the filings table.
type FilingRecord struct {
	FilingID     string
	Ticker       string
	FilingType   string
	FiscalYear   int
	FiscalPeriod string
	Accession    string
	TextPath     string
	LLMPath      string
	FactCount    int
	SourceFormat string
}

// Upsert inserts or refreshes the filing row.
func (m *PGMetadata) Upsert(ctx context.Context, rec FilingRecord) error {
	_, err := m.pool.Exec(ctx, `
		INSERT INTO filings (filing_id, ticker, filing_type, fiscal_year, fiscal_period,
			accession, text_path, llm_path, fact_count, source_format, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (filing_id) DO UPDATE SET
			accession = EXCLUDED.accession,
			text_path = EXCLUDED.text_path,
			llm_path = EXCLUDED.llm_path,
			fact_count = EXCLUDED.fact_count,
			source_format = EXCLUDED.source_format,
			processed_at = EXCLUDED.processed_at`,
		rec.FilingID, rec.Ticker, rec.FilingType, rec.FiscalYear, rec.FiscalPeriod,
		rec.Accession, rec.TextPath, rec.LLMPath, rec.FactCount, rec.SourceFormat,
		time.Now().UTC())
	if err != nil {
		return errs.Wrap(errs.KindSerialize, err)
	}
	return nil
}

func (m *PGMetadata) Close() {
	m.pool.Close()
}
