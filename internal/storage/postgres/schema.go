package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Statements creates the catalog schema. Every statement is idempotent.
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	id          BIGSERIAL PRIMARY KEY,
	urn         TEXT NOT NULL DEFAULT '',
	number      TEXT NOT NULL,
	year        INTEGER NOT NULL,
	act_type    TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	source_url  TEXT NOT NULL DEFAULT '',
	full_text   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS documents_urn_key ON documents (urn) WHERE urn <> ''`,
	`CREATE INDEX IF NOT EXISTS documents_identity_idx ON documents (number, year, act_type)`,
	`CREATE TABLE IF NOT EXISTS articles (
	id                BIGSERIAL PRIMARY KEY,
	document_id       BIGINT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
	canonical_number  TEXT NOT NULL,
	content_kind      TEXT NOT NULL,
	version_label     TEXT NOT NULL,
	update_sequence   INTEGER,
	base_article_id   BIGINT REFERENCES articles (id) ON DELETE CASCADE,
	full_text         TEXT NOT NULL,
	normalized_text   TEXT NOT NULL CHECK (normalized_text <> ''),
	correlated_refs   JSONB NOT NULL DEFAULT '[]',
	attachments       JSONB NOT NULL DEFAULT '[]',
	valid_from        DATE,
	valid_to          DATE,
	status            TEXT NOT NULL,
	is_current        BOOLEAN NOT NULL DEFAULT false,
	current_text      TEXT NOT NULL DEFAULT '',
	source_url        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((base_article_id IS NULL) = (update_sequence IS NULL)),
	CHECK ((base_article_id IS NULL) = (version_label = 'orig'))
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS articles_base_key
	ON articles (document_id, canonical_number) WHERE base_article_id IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS articles_update_key
	ON articles (base_article_id, update_sequence) WHERE base_article_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS articles_document_idx ON articles (document_id)`,
	`CREATE OR REPLACE VIEW articles_with_versions AS
SELECT a.*,
	COALESCE(a.base_article_id, a.id) AS group_id,
	COUNT(*) OVER (PARTITION BY COALESCE(a.base_article_id, a.id)) AS version_count
FROM articles a`,
	`CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	target        JSONB NOT NULL,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	document_id   BIGINT,
	counters      JSONB NOT NULL DEFAULT '{}',
	submitted_at  TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ
)`,
}

type execer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}

// Migrate applies Statements in order.
func Migrate(ctx context.Context, db execer) error {
	for i, stmt := range Statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
