// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/identity"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store persists documents, article chains and jobs in Postgres.
type Store struct {
	pool pgxIface
}

var _ catalog.Repository = (*Store)(nil)

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxIface) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

const (
	lockKeySQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	findDocumentSQL = `SELECT id FROM documents
WHERE ($1 <> '' AND urn = $1) OR (number = $2 AND year = $3 AND act_type = $4)
ORDER BY id LIMIT 1`

	insertDocumentSQL = `INSERT INTO documents (urn, number, year, act_type, title, source_url, full_text)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

	selectDocumentSQL = `SELECT id, urn, number, year, act_type, title, source_url, full_text, created_at
FROM documents WHERE id = $1`

	insertArticleSQL = `INSERT INTO articles (
	document_id,
	canonical_number,
	content_kind,
	version_label,
	update_sequence,
	base_article_id,
	full_text,
	normalized_text,
	correlated_refs,
	attachments,
	valid_from,
	valid_to,
	status,
	is_current,
	current_text,
	source_url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
RETURNING id`

	existingBaseSQL = `SELECT id FROM articles
WHERE document_id = $1 AND canonical_number = $2 AND base_article_id IS NULL`

	selectArticlesSQL = `SELECT
	id,
	document_id,
	canonical_number,
	content_kind,
	version_label,
	update_sequence,
	base_article_id,
	full_text,
	normalized_text,
	correlated_refs,
	attachments,
	valid_from,
	valid_to,
	status,
	is_current,
	current_text,
	source_url
FROM articles WHERE document_id = $1 ORDER BY id`
)

// EnsureDocument returns the id of the stored document matching doc, inserting
// it when none exists. Lookup and insert run under transaction-scoped advisory
// locks on the URN and on (number, year, act type), the two keys the lookup
// matches on, so concurrent callers agree on one row.
func (s *Store) EnsureDocument(ctx context.Context, doc catalog.Document) (int64, bool, error) {
	var (
		id      int64
		created bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, key := range documentLockKeys(doc) {
			if _, err := tx.Exec(ctx, lockKeySQL, key); err != nil {
				return fmt.Errorf("lock document: %w", err)
			}
		}
		err := tx.QueryRow(ctx, findDocumentSQL, doc.URN, doc.Number, doc.Year, doc.ActType).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("find document: %w", err)
		}
		if err := tx.QueryRow(ctx, insertDocumentSQL,
			doc.URN,
			doc.Number,
			doc.Year,
			doc.ActType,
			doc.Title,
			doc.SourceURL,
			doc.FullText,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

// GetDocument loads one document.
func (s *Store) GetDocument(ctx context.Context, id int64) (catalog.Document, error) {
	var doc catalog.Document
	err := s.pool.QueryRow(ctx, selectDocumentSQL, id).Scan(
		&doc.ID,
		&doc.URN,
		&doc.Number,
		&doc.Year,
		&doc.ActType,
		&doc.Title,
		&doc.SourceURL,
		&doc.FullText,
		&doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Document{}, fmt.Errorf("document %d: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		return catalog.Document{}, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// SaveChain writes the base row and then its updates in one transaction. A
// chain whose base already exists for the document is rejected so reruns
// never duplicate rows.
func (s *Store) SaveChain(ctx context.Context, chain catalog.Chain) ([]catalog.Article, error) {
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	saved := make([]catalog.Article, 0, len(chain.Updates)+1)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		key := fmt.Sprintf("articles|%d|%s", chain.DocumentID, chain.CanonicalNumber)
		if _, err := tx.Exec(ctx, lockKeySQL, key); err != nil {
			return fmt.Errorf("lock chain: %w", err)
		}
		var existing int64
		err := tx.QueryRow(ctx, existingBaseSQL, chain.DocumentID, chain.CanonicalNumber).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s already stored for document %d", catalog.ErrChainInvariant, chain.CanonicalNumber, chain.DocumentID)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("find base article: %w", err)
		}

		base := chain.Base
		base.DocumentID = chain.DocumentID
		if base.ID, err = insertArticle(ctx, tx, base); err != nil {
			return fmt.Errorf("insert base article %s: %w", chain.CanonicalNumber, err)
		}
		saved = append(saved, base)
		for _, row := range chain.Updates {
			row.DocumentID = chain.DocumentID
			row.BaseArticleID = &base.ID
			if row.ID, err = insertArticle(ctx, tx, row); err != nil {
				return fmt.Errorf("insert article %s %s: %w", chain.CanonicalNumber, row.VersionLabel, err)
			}
			saved = append(saved, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ListArticles returns every stored row of a document in identity order.
func (s *Store) ListArticles(ctx context.Context, documentID int64) ([]catalog.Article, error) {
	rows, err := s.pool.Query(ctx, selectArticlesSQL, documentID)
	if err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}
	defer rows.Close()

	var out []catalog.Article
	for rows.Next() {
		var (
			a           catalog.Article
			kind        string
			status      string
			seq         *int
			refsJSON    []byte
			attachments []byte
		)
		if err := rows.Scan(
			&a.ID,
			&a.DocumentID,
			&a.CanonicalNumber,
			&kind,
			&a.VersionLabel,
			&seq,
			&a.BaseArticleID,
			&a.FullText,
			&a.NormalizedText,
			&refsJSON,
			&attachments,
			&a.ValidFrom,
			&a.ValidTo,
			&status,
			&a.IsCurrent,
			&a.CurrentText,
			&a.SourceURL,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Kind = catalog.ContentKind(kind)
		a.Status = catalog.Status(status)
		a.UpdateSequence = seq
		if err := unmarshalJSON(refsJSON, &a.CorrelatedRefs); err != nil {
			return nil, fmt.Errorf("decode correlated refs of article %d: %w", a.ID, err)
		}
		if err := unmarshalJSON(attachments, &a.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of article %d: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	identity.SortArticles(out)
	return out, nil
}

func insertArticle(ctx context.Context, tx pgx.Tx, a catalog.Article) (int64, error) {
	refsJSON, err := marshalJSON(a.CorrelatedRefs)
	if err != nil {
		return 0, fmt.Errorf("marshal correlated refs: %w", err)
	}
	attachmentsJSON, err := marshalJSON(a.Attachments)
	if err != nil {
		return 0, fmt.Errorf("marshal attachments: %w", err)
	}
	args := []any{
		a.DocumentID,
		a.CanonicalNumber,
		string(a.Kind),
		a.VersionLabel,
		a.UpdateSequence,
		a.BaseArticleID,
		a.FullText,
		a.NormalizedText,
		refsJSON,
		attachmentsJSON,
		a.ValidFrom,
		a.ValidTo,
		string(a.Status),
		a.IsCurrent,
		a.CurrentText,
		a.SourceURL,
	}
	var id int64
	if err := tx.QueryRow(ctx, insertArticleSQL, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres store is not configured")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// documentLockKeys returns the advisory lock keys of doc. The URN key always
// comes first so that callers acquire the locks in the same order.
func documentLockKeys(doc catalog.Document) []string {
	keys := make([]string, 0, 2)
	if doc.URN != "" {
		keys = append(keys, "documents-urn|"+doc.URN)
	}
	return append(keys, strings.Join([]string{"documents", doc.Number, fmt.Sprint(doc.Year), doc.ActType}, "|"))
}

func marshalJSON[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

func unmarshalJSON[T any](data []byte, dst *[]T) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
