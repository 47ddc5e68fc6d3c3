// Package pipeline turns one document target into persisted article chains.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/extract"
	"github.com/JakeFAU/normattiva-catalog/internal/metrics"
	"github.com/JakeFAU/normattiva-catalog/internal/source"
	"github.com/JakeFAU/normattiva-catalog/internal/versioning"
)

// Defaults applied by New when the config leaves a field unset.
const (
	DefaultVersionTimeout   = 60 * time.Second
	DefaultGroupParallelism = 4
)

const tracerName = "github.com/JakeFAU/normattiva-catalog/internal/pipeline"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Config tunes a Pipeline.
type Config struct {
	BaseURL          string
	VersionTimeout   time.Duration
	GroupParallelism int
	SkipExisting     bool
	DocumentTextCap  int
}

// VersionExtractor extracts the content of one navigation reference.
type VersionExtractor interface {
	ExtractVersion(ctx context.Context, ref catalog.RawReference) (catalog.Version, error)
}

// Archiver stores the raw root page of a document.
type Archiver interface {
	Archive(ctx context.Context, doc catalog.Document, body []byte) (string, error)
}

// Result summarizes one processed document.
type Result struct {
	Document        catalog.Document
	Skipped         bool
	Groups          int
	GroupsSkipped   int
	GroupsFailed    int
	RowsPersisted   int
	VersionsDropped int
	Articles        []catalog.Article
}

// Counters converts the result into job counters.
func (r Result) Counters() catalog.JobCounters {
	return catalog.JobCounters{
		Groups:          r.Groups,
		GroupsSkipped:   r.GroupsSkipped,
		GroupsFailed:    r.GroupsFailed,
		RowsPersisted:   r.RowsPersisted,
		VersionsDropped: r.VersionsDropped,
	}
}

// Pipeline processes documents. A Pipeline holds no per-document state and
// may be shared, but each worker normally owns one so that it owns its fetch
// session.
type Pipeline struct {
	cfg       Config
	fetcher   catalog.Fetcher
	extractor VersionExtractor
	repo      catalog.Repository
	archiver  Archiver
	enricher  catalog.Enricher
	assembler *versioning.Assembler
	logger    *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithArchiver enables raw snapshots of root pages.
func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

// WithEnricher sets the collaborator that receives persisted articles.
func WithEnricher(e catalog.Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// New builds a Pipeline. The fetcher loads root pages and the extractor
// loads version pages.
func New(cfg Config, fetcher catalog.Fetcher, extractor VersionExtractor, repo catalog.Repository, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = source.DefaultBaseURL
	}
	if cfg.VersionTimeout <= 0 {
		cfg.VersionTimeout = DefaultVersionTimeout
	}
	if cfg.GroupParallelism <= 0 {
		cfg.GroupParallelism = DefaultGroupParallelism
	}
	logger = logger.Named("pipeline")
	p := &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		repo:      repo,
		assembler: versioning.NewAssembler(logger),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDocument fetches, extracts, assembles and persists one document.
// Failures confined to a single version or canonical identity are logged and
// counted; the returned error is reserved for failures of the whole document.
func (p *Pipeline) ProcessDocument(ctx context.Context, target catalog.DocumentTarget) (Result, error) {
	ctx, span := tracer().Start(ctx, "pipeline.ProcessDocument",
		trace.WithAttributes(attribute.String("catalog.target", target.String())))
	defer span.End()

	res, err := p.processDocument(ctx, target)
	span.SetAttributes(
		attribute.Int64("catalog.document_id", res.Document.ID),
		attribute.Int("catalog.groups", res.Groups),
		attribute.Int("catalog.rows_persisted", res.RowsPersisted),
		attribute.Bool("catalog.skipped", res.Skipped),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *Pipeline) processDocument(ctx context.Context, target catalog.DocumentTarget) (Result, error) {
	pageURL := target.URL
	if pageURL == "" {
		pageURL = source.DocumentURL(p.cfg.BaseURL, target.Year, target.Number, target.Consolidated)
	}
	logger := p.logger.With(zap.String("target", target.String()))

	resp, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch document %s: %w", pageURL, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, fmt.Errorf("fetch document %s: %w", pageURL, catalog.ErrDocumentNotFound)
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("fetch document %s: status %d: %w", pageURL, resp.StatusCode, catalog.ErrFetchFailure)
	}
	if resp.URL != "" {
		pageURL = resp.URL
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return Result{}, fmt.Errorf("parse document %s: %w", pageURL, err)
	}
	doc, err := extract.DocumentMeta(page, pageURL, p.cfg.DocumentTextCap)
	if err != nil {
		return Result{}, fmt.Errorf("document %s: %w", pageURL, err)
	}
	if doc.Year == 0 {
		doc.Year = target.Year
	}
	if doc.Number == "" {
		doc.Number = target.Number
	}

	docID, created, err := p.repo.EnsureDocument(ctx, doc)
	if err != nil {
		return Result{}, fmt.Errorf("ensure document: %w", err)
	}
	doc.ID = docID
	res := Result{Document: doc}
	logger = logger.With(zap.Int64("document_id", docID))

	if !created && p.cfg.SkipExisting {
		logger.Info("document already stored, skipping")
		res.Skipped = true
		return res, nil
	}

	if p.archiver != nil {
		uri, err := p.archiver.Archive(ctx, doc, resp.Body)
		if err != nil {
			logger.Warn("snapshot failed", zap.Error(err))
		} else {
			logger.Debug("snapshot stored", zap.String("uri", uri))
		}
	}

	existing := make(map[string]bool)
	if !created {
		stored, err := p.repo.ListArticles(ctx, docID)
		if err != nil {
			return res, fmt.Errorf("list stored articles: %w", err)
		}
		for _, a := range stored {
			existing[a.CanonicalNumber] = true
		}
	}

	groups, err := p.discover(page, pageURL, logger)
	if err != nil {
		return res, err
	}
	res.Groups = len(groups)

	var pending []*versioning.Group
	for _, g := range groups {
		if existing[g.Label.Canonical()] {
			res.GroupsSkipped++
			metrics.ObserveGroup("existing")
			continue
		}
		pending = append(pending, g)
	}

	dropped, err := p.extractGroups(ctx, pending, logger)
	res.VersionsDropped = dropped
	if err != nil {
		return res, err
	}

	for _, g := range pending {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("persist articles: %w", err)
		}
		rows, ok := p.persistGroup(ctx, docID, g, logger)
		switch {
		case rows == nil && ok:
			res.GroupsSkipped++
		case !ok:
			res.GroupsFailed++
		default:
			res.RowsPersisted += len(rows)
			res.Articles = append(res.Articles, rows...)
		}
	}

	if p.enricher != nil && len(res.Articles) > 0 {
		if err := p.enricher.Enrich(ctx, doc, res.Articles); err != nil {
			logger.Warn("enrichment failed", zap.Error(err))
		}
	}

	logger.Info("document processed",
		zap.Int("groups", res.Groups),
		zap.Int("groups_skipped", res.GroupsSkipped),
		zap.Int("groups_failed", res.GroupsFailed),
		zap.Int("rows", res.RowsPersisted),
		zap.Int("versions_dropped", res.VersionsDropped),
	)
	return res, nil
}

// discover reads the navigation of the root page. Pages without navigation
// fall back to the whole page as the single source of versions.
func (p *Pipeline) discover(page *goquery.Document, pageURL string, logger *zap.Logger) ([]*versioning.Group, error) {
	refs, err := extract.Navigation(page, pageURL)
	if err == nil {
		logger.Debug("navigation found", zap.Int("references", len(refs)))
		return versioning.GroupReferences(refs), nil
	}
	if !errors.Is(err, catalog.ErrNoNavigationFound) {
		return nil, fmt.Errorf("navigation: %w", err)
	}
	versions := extract.WholePage(page, pageURL)
	logger.Info("no navigation found, using whole page", zap.Int("versions", len(versions)))
	for _, v := range versions {
		metrics.ObserveExtractionTier(string(v.Tier))
	}
	return versioning.GroupVersions(versions), nil
}

// extractGroups visits the references of every discovered group with
// bounded parallelism across groups. It returns the number of dropped
// versions.
func (p *Pipeline) extractGroups(ctx context.Context, groups []*versioning.Group, logger *zap.Logger) (int, error) {
	var dropped atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(p.cfg.GroupParallelism)

	for _, g := range groups {
		if g.State() != versioning.StateDiscovered {
			continue
		}
		eg.Go(func() error {
			versions := make([]catalog.Version, 0, len(g.Refs))
			for _, ref := range g.Refs {
				if ctx.Err() != nil {
					dropped.Add(1)
					continue
				}
				v, ok := p.extractOne(ctx, ref, logger)
				if !ok {
					dropped.Add(1)
					continue
				}
				versions = append(versions, v)
			}
			return g.SetVersions(versions)
		})
	}
	if err := eg.Wait(); err != nil {
		return int(dropped.Load()), fmt.Errorf("extract versions: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return int(dropped.Load()), fmt.Errorf("extract versions: %w", err)
	}
	return int(dropped.Load()), nil
}

func (p *Pipeline) extractOne(ctx context.Context, ref catalog.RawReference, logger *zap.Logger) (catalog.Version, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.VersionTimeout)
	defer cancel()
	ctx, span := tracer().Start(ctx, "pipeline.ExtractVersion",
		trace.WithAttributes(attribute.String("catalog.label", ref.Label), attribute.String("url.full", ref.URL)))
	defer span.End()

	v, err := p.extractor.ExtractVersion(ctx, ref)
	switch {
	case err == nil:
		metrics.ObserveVersion("extracted")
		metrics.ObserveExtractionTier(string(v.Tier))
		return v, true
	case errors.Is(err, catalog.ErrEmptyVersionText):
		metrics.ObserveVersion("empty")
		logger.Debug("version has no text",
			zap.String("label", ref.Label),
			zap.String("version", ref.VersionText),
			zap.String("url", ref.URL),
		)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveVersion("fetch_failed")
		logger.Warn("version fetch failed",
			zap.String("label", ref.Label),
			zap.String("version", ref.VersionText),
			zap.String("url", ref.URL),
			zap.Error(err),
		)
	}
	return catalog.Version{}, false
}

// persistGroup assembles and stores one chain. It returns the stored rows,
// or nil rows with ok=true when the group had nothing usable.
func (p *Pipeline) persistGroup(ctx context.Context, docID int64, g *versioning.Group, logger *zap.Logger) ([]catalog.Article, bool) {
	canonical := g.Label.Canonical()
	chain, usable, err := p.assembler.Assemble(docID, g)
	if err != nil {
		metrics.ObserveGroup("failed")
		logger.Error("assemble chain", zap.String("article", canonical), zap.Error(err))
		return nil, false
	}
	if !usable {
		metrics.ObserveGroup("empty")
		logger.Info("no usable versions", zap.String("article", canonical))
		return nil, true
	}

	rows, err := p.repo.SaveChain(ctx, chain)
	if err != nil {
		metrics.ObserveGroup("failed")
		logger.Warn("persist chain", zap.String("article", canonical), zap.Error(err))
		return nil, false
	}
	if err := g.Advance(versioning.StatePersisted); err != nil {
		logger.Error("advance group", zap.String("article", canonical), zap.Error(err))
	}
	metrics.ObserveGroup("persisted")
	metrics.ObservePersisted(string(chain.Kind), len(rows))
	return rows, true
}
