package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/identity"
	"github.com/JakeFAU/normattiva-catalog/internal/source"
)

// Config bounds nested attachment extraction.
type Config struct {
	MaxAttachments int
}

// Extractor fetches and extracts single versions.
type Extractor struct {
	fetcher catalog.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds an Extractor.
func New(fetcher catalog.Fetcher, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttachments <= 0 {
		cfg.MaxAttachments = 20
	}
	return &Extractor{fetcher: fetcher, cfg: cfg, logger: logger}
}

// ExtractVersion fetches the page of one reference and extracts its text,
// correlated references, validity dates and nested attachments. A failed
// fetch returns ErrFetchFailure and a page without text returns
// ErrEmptyVersionText; either way the caller drops the version.
func (e *Extractor) ExtractVersion(ctx context.Context, ref catalog.RawReference) (catalog.Version, error) {
	page, finalURL, err := e.load(ctx, ref.URL)
	if err != nil {
		return catalog.Version{}, err
	}

	c := selectContainer(page.Selection)
	if c.tier != catalog.TierPrimary {
		e.logger.Info("primary container missing, using fallback",
			zap.String("label", ref.Label),
			zap.String("tier", string(c.tier)),
			zap.String("url", ref.URL),
		)
	}
	normalized := Normalize(c.text)
	if normalized == "" {
		return catalog.Version{}, fmt.Errorf("extract %s: %w: %w", ref.URL, catalog.ErrNoPrimaryContainer, catalog.ErrEmptyVersionText)
	}

	from, to := ValidityDates(page.Selection)
	return catalog.Version{
		Ref:            ref,
		FullText:       c.text,
		NormalizedText: normalized,
		CorrelatedRefs: CorrelatedRefs(c.sel),
		Attachments:    e.attachments(ctx, c.sel, finalURL),
		ValidFrom:      from,
		ValidTo:        to,
		SourceURL:      source.Permalink(ref.URL),
		Tier:           c.tier,
	}, nil
}

// attachments fetches the attachments linked from inside a version's text.
// Attachment pages are not searched for further attachments.
func (e *Extractor) attachments(ctx context.Context, scope *goquery.Selection, pageURL string) []catalog.Attachment {
	var (
		out  []catalog.Attachment
		seen = make(map[string]bool)
	)
	for _, l := range attachmentLinks(scope, pageURL) {
		if seen[l.url] {
			continue
		}
		seen[l.url] = true
		if len(seen) > e.cfg.MaxAttachments {
			e.logger.Warn("attachment limit reached", zap.String("page", pageURL), zap.Int("limit", e.cfg.MaxAttachments))
			break
		}
		page, _, err := e.load(ctx, l.url)
		if err != nil {
			e.logger.Warn("attachment fetch failed", zap.String("url", l.url), zap.Error(err))
			continue
		}
		text := Normalize(attachmentText(page.Selection))
		if text == "" {
			e.logger.Debug("attachment without text", zap.String("url", l.url))
			continue
		}
		out = append(out, catalog.Attachment{
			Number: identity.ParseLabel(l.label).Designator,
			Title:  l.title,
			URL:    l.url,
			Text:   text,
		})
	}
	return out
}

func attachmentText(page *goquery.Selection) string {
	if c, ok := firstWithText(page, attachmentContentSelectors); ok {
		return c.text
	}
	return blockText(page)
}

func (e *Extractor) load(ctx context.Context, url string) (*goquery.Document, string, error) {
	resp, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, catalog.ErrFetchFailure) {
			return nil, "", fmt.Errorf("fetch %s: %w", url, err)
		}
		return nil, "", fmt.Errorf("fetch %s: %w: %w", url, catalog.ErrFetchFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: %w: status %d", url, catalog.ErrFetchFailure, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", url, err)
	}
	finalURL := resp.URL
	if finalURL == "" {
		finalURL = url
	}
	return doc, finalURL, nil
}
