package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/enrich"
	"github.com/JakeFAU/normattiva-catalog/internal/extract"
	pubmemory "github.com/JakeFAU/normattiva-catalog/internal/publisher/memory"
	"github.com/JakeFAU/normattiva-catalog/internal/snapshot"
	"github.com/JakeFAU/normattiva-catalog/internal/storage/memory"
)

const (
	rootURL = "https://www.normattiva.it/uri-res/N2Ls?urn:nir:2000;13!multivigente~"
	art1Cur = "https://www.normattiva.it/atto/caricaArticolo?art.versione=3&art.idArticolo=1"
	art1Org = "https://www.normattiva.it/atto/caricaArticolo?art.versione=1&art.idArticolo=1"
	art1Agg = "https://www.normattiva.it/atto/caricaArticolo?art.versione=2&art.idArticolo=1&imUpdate=true"
	art2Cur = "https://www.normattiva.it/atto/caricaArticolo?art.versione=1&art.idArticolo=2"
	art3Cur = "https://www.normattiva.it/atto/caricaArticolo?art.versione=1&art.idArticolo=3"
)

const rootPage = `<html><head><title>LEGGE 13 gennaio 2000, n. 13</title></head><body>
<div id="albero"><ul>
  <li>
    <a onclick="showArticle('/atto/caricaArticolo?art.versione=3&amp;art.idArticolo=1', this)">Art. 1</a>
    <a id="a1-1-0" onclick="showUpdatesArticle('a1-1-0')">aggiornamenti</a>
    <ul>
      <li class="agg-a1-1-0"><a onclick="showArticle('/atto/caricaArticolo?art.versione=1&amp;art.idArticolo=1', this)">orig.</a></li>
      <li class="agg-a1-1-0"><a onclick="showArticle('/atto/caricaArticolo?art.versione=2&amp;art.idArticolo=1&amp;imUpdate=true', this)">agg.1</a></li>
    </ul>
  </li>
  <li><a onclick="showArticle('/atto/caricaArticolo?art.versione=1&amp;art.idArticolo=2', this)">Art. 2</a></li>
  <li><a onclick="showArticle('/atto/caricaArticolo?art.versione=1&amp;art.idArticolo=3', this)">Art. 3</a></li>
</ul></div>
<div class="bodyTesto">Legge di prova sul procedimento.</div>
</body></html>`

func versionPage(text string) string {
	return `<html><body><div id="testoNormalizzato"><div class="bodyTesto"><p>` + text + `</p></div></div></body></html>`
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]catalog.FetchResponse
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (catalog.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return catalog.FetchResponse{}, err
	}
	resp, ok := f.pages[url]
	if !ok {
		return catalog.FetchResponse{URL: url, StatusCode: http.StatusNotFound}, nil
	}
	resp.URL = url
	return resp, nil
}

func ok(body string) catalog.FetchResponse {
	return catalog.FetchResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]catalog.FetchResponse{
		rootURL: ok(rootPage),
		art1Cur: ok(versionPage("1. Testo modificato.")),
		art1Org: ok(versionPage("1. Testo originario.")),
		art1Agg: ok(versionPage("1. Testo modificato.")),
		art2Cur: ok(versionPage("1. Secondo articolo.")),
	}}
}

var target = catalog.DocumentTarget{Year: 2000, Number: "13", Consolidated: true}

func newPipeline(cfg Config, f catalog.Fetcher, repo catalog.Repository, opts ...Option) *Pipeline {
	return New(cfg, f, extract.New(f, extract.Config{}, zap.NewNop()), repo, zap.NewNop(), opts...)
}

func TestProcessDocumentPersistsChains(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository()
	blobs := memory.NewBlobStore()
	pub := pubmemory.New()
	p := newPipeline(Config{GroupParallelism: 2, VersionTimeout: time.Second}, newFetcher(), repo,
		WithArchiver(snapshot.New(blobs, "raw")),
		WithEnricher(enrich.NewNotifier(pub, "", zap.NewNop())),
	)

	res, err := p.ProcessDocument(context.Background(), target)
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, 2000, res.Document.Year)
	assert.Equal(t, "13", res.Document.Number)
	assert.Equal(t, "Legge", res.Document.ActType)
	assert.Equal(t, 3, res.Groups)
	assert.Equal(t, 1, res.GroupsSkipped)
	assert.Equal(t, 0, res.GroupsFailed)
	assert.Equal(t, 1, res.VersionsDropped)
	assert.Equal(t, 3, res.RowsPersisted)

	stored, err := repo.ListArticles(context.Background(), res.Document.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)

	assert.Equal(t, "1", stored[0].CanonicalNumber)
	assert.Equal(t, catalog.OriginalLabel, stored[0].VersionLabel)
	assert.Equal(t, "1. Testo originario.", stored[0].NormalizedText)
	assert.Equal(t, "1. Testo modificato.", stored[0].CurrentText)
	assert.False(t, stored[0].IsCurrent)

	assert.Equal(t, "1", stored[1].CanonicalNumber)
	require.NotNil(t, stored[1].UpdateSequence)
	assert.Equal(t, 1, *stored[1].UpdateSequence)
	require.NotNil(t, stored[1].BaseArticleID)
	assert.Equal(t, stored[0].ID, *stored[1].BaseArticleID)
	assert.True(t, stored[1].IsCurrent)

	assert.Equal(t, "2", stored[2].CanonicalNumber)
	assert.True(t, stored[2].IsCurrent)

	assert.Len(t, blobs.Paths(), 1)
	msgs := pub.Messages(enrich.DefaultTopic)
	require.Len(t, msgs, 1)
	assert.Equal(t, 3, res.Counters().RowsPersisted)
}

func TestProcessDocumentSkipsExisting(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository()
	f := newFetcher()
	p := newPipeline(Config{SkipExisting: true}, f, repo)

	first, err := p.ProcessDocument(context.Background(), target)
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := p.ProcessDocument(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Zero(t, second.RowsPersisted)
}

func TestProcessDocumentResumesMissingArticles(t *testing.T) {
	t.Parallel()

	repo := memory.NewRepository()
	f := newFetcher()
	p := newPipeline(Config{}, f, repo)

	first, err := p.ProcessDocument(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, 3, first.RowsPersisted)

	f.mu.Lock()
	f.pages[art3Cur] = ok(versionPage("1. Terzo articolo."))
	f.mu.Unlock()

	second, err := p.ProcessDocument(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 2, second.GroupsSkipped)
	assert.Equal(t, 1, second.RowsPersisted)
	require.Len(t, second.Articles, 1)
	assert.Equal(t, "3", second.Articles[0].CanonicalNumber)
}

func TestProcessDocumentNotFound(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]catalog.FetchResponse{
		rootURL: ok(`<html><body><p>` + extract.NotFoundMarker + `</p></body></html>`),
	}}
	_, err := newPipeline(Config{}, f, memory.NewRepository()).ProcessDocument(context.Background(), target)
	require.ErrorIs(t, err, catalog.ErrDocumentNotFound)

	empty := &fakeFetcher{pages: map[string]catalog.FetchResponse{}}
	_, err = newPipeline(Config{}, empty, memory.NewRepository()).ProcessDocument(context.Background(), target)
	require.ErrorIs(t, err, catalog.ErrDocumentNotFound)
}

func TestProcessDocumentRootFetchFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	f := &fakeFetcher{errs: map[string]error{rootURL: boom}}
	_, err := newPipeline(Config{}, f, memory.NewRepository()).ProcessDocument(context.Background(), target)
	require.ErrorIs(t, err, boom)

	f = &fakeFetcher{pages: map[string]catalog.FetchResponse{
		rootURL: {StatusCode: http.StatusBadGateway},
	}}
	_, err = newPipeline(Config{}, f, memory.NewRepository()).ProcessDocument(context.Background(), target)
	require.ErrorIs(t, err, catalog.ErrFetchFailure)
}

func TestProcessDocumentWholePageFallback(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>DECRETO-LEGGE 5 marzo 2001, n. 7</title></head><body>
<div class="articolo">1. Primo articolo.</div>
<div class="articolo">1. Secondo articolo.</div>
</body></html>`
	const url = "https://www.normattiva.it/uri-res/N2Ls?urn:nir:2001;7"
	f := &fakeFetcher{pages: map[string]catalog.FetchResponse{url: ok(page)}}
	repo := memory.NewRepository()

	res, err := newPipeline(Config{}, f, repo).ProcessDocument(context.Background(),
		catalog.DocumentTarget{Year: 2001, Number: "7"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, 2, res.RowsPersisted)

	stored, err := repo.ListArticles(context.Background(), res.Document.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "1", stored[0].CanonicalNumber)
	assert.Equal(t, "2", stored[1].CanonicalNumber)
}

// stallingFetcher blocks on the listed URLs until the caller gives up.
type stallingFetcher struct {
	*fakeFetcher
	stall map[string]bool
}

func (f *stallingFetcher) Fetch(ctx context.Context, url string) (catalog.FetchResponse, error) {
	if f.stall[url] {
		<-ctx.Done()
		return catalog.FetchResponse{}, ctx.Err()
	}
	return f.fakeFetcher.Fetch(ctx, url)
}

func TestProcessDocumentVersionTimeoutIsolated(t *testing.T) {
	t.Parallel()

	f := &stallingFetcher{fakeFetcher: newFetcher(), stall: map[string]bool{art1Org: true}}
	repo := memory.NewRepository()
	p := newPipeline(Config{VersionTimeout: 50 * time.Millisecond, GroupParallelism: 1}, f, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.ProcessDocument(ctx, target)
	require.NoError(t, err)
	require.NoError(t, ctx.Err())

	assert.Equal(t, 2, res.VersionsDropped)
	assert.Equal(t, 0, res.GroupsFailed)
	assert.Equal(t, 3, res.RowsPersisted)

	stored, err := repo.ListArticles(context.Background(), res.Document.ID)
	require.NoError(t, err)
	canonicals := make(map[string]int)
	for _, a := range stored {
		canonicals[a.CanonicalNumber]++
	}
	assert.Equal(t, map[string]int{"1": 2, "2": 1}, canonicals)
}

func TestProcessDocumentCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{errs: map[string]error{rootURL: context.Canceled}}
	_, err := newPipeline(Config{}, f, memory.NewRepository()).ProcessDocument(ctx, target)
	require.ErrorIs(t, err, context.Canceled)
}

// Installs a global tracer provider, so it does not run in parallel.
func TestProcessDocumentRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, err := newPipeline(Config{}, newFetcher(), memory.NewRepository()).ProcessDocument(context.Background(), target)
	require.NoError(t, err)

	names := map[string]int{}
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}
	assert.Equal(t, 1, names["pipeline.ProcessDocument"])
	assert.Equal(t, 5, names["pipeline.ExtractVersion"])
}
