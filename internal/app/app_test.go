package app_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/normattiva-catalog/internal/app"
	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
	"github.com/JakeFAU/normattiva-catalog/internal/config"
	"github.com/JakeFAU/normattiva-catalog/internal/extract"
)

const rootPage = `<html><head><title>LEGGE 13 gennaio 2000, n. 13</title></head><body>
<div id="albero"><ul>
  <li>
    <a onclick="showArticle('/atto/caricaArticolo?art.versione=2&amp;art.idArticolo=1', this)">Art. 1</a>
    <a id="a1-1-0" onclick="showUpdatesArticle('a1-1-0')">aggiornamenti</a>
    <ul>
      <li class="agg-a1-1-0"><a onclick="showArticle('/atto/caricaArticolo?art.versione=1&amp;art.idArticolo=1', this)">orig.</a></li>
      <li class="agg-a1-1-0"><a onclick="showArticle('/atto/caricaArticolo?art.versione=2&amp;art.idArticolo=1&amp;imUpdate=true', this)">agg.1</a></li>
    </ul>
  </li>
  <li><a onclick="showArticle('/atto/caricaArticolo?art.versione=1&amp;art.idArticolo=2', this)">Art. 2</a></li>
</ul></div>
</body></html>`

func versionPage(text string) string {
	return `<html><body><div id="testoNormalizzato"><div class="bodyTesto"><p>` + text + `</p></div></div></body></html>`
}

func newSource(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/uri-res/N2Ls":
			if strings.Contains(r.URL.RawQuery, "99") {
				fmt.Fprint(w, `<html><body><p>`+extract.NotFoundMarker+`</p></body></html>`)
				return
			}
			fmt.Fprint(w, rootPage)
		case "/atto/caricaArticolo":
			q := r.URL.Query()
			switch q.Get("art.idArticolo") + "/" + q.Get("art.versione") {
			case "1/1":
				fmt.Fprint(w, versionPage("1. Testo originario."))
			case "1/2":
				fmt.Fprint(w, versionPage("1. Testo modificato."))
			case "2/1":
				fmt.Fprint(w, versionPage("1. Secondo articolo."))
			default:
				http.NotFound(w, r)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Source.BaseURL = baseURL
	cfg.Source.TimeoutSeconds = 5
	cfg.Crawler.Concurrency = 1
	cfg.DB.Provider = config.ProviderMemory
	cfg.Snapshot.Provider = config.ProviderMemory
	cfg.PubSub.Provider = config.ProviderMemory
	cfg.Source.RequestsPerSecond = 500
	cfg.Source.Burst = 10
	cfg.Headless.Enabled = false
	return cfg
}

func TestCrawlProcessesTargets(t *testing.T) {
	t.Parallel()

	ts := newSource(t)
	a, err := app.BuildWithLogger(context.Background(), testConfig(t, ts.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Migrate(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	jobs, err := a.Crawl(ctx, []catalog.DocumentTarget{
		{Year: 2000, Number: "13", Consolidated: true},
		{Year: 2000, Number: "99", Consolidated: true},
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, catalog.JobStatusSucceeded, jobs[0].Status, jobs[0].Error)
	assert.Equal(t, 3, jobs[0].Counters.RowsPersisted)
	assert.Equal(t, catalog.JobStatusNotFound, jobs[1].Status)

	rows, err := a.Repository().ListArticles(context.Background(), jobs[0].DocumentID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, catalog.OriginalLabel, rows[0].VersionLabel)
	assert.Equal(t, "1. Testo modificato.", rows[0].CurrentText)
}

func TestBuildRejectsUnreachablePostgres(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.DB.Provider = config.ProviderPostgres
	cfg.DB.DSN = "not a dsn"
	_, err := app.BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "postgres store init failed")
}
