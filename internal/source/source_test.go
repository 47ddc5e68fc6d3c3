package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://www.normattiva.it/uri-res/N2Ls?urn:nir:2000;13!multivigente~",
		DocumentURL("", 2000, "13", true))
	assert.Equal(t,
		"http://localhost:8080/uri-res/N2Ls?urn:nir:1990;241",
		DocumentURL("http://localhost:8080/", 1990, "241", false))
}

func TestParseURNFull(t *testing.T) {
	t.Parallel()

	urn, err := ParseURN("urn:nir:stato:decreto.legislativo:2005-03-07;82!vig=2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "stato", urn.Authority)
	assert.Equal(t, "decreto.legislativo", urn.ActType)
	assert.Equal(t, "Decreto Legislativo", urn.ActTypeName())
	assert.Equal(t, "2005-03-07", urn.Date)
	assert.Equal(t, 2005, urn.Year)
	assert.Equal(t, "82", urn.Number)
	assert.Equal(t, "urn:nir:stato:decreto.legislativo:2005-03-07;82", urn.Raw)
}

func TestParseURNShort(t *testing.T) {
	t.Parallel()

	urn, err := ParseURN("urn:nir:2000;13")
	require.NoError(t, err)
	assert.Equal(t, 2000, urn.Year)
	assert.Equal(t, "13", urn.Number)
	assert.Empty(t, urn.ActType)
}

func TestParseURNErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseURN("urn:lex:it:2000;13")
	require.Error(t, err)
	_, err = ParseURN("urn:nir:stato:legge:xx;1")
	require.Error(t, err)
}

func TestURNFromURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "urn:nir:2000;13",
		URNFromURL("https://www.normattiva.it/uri-res/N2Ls?urn:nir:2000;13!multivigente~"))
	assert.Equal(t, "urn:nir:stato:legge:1990-08-07;241",
		URNFromURL("/uri-res/N2Ls?urn%3Anir%3Astato%3Alegge%3A1990-08-07%3B241"))
	assert.Empty(t, URNFromURL("https://example.com/page"))
}

func TestPermalink(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://www.normattiva.it/atto/caricaArticolo?art.versione=1",
		Permalink("/atto/caricaArticolo?art.versione=1"))
	assert.Equal(t, "https://www.normattiva.it/atto/x", Permalink("http://www.normattiva.it/atto/x"))
	assert.Equal(t, "https://example.com/a", Permalink("https://example.com/a"))
	assert.Empty(t, Permalink("  "))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://www.normattiva.it/atto/caricaArticolo?id=1",
		Resolve("https://www.normattiva.it/uri-res/N2Ls?urn:nir:2000;13", "/atto/caricaArticolo?id=1"))
	assert.Equal(t, "http://127.0.0.1:9999/allegato/A",
		Resolve("http://127.0.0.1:9999/atto/articolo", "/allegato/A"))
}
