package papers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/asagiri-dev/choukan/internal/digest"
	storagemem "github.com/asagiri-dev/choukan/internal/storage/memory"
	"github.com/asagiri-dev/choukan/internal/summarizer"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var aug30 = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

const proseLine = "This paper presents a novel approach to sequence modeling that scales to extremely long contexts without quadratic cost."

func huggingFacePage(ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<article><a href="/papers/%s">Paper %s</a><a href="/papers/%s#community">42</a></article>`, id, id, id)
	}
	b.WriteString(`<article><a href="/collections/foo">not a paper</a></article>`)
	b.WriteString("</body></html>")
	return b.String()
}

func atomEntry(id, title, abstract string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/%sv1</id>
    <title>%s</title>
    <summary>%s</summary>
    <link href="http://arxiv.org/abs/%sv1" rel="alternate" type="text/html"/>
  </entry>
</feed>`, id, title, abstract, id)
}

func paperPage() string {
	return fmt.Sprintf(`<html><head><style>.x{}</style></head><body>
<header>arXiv header</header>
<nav>browse</nav>
<h1>Long Context Models</h1>
<p>alice@example.edu, Department of Computer Science, Example University</p>
<p>%s</p>
<p>Our experiments cover three benchmarks and show consistent improvements across all model sizes we evaluated.</p>
<footer>copyright</footer>
</body></html>`, proseLine)
}

type testOrigins struct {
	hf    *httptest.Server
	arxiv *httptest.Server
	html  *httptest.Server
}

func newOrigins(t *testing.T, pageIDs []string, entries map[string]string) testOrigins {
	t.Helper()
	hf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-08-29", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(huggingFacePage(pageIDs...)))
	}))
	t.Cleanup(hf.Close)

	arxiv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id_list")
		entry, ok := entries[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(entry))
	}))
	t.Cleanup(arxiv.Close)

	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(paperPage()))
	}))
	t.Cleanup(html.Close)

	return testOrigins{hf: hf, arxiv: arxiv, html: html}
}

func newTestJob(t *testing.T, o testOrigins, sum summarizer.Summarizer, store *storagemem.BlobStore) *Job {
	t.Helper()
	logger := zaptest.NewLogger(t)
	pub := digest.NewPublisher(store, nil, "", fixedClock{aug30}, logger)
	return New(store, sum, pub, &http.Client{Timeout: 5 * time.Second}, fixedClock{aug30}, 7, logger,
		WithEndpoints(o.hf.URL, o.arxiv.URL, o.html.URL))
}

func echoSummarizer(calls *[]string) summarizer.Summarizer {
	return summarizer.Func(func(_ context.Context, instruction, _ string) (string, error) {
		*calls = append(*calls, instruction)
		return "a fine summary", nil
	})
}

func TestRunPublishesSummaries(t *testing.T) {
	o := newOrigins(t, []string{"2408.11111", "2408.22222"}, map[string]string{
		"2408.11111": atomEntry("2408.11111", "First Paper", "Abstract one."),
		"2408.22222": atomEntry("2408.22222", "Second Paper", "Abstract two."),
	})
	store := storagemem.NewBlobStore()
	var calls []string
	jb := newTestJob(t, o, echoSummarizer(&calls), store)

	require.NoError(t, jb.Run(context.Background()))

	data, err := store.GetObject(context.Background(), "paper_summarizer/2026-08-30.md")
	require.NoError(t, err)
	assert.Equal(t, "a fine summary\n\n---\n\na fine summary", string(data))

	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "First Paper")
	assert.Contains(t, calls[0], "Abstract one.")
	assert.Contains(t, calls[0], proseLine)
	// The affiliation line precedes the body and must not survive extraction.
	assert.NotContains(t, calls[0], "alice@example.edu")

	ids, err := store.GetObject(context.Background(), "paper_summarizer/arxiv_ids-2026-08-30.txt")
	require.NoError(t, err)
	assert.Equal(t, "2408.11111\n2408.22222", string(ids))
}

func TestRunSkipsRecentlySeenIDs(t *testing.T) {
	o := newOrigins(t, []string{"2408.11111", "2408.22222"}, map[string]string{
		"2408.22222": atomEntry("2408.22222", "Second Paper", "Abstract two."),
	})
	store := storagemem.NewBlobStore()
	_, err := store.PutObject(context.Background(), "paper_summarizer/arxiv_ids-2026-08-27.txt",
		"text/plain; charset=utf-8", strings.NewReader("2408.11111\n"))
	require.NoError(t, err)

	var calls []string
	jb := newTestJob(t, o, echoSummarizer(&calls), store)
	require.NoError(t, jb.Run(context.Background()))

	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "Second Paper")

	ids, err := store.GetObject(context.Background(), "paper_summarizer/arxiv_ids-2026-08-30.txt")
	require.NoError(t, err)
	assert.Equal(t, "2408.22222", string(ids))
}

func TestRunDegradesFailedPaperToErrorEntry(t *testing.T) {
	// 2408.22222 has no arXiv API entry, so its processing fails.
	o := newOrigins(t, []string{"2408.11111", "2408.22222"}, map[string]string{
		"2408.11111": atomEntry("2408.11111", "First Paper", "Abstract one."),
	})
	store := storagemem.NewBlobStore()
	var calls []string
	jb := newTestJob(t, o, echoSummarizer(&calls), store)

	require.NoError(t, jb.Run(context.Background()))

	data, err := store.GetObject(context.Background(), "paper_summarizer/2026-08-30.md")
	require.NoError(t, err)
	parts := strings.Split(string(data), "\n\n---\n\n")
	require.Len(t, parts, 2)
	assert.Equal(t, "a fine summary", parts[0])
	assert.Contains(t, parts[1], "Error processing paper 2408.22222")
}

func TestRunSummarizerFailureDegrades(t *testing.T) {
	o := newOrigins(t, []string{"2408.11111"}, map[string]string{
		"2408.11111": atomEntry("2408.11111", "First Paper", "Abstract one."),
	})
	store := storagemem.NewBlobStore()
	failing := summarizer.Func(func(context.Context, string, string) (string, error) {
		return "", errors.New("model overloaded")
	})
	jb := newTestJob(t, o, failing, store)

	require.NoError(t, jb.Run(context.Background()))

	data, err := store.GetObject(context.Background(), "paper_summarizer/2026-08-30.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Error processing paper 2408.11111")
	assert.Contains(t, string(data), "model overloaded")
}

func TestRunFailsWhenHuggingFaceUnavailable(t *testing.T) {
	hf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer hf.Close()

	store := storagemem.NewBlobStore()
	logger := zaptest.NewLogger(t)
	pub := digest.NewPublisher(store, nil, "", fixedClock{aug30}, logger)
	jb := New(store, nil, pub, &http.Client{Timeout: 5 * time.Second}, fixedClock{aug30}, 7, logger,
		WithEndpoints(hf.URL, hf.URL, hf.URL))

	err := jb.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestFilterBodyLines(t *testing.T) {
	lines := []string{
		"arXiv:2408.11111",
		"Alice Example, Bob Sample, Example University, Department of Computer Science and more",
		proseLine,
		"short",
		"A follow-up sentence that also carries enough substance to stay inÂtheÂextracted body text.",
	}
	got := filterBodyLines(lines)
	assert.Equal(t, proseLine+"\nA follow-up sentence that also carries enough substance to stay in the extracted body text.", got)
}

func TestIsValidBodyLine(t *testing.T) {
	long := strings.Repeat("x", 120)
	cases := []struct {
		name string
		line string
		want bool
	}{
		{"prose", proseLine, true},
		{"email", "contact us at someone@example.com for details because this line is definitely long enough to pass otherwise.", false},
		{"affiliation", "Institute for Advanced Studies in Machine Learning, a very long affiliation line with a period.", false},
		{"too short", "Short but valid sentence.", false},
		{"no period", long, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isValidBodyLine(tc.line, minStartLineLength))
		})
	}
}

func TestPostprocess(t *testing.T) {
	t.Run("tex backticks", func(t *testing.T) {
		assert.Equal(t, `$\alpha$`, removeTeXBackticks("`$\\alpha$`"))
		assert.Equal(t, "`plain`", removeTeXBackticks("`plain`"))
	})
	t.Run("markdown fence", func(t *testing.T) {
		in := "before\n```markdown\ninner ``` stays\n```\nafter"
		assert.Equal(t, "before\n\ninner ``` stays\n\nafter", removeOuterMarkdownMarkers(in))
	})
	t.Run("single quote fence", func(t *testing.T) {
		in := "before\n'''\ninner ''' stays\n'''\nafter"
		assert.Equal(t, "before\n\ninner ''' stays\n\nafter", removeOuterSingleQuotes(in))
	})
}
