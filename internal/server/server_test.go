package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/asagiri-dev/choukan/internal/job"
	"github.com/asagiri-dev/choukan/internal/server"
	storagemem "github.com/asagiri-dev/choukan/internal/storage/memory"
)

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Name() string              { return j.name }
func (j *stubJob) Run(context.Context) error { j.runs++; return j.err }

func newTestServer(t *testing.T, store *storagemem.BlobStore, jobs ...job.Job) *httptest.Server {
	t.Helper()
	s := server.New(job.NewRegistry(jobs...), store, zaptest.NewLogger(t))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

const triggerBody = `{"source": "aws.events"}`

func TestInvokeRunsJob(t *testing.T) {
	jb := &stubJob{name: "github_trending"}
	ts := newTestServer(t, storagemem.NewBlobStore(), jb)

	resp, err := http.Post(ts.URL+"/invoke/github_trending", "application/json", strings.NewReader(triggerBody))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "github_trending triggered successfully", body["message"])
	assert.Equal(t, 1, jb.runs)
}

func TestInvokeRejectsWrongSource(t *testing.T) {
	jb := &stubJob{name: "github_trending"}
	ts := newTestServer(t, storagemem.NewBlobStore(), jb)

	resp, err := http.Post(ts.URL+"/invoke/github_trending", "application/json", strings.NewReader(`{"source": "manual"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Invalid request: Expected 'source: aws.events' in POST body", body["message"])
	assert.Equal(t, 0, jb.runs)
}

func TestInvokeUnknownJob(t *testing.T) {
	ts := newTestServer(t, storagemem.NewBlobStore())

	resp, err := http.Post(ts.URL+"/invoke/nope", "application/json", strings.NewReader(triggerBody))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvokeReportsJobFailure(t *testing.T) {
	jb := &stubJob{name: "tech_feed", err: errors.New("upstream down")}
	ts := newTestServer(t, storagemem.NewBlobStore(), jb)

	resp, err := http.Post(ts.URL+"/invoke/tech_feed", "application/json", strings.NewReader(triggerBody))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["message"], "upstream down")
}

func TestListDigests(t *testing.T) {
	store := storagemem.NewBlobStore()
	ctx := context.Background()
	for _, key := range []string{
		"github_trending/2026-08-29.md",
		"github_trending/2026-08-30.md",
		"hacker_news/2026-08-30.md",
		"paper_summarizer/arxiv_ids-2026-08-30.txt",
	} {
		_, err := store.PutObject(ctx, key, "text/markdown; charset=utf-8", strings.NewReader("x"))
		require.NoError(t, err)
	}
	ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/digests")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var index map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&index))
	assert.Equal(t, map[string][]string{
		"github_trending": {"2026-08-30", "2026-08-29"},
		"hacker_news":     {"2026-08-30"},
	}, index)
}

func TestGetDigest(t *testing.T) {
	store := storagemem.NewBlobStore()
	_, err := store.PutObject(context.Background(), "hacker_news/2026-08-30.md",
		"text/markdown; charset=utf-8", strings.NewReader("# Story\n"))
	require.NoError(t, err)
	ts := newTestServer(t, store)

	t.Run("found", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/digests/hacker_news/2026-08-30")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	})

	t.Run("missing date", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/digests/hacker_news/2026-01-01")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed date", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/digests/hacker_news/latest")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, storagemem.NewBlobStore())
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(t, storagemem.NewBlobStore())

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}
