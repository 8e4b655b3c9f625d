package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asagiri-dev/choukan/internal/metrics"
)

func TestInitIsIdempotent(t *testing.T) {
	metrics.Init()
	assert.NotPanics(t, metrics.Init)
}

func TestObserversDoNotPanic(t *testing.T) {
	metrics.Init()
	assert.NotPanics(t, func() {
		metrics.ObserveJobRun("hacker_news", "200", 3*time.Second)
		metrics.AddRecordsFetched("hacker_news", 30)
		metrics.AddRecordsPublished("hacker_news", 12)
		metrics.AddRecordsPublished("hacker_news", 0)
		metrics.ObserveSummarizerCall("tech_feed", nil)
		metrics.ObserveSummarizerCall("tech_feed", errors.New("quota"))
	})
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	metrics.Init()

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/digests/{job}/{date}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/digests/tech_feed/2026-08-30", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerServesExposition(t *testing.T) {
	metrics.Init()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
