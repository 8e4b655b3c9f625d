// Package server exposes the HTTP surface: job invocation, the digest
// viewer, health probes, and Prometheus metrics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/digest"
	"github.com/asagiri-dev/choukan/internal/job"
	"github.com/asagiri-dev/choukan/internal/metrics"
	"github.com/asagiri-dev/choukan/internal/storage"
	"github.com/asagiri-dev/choukan/internal/trigger"
)

// maxInvokeBodyBytes bounds the invocation envelope size.
const maxInvokeBodyBytes = 1 << 20

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Server routes HTTP traffic to the job gate and the digest viewer.
type Server struct {
	registry *job.Registry
	store    storage.Store
	logger   *zap.Logger
	router   chi.Router
}

// New assembles the router with its middleware chain.
func New(registry *job.Registry, store storage.Store, logger *zap.Logger) *Server {
	s := &Server{
		registry: registry,
		store:    store,
		logger:   logger.Named("server"),
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Post("/invoke/{job}", s.handleInvoke)
	r.Get("/digests", s.handleListDigests)
	r.Get("/digests/{job}/{date}", s.handleGetDigest)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler { return s.router }

// handleInvoke wraps an HTTP request into an invocation envelope and
// hands it to the gate. The gate decides whether the body authorizes a
// run; this handler only resolves the job and relays the outcome.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	jb, ok := s.registry.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": fmt.Sprintf("unknown job: %s", name),
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInvokeBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "failed to read request body",
		})
		return
	}

	event := trigger.Event{
		RequestContext: &trigger.RequestContext{
			HTTP: trigger.HTTPContext{Method: r.Method},
		},
		Body: string(body),
	}
	resp := trigger.Handle(r.Context(), event, jb.Name(), jb.Run, s.logger)

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write([]byte(resp.Body))
}

// digestIndex maps a job name to its available digest dates, newest
// first.
type digestIndex map[string][]string

// handleListDigests lists stored digests grouped by job. Auxiliary
// objects such as dedup files are not digests and are skipped.
func (s *Server) handleListDigests(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.ListObjects(r.Context(), "")
	if err != nil {
		s.logger.Error("Failed to list digests", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "failed to list digests",
		})
		return
	}

	index := digestIndex{}
	for _, key := range keys {
		jobName, date, ok := parseDigestKey(key)
		if !ok {
			continue
		}
		index[jobName] = append(index[jobName], date)
	}
	for _, dates := range index {
		sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	}
	writeJSON(w, http.StatusOK, index)
}

// handleGetDigest serves one digest document as Markdown.
func (s *Server) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	jobName := chi.URLParam(r, "job")
	date := chi.URLParam(r, "date")
	day, parseErr := time.Parse("2006-01-02", date)
	if parseErr != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": "digest not found",
		})
		return
	}

	data, err := s.store.GetObject(r.Context(), digest.Key(jobName, day))
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": "digest not found",
		})
		return
	}
	if err != nil {
		s.logger.Error("Failed to read digest",
			zap.String("job", jobName),
			zap.String("date", date),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "failed to read digest",
		})
		return
	}

	w.Header().Set("Content-Type", digest.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseDigestKey splits "{job}/{YYYY-MM-DD}.md" into its parts.
func parseDigestKey(key string) (jobName, date string, ok bool) {
	jobName, file, found := strings.Cut(key, "/")
	if !found || strings.Contains(file, "/") {
		return "", "", false
	}
	date, isMD := strings.CutSuffix(file, ".md")
	if !isMD || !datePattern.MatchString(date) {
		return "", "", false
	}
	return jobName, date, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
