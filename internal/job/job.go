// Package job defines the common shape of a digest job and a registry
// used by the server, scheduler, and one-shot runner.
package job

import (
	"context"
	"sort"
)

// Job is one ingestion pipeline: fetch, filter, optionally summarize,
// format, and publish a dated digest.
type Job interface {
	// Name is the stable job identifier, also the digest key prefix.
	Name() string

	// Run executes one complete batch. Per-item and per-source failures
	// are handled inside; a returned error means the whole run failed.
	Run(ctx context.Context) error
}

// Registry holds the configured jobs by name.
type Registry struct {
	jobs map[string]Job
}

// NewRegistry builds a registry from the given jobs.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

// Get returns the job registered under name.
func (r *Registry) Get(name string) (Job, bool) {
	j, ok := r.jobs[name]
	return j, ok
}

// Names returns the registered job names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
