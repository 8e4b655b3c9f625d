// Package digest assembles rendered records into one Markdown object per
// job per calendar day and writes it to the blob store.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/metrics"
	"github.com/asagiri-dev/choukan/internal/notify"
	"github.com/asagiri-dev/choukan/internal/storage"
)

// Separator joins rendered records into one digest body.
const Separator = "\n---\n"

// ContentType is the MIME type digests are stored with.
const ContentType = "text/markdown; charset=utf-8"

// Clock supplies the wall-clock date used to derive object keys.
type Clock interface {
	Now() time.Time
}

// Key returns the object key for a job's digest on the given day.
func Key(job string, day time.Time) string {
	return fmt.Sprintf("%s/%s.md", job, day.UTC().Format("2006-01-02"))
}

// Notification is the payload published after a digest has been stored.
type Notification struct {
	Job     string `json:"job"`
	Key     string `json:"key"`
	Entries int    `json:"entries"`
	Date    string `json:"date"`
}

// Publisher writes job digests keyed by the current date. A write failure
// is logged but never escalated: the run has already done its work, and
// the next scheduled run overwrites the same key anyway.
type Publisher struct {
	store    storage.Store
	notifier notify.Publisher
	topic    string
	clock    Clock
	logger   *zap.Logger
}

// NewPublisher creates a digest publisher. notifier may be nil; topic is
// only used when a notifier is set.
func NewPublisher(store storage.Store, notifier notify.Publisher, topic string, clock Clock, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:    store,
		notifier: notifier,
		topic:    topic,
		clock:    clock,
		logger:   logger.Named("digest"),
	}
}

// Publish joins the entries with the default separator and stores them
// under the job's key for today.
func (p *Publisher) Publish(ctx context.Context, job string, entries []string) {
	p.PublishWith(ctx, job, Separator, entries)
}

// PublishWith is Publish with an explicit separator.
func (p *Publisher) PublishWith(ctx context.Context, job string, separator string, entries []string) {
	now := p.clock.Now()
	key := Key(job, now)
	content := strings.Join(entries, separator)

	uri, err := p.store.PutObject(ctx, key, ContentType, strings.NewReader(content))
	if err != nil {
		p.logger.Error("Failed to store digest",
			zap.String("job", job),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	p.logger.Info("Stored digest",
		zap.String("job", job),
		zap.String("key", key),
		zap.String("uri", uri),
		zap.Int("entries", len(entries)),
	)
	metrics.AddRecordsPublished(job, len(entries))

	if p.notifier == nil {
		return
	}
	notification := Notification{
		Job:     job,
		Key:     key,
		Entries: len(entries),
		Date:    now.UTC().Format("2006-01-02"),
	}
	if _, err := p.notifier.Publish(ctx, p.topic, notification); err != nil {
		p.logger.Warn("Failed to publish digest notification",
			zap.String("job", job),
			zap.Error(err),
		)
	}
}
