// Package techfeed implements the RSS/Atom tech feed digest job.
package techfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/digest"
	"github.com/asagiri-dev/choukan/internal/metrics"
	"github.com/asagiri-dev/choukan/internal/summarizer"
)

// Name is the job identifier and digest key prefix.
const Name = "tech_feed"

// maxSummarizeRunes caps how much article text is sent to the summarizer.
const maxSummarizeRunes = 20000

// maxArticleBytes bounds a single article page read.
const maxArticleBytes = 5 << 20

const emptyContentPlaceholder = "Content could not be retrieved or was empty."

const systemInstruction = `ユーザーから記事のタイトルと文章が与えられるので、内容をよく読み、日本語でとても詳細な要約を作成してください。
与えられる文章はHTMLから抽出された文章なので、一部情報が欠落していたり、数式、コード、不必要な文章などが含まれている場合があります。
要約以外の出力は不要です。`

const contentsFormat = "%s\n\n本文:\n%s"

// contentSelector whitelists the elements article text is taken from,
// which sidesteps navigation, ads, and scripts.
const contentSelector = "p, code, ul, h1, h2, h3, h4, h5, h6"

// Article is one feed entry with its extracted page text.
type Article struct {
	FeedName string
	Title    string
	URL      string
	Text     string
	Summary  string
}

// Job walks the configured feeds, keeps recent entries, fetches and
// summarizes each article, and publishes the combined digest.
type Job struct {
	feeds      map[string]string
	parser     *gofeed.Parser
	httpClient *http.Client
	summarizer summarizer.Summarizer
	publisher  *digest.Publisher
	clock      digest.Clock
	logger     *zap.Logger

	thresholdDays int
	maxEntries    int
	delay         time.Duration
}

// New builds the tech feed job. feeds maps a display name to the feed URL.
func New(
	feeds map[string]string,
	httpClient *http.Client,
	sum summarizer.Summarizer,
	publisher *digest.Publisher,
	clock digest.Clock,
	thresholdDays int,
	maxEntries int,
	delay time.Duration,
	logger *zap.Logger,
) *Job {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	return &Job{
		feeds:         feeds,
		parser:        parser,
		httpClient:    httpClient,
		summarizer:    sum,
		publisher:     publisher,
		clock:         clock,
		logger:        logger.Named(Name),
		thresholdDays: thresholdDays,
		maxEntries:    maxEntries,
		delay:         delay,
	}
}

// Name returns the job identifier.
func (j *Job) Name() string { return Name }

// Run executes one batch across all feeds. A feed parse failure skips
// that feed; an article failure skips that article. The combined digest
// is published regardless.
func (j *Job) Run(ctx context.Context) error {
	threshold := j.clock.Now().Add(-time.Duration(j.thresholdDays) * 24 * time.Hour)

	var entries []string
	for _, feedName := range j.feedNames() {
		feedURL := j.feeds[feedName]
		feed, err := j.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			j.logger.Error("Failed to parse feed; skipping",
				zap.String("feed", feedName),
				zap.String("url", feedURL),
				zap.Error(err),
			)
			continue
		}

		items := j.filterEntries(feed.Items, threshold)
		if len(items) > j.maxEntries {
			items = items[:j.maxEntries]
		}
		metrics.AddRecordsFetched(Name, len(items))

		for _, item := range items {
			article, err := j.retrieveArticle(ctx, item, feedName)
			if err != nil {
				j.logger.Error("Failed to retrieve article; skipping",
					zap.String("feed", feedName),
					zap.String("url", item.Link),
					zap.Error(err),
				)
				continue
			}
			article.Summary = j.summarizeArticle(ctx, article)
			entries = append(entries, renderArticle(article))

			if err := j.pace(ctx); err != nil {
				return err
			}
		}
	}

	j.publisher.Publish(ctx, Name, entries)
	return nil
}

// feedNames returns the configured feed names in stable order.
func (j *Job) feedNames() []string {
	names := make([]string, 0, len(j.feeds))
	for name := range j.feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// filterEntries keeps entries published strictly after the threshold.
// Entries without a parseable date are dropped with a diagnostic.
func (j *Job) filterEntries(items []*gofeed.Item, threshold time.Time) []*gofeed.Item {
	var kept []*gofeed.Item
	for _, item := range items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil {
			j.logger.Warn("Entry has no parseable date; dropping", zap.String("url", item.Link))
			continue
		}
		if published.After(threshold) {
			kept = append(kept, item)
		}
	}
	return kept
}

// retrieveArticle fetches the entry's page and extracts its text.
func (j *Job) retrieveArticle(ctx context.Context, item *gofeed.Item, feedName string) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.Link, nil)
	if err != nil {
		return Article{}, fmt.Errorf("build article request: %w", err)
	}
	resp, err := j.httpClient.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("fetch article: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Article{}, fmt.Errorf("fetch article: unexpected status %d", resp.StatusCode)
	}

	text, err := extractText(io.LimitReader(resp.Body, maxArticleBytes))
	if err != nil {
		return Article{}, fmt.Errorf("extract article text: %w", err)
	}
	return Article{
		FeedName: feedName,
		Title:    item.Title,
		URL:      item.Link,
		Text:     text,
	}, nil
}

// extractText collects the text of whitelisted content elements.
func extractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var parts []string
	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	return strings.Join(parts, "\n"), nil
}

// summarizeArticle produces the digest text for one article. Empty bodies
// get a fixed placeholder; a summarizer failure degrades to an inline
// error message so the run continues.
func (j *Job) summarizeArticle(ctx context.Context, article Article) string {
	if strings.TrimSpace(article.Text) == "" {
		j.logger.Warn("Skipping summarization for empty content", zap.String("url", article.URL))
		return emptyContentPlaceholder
	}

	summary, err := j.summarizer.Summarize(ctx, systemInstruction,
		fmt.Sprintf(contentsFormat, article.Title, truncateRunes(article.Text, maxSummarizeRunes)))
	metrics.ObserveSummarizerCall(Name, err)
	if err != nil {
		j.logger.Error("Summarization failed",
			zap.String("url", article.URL),
			zap.Error(err),
		)
		return fmt.Sprintf("Error summarizing content: %v", err)
	}
	return summary
}

// pace sleeps the configured delay between articles to avoid hammering
// the origin site, honoring context cancellation.
func (j *Job) pace(ctx context.Context) error {
	if j.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(j.delay):
		return nil
	}
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// renderArticle maps an article onto the fixed Markdown layout.
func renderArticle(article Article) string {
	return fmt.Sprintf("\n# %s\n\n[View on %s](%s)\n\n%s\n",
		article.Title, article.FeedName, article.URL, article.Summary)
}
