// Package papers implements the Hugging Face daily-papers digest job.
//
// The job scrapes the daily-papers page for arXiv IDs, skips IDs already
// summarized in the last few days (tracked as one ID file per day in the
// blob store), then pulls each paper's metadata and HTML body, asks the
// summarizer a fixed set of questions, and publishes one digest.
package papers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/digest"
	"github.com/asagiri-dev/choukan/internal/metrics"
	"github.com/asagiri-dev/choukan/internal/storage"
	"github.com/asagiri-dev/choukan/internal/summarizer"
)

// Name is the job identifier and digest key prefix.
const Name = "paper_summarizer"

// separator joins paper summaries; wider than the default so the
// generated Markdown sections stay visually separate.
const separator = "\n\n---\n\n"

const (
	defaultHuggingFaceURL = "https://huggingface.co/papers"
	defaultArxivAPIURL    = "http://export.arxiv.org/api/query"
	defaultArxivHTMLURL   = "https://arxiv.org/html"
)

const idFileKeyFormat = Name + "/arxiv_ids-%s.txt"

// maxPageBytes bounds a single page read.
const maxPageBytes = 10 << 20

var arxivIDPattern = regexp.MustCompile(`^/papers/(\d{4}\.\d{5})$`)

// Paper is one paper to summarize.
type Paper struct {
	ID       string
	Title    string
	Abstract string
	URL      string
	Contents string
	Summary  string
}

// Job is the paper summarizer pipeline.
type Job struct {
	store      storage.Store
	summarizer summarizer.Summarizer
	publisher  *digest.Publisher
	httpClient *http.Client
	feedParser *gofeed.Parser
	clock      digest.Clock
	logger     *zap.Logger

	lookbackDays   int
	huggingFaceURL string
	arxivAPIURL    string
	arxivHTMLURL   string
}

// Option tweaks job construction.
type Option func(*Job)

// WithEndpoints overrides the external URLs. Test hook.
func WithEndpoints(huggingFace, arxivAPI, arxivHTML string) Option {
	return func(j *Job) {
		j.huggingFaceURL = huggingFace
		j.arxivAPIURL = arxivAPI
		j.arxivHTMLURL = arxivHTML
	}
}

// New builds the paper summarizer job.
func New(
	store storage.Store,
	sum summarizer.Summarizer,
	publisher *digest.Publisher,
	httpClient *http.Client,
	clock digest.Clock,
	lookbackDays int,
	logger *zap.Logger,
	opts ...Option,
) *Job {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	j := &Job{
		store:          store,
		summarizer:     sum,
		publisher:      publisher,
		httpClient:     httpClient,
		feedParser:     parser,
		clock:          clock,
		logger:         logger.Named(Name),
		lookbackDays:   lookbackDays,
		huggingFaceURL: defaultHuggingFaceURL,
		arxivAPIURL:    defaultArxivAPIURL,
		arxivHTMLURL:   defaultArxivHTMLURL,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name returns the job identifier.
func (j *Job) Name() string { return Name }

// Run executes one batch: collect new IDs, summarize each paper, record
// today's IDs, publish the digest. A failure for one paper degrades to an
// inline error entry.
func (j *Job) Run(ctx context.Context) error {
	ids, err := j.retrieveFromHuggingFace(ctx)
	if err != nil {
		return err
	}
	newIDs := subtract(ids, j.loadOldIDs(ctx))
	sort.Strings(newIDs)
	j.logger.Info("Collected new arXiv IDs", zap.Int("count", len(newIDs)))
	metrics.AddRecordsFetched(Name, len(newIDs))

	entries := make([]string, 0, len(newIDs))
	for _, id := range newIDs {
		entry, err := j.processPaper(ctx, id)
		if err != nil {
			j.logger.Error("Failed to process paper",
				zap.String("arxiv_id", id),
				zap.Error(err),
			)
			entry = fmt.Sprintf("Error processing paper %s: %v", id, err)
		}
		entries = append(entries, entry)
	}

	j.saveIDs(ctx, newIDs)
	j.publisher.PublishWith(ctx, Name, separator, entries)
	return nil
}

// retrieveFromHuggingFace scrapes yesterday's daily-papers page for
// arXiv IDs, deduplicated.
func (j *Job) retrieveFromHuggingFace(ctx context.Context) ([]string, error) {
	date := j.clock.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	pageURL := fmt.Sprintf("%s?date=%s", j.huggingFaceURL, url.QueryEscape(date))

	doc, err := j.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch daily papers page: %w", err)
	}

	seen := make(map[string]struct{})
	var ids []string
	doc.Find("article a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		m := arxivIDPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if _, dup := seen[m[1]]; dup {
			return
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	})
	return ids, nil
}

// loadOldIDs collects the IDs recorded over the lookback window. A
// missing or unreadable day file is logged and skipped.
func (j *Job) loadOldIDs(ctx context.Context) []string {
	var ids []string
	for i := 1; i <= j.lookbackDays; i++ {
		key := fmt.Sprintf(idFileKeyFormat, j.clock.Now().UTC().AddDate(0, 0, -i).Format("2006-01-02"))
		data, err := j.store.GetObject(ctx, key)
		if err != nil {
			j.logger.Debug("No ID file for day", zap.String("key", key), zap.Error(err))
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				ids = append(ids, line)
			}
		}
	}
	return ids
}

// saveIDs stores today's ID file. A write failure is logged only; the
// worst case is re-summarizing these papers tomorrow.
func (j *Job) saveIDs(ctx context.Context, ids []string) {
	key := fmt.Sprintf(idFileKeyFormat, j.clock.Now().UTC().Format("2006-01-02"))
	content := strings.Join(ids, "\n")
	if _, err := j.store.PutObject(ctx, key, "text/plain; charset=utf-8", strings.NewReader(content)); err != nil {
		j.logger.Error("Failed to store ID file", zap.String("key", key), zap.Error(err))
	}
}

// processPaper retrieves, summarizes, and post-processes one paper.
func (j *Job) processPaper(ctx context.Context, id string) (string, error) {
	paper, err := j.retrievePaperInfo(ctx, id)
	if err != nil {
		return "", err
	}

	instruction := fmt.Sprintf(systemInstructionFormat, paper.Title, paper.URL, paper.Abstract, paper.Contents)
	summary, err := j.summarizer.Summarize(ctx, instruction, questionContents)
	metrics.ObserveSummarizerCall(Name, err)
	if err != nil {
		return "", fmt.Errorf("summarize paper: %w", err)
	}

	summary = removeTeXBackticks(summary)
	summary = removeOuterMarkdownMarkers(summary)
	summary = removeOuterSingleQuotes(summary)
	return summary, nil
}

// retrievePaperInfo pulls title/abstract/link from the arXiv Atom API and
// the body text from the paper's HTML rendering.
func (j *Job) retrievePaperInfo(ctx context.Context, id string) (Paper, error) {
	feed, err := j.feedParser.ParseURLWithContext(fmt.Sprintf("%s?id_list=%s", j.arxivAPIURL, url.QueryEscape(id)), ctx)
	if err != nil {
		return Paper{}, fmt.Errorf("query arxiv api: %w", err)
	}
	if len(feed.Items) == 0 {
		return Paper{}, fmt.Errorf("arxiv api returned no entry for %s", id)
	}
	entry := feed.Items[0]

	contents, err := j.extractBodyText(ctx, id)
	if err != nil {
		return Paper{}, err
	}
	return Paper{
		ID:       id,
		Title:    strings.TrimSpace(entry.Title),
		Abstract: strings.TrimSpace(entry.Description),
		URL:      entry.Link,
		Contents: contents,
	}, nil
}

// extractBodyText fetches arxiv.org/html/{id} and reduces it to the
// likely paper body.
func (j *Job) extractBodyText(ctx context.Context, id string) (string, error) {
	pageURL := fmt.Sprintf("%s/%s", j.arxivHTMLURL, id)
	doc, err := j.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch paper html: %w", err)
	}

	body := doc.Find("body")
	body.Find("header, nav, footer, script, style").Remove()

	lines := blockLines(body)
	if len(lines) == 0 {
		// Some renderings defeat the element walk; let readability
		// take a shot at the main content before giving up.
		lines = j.readabilityLines(ctx, pageURL)
	}
	return filterBodyLines(lines), nil
}

// blockLines collects the text of block-level elements in order.
func blockLines(body *goquery.Selection) []string {
	var lines []string
	body.Find("p, h1, h2, h3, h4, h5, h6, li, figcaption").Each(func(_ int, s *goquery.Selection) {
		for _, line := range strings.Split(s.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	})
	return lines
}

// readabilityLines extracts the main content text via go-readability.
func (j *Job) readabilityLines(ctx context.Context, pageURL string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil
	}
	resp, err := j.httpClient.Do(req)
	if err != nil {
		j.logger.Warn("Readability fetch failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsedURL)
	if err != nil {
		j.logger.Warn("Readability parse failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	var lines []string
	for _, line := range strings.Split(article.TextContent, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// fetchDocument GETs a URL and parses it as HTML.
func (j *Job) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// subtract returns the elements of ids not present in old.
func subtract(ids []string, old []string) []string {
	oldSet := make(map[string]struct{}, len(old))
	for _, id := range old {
		oldSet[id] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, seen := oldSet[id]; !seen {
			out = append(out, id)
		}
	}
	return out
}
