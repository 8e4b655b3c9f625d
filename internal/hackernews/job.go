// Package hackernews implements the Hacker News digest job.
package hackernews

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/digest"
	"github.com/asagiri-dev/choukan/internal/metrics"
	"github.com/asagiri-dev/choukan/internal/summarizer"
)

// Name is the job identifier and digest key prefix.
const Name = "hacker_news"

// Inline story text is only worth summarizing inside this band: below it
// the stripped text stands on its own, above it the call is uneconomical.
const (
	minSummarizableLen = 100
	maxSummarizableLen = 10000
)

const systemInstruction = `あなたは、Hacker Newsの最新の記事を要約するアシスタントです。
ユーザーからHacker Newsの記事のタイトルと本文を与えられるので、あなたはその記事を日本語で要約してください。
なお、要約以外の出力は不要です。`

const contentsFormat = "タイトル\n```\n%s\n```\n\n本文\n```\n%s\n```"

// Story is one surviving Hacker News record.
type Story struct {
	Title string
	Score int
	URL   string
	Text  string
}

// Job fetches the top stories, filters them by score, summarizes inline
// text where worthwhile, and publishes the digest.
type Job struct {
	client         *Client
	summarizer     summarizer.Summarizer
	publisher      *digest.Publisher
	topStories     int
	scoreThreshold int
	logger         *zap.Logger
}

// New builds the Hacker News job.
func New(client *Client, sum summarizer.Summarizer, publisher *digest.Publisher, topStories int, scoreThreshold int, logger *zap.Logger) *Job {
	return &Job{
		client:         client,
		summarizer:     sum,
		publisher:      publisher,
		topStories:     topStories,
		scoreThreshold: scoreThreshold,
		logger:         logger.Named(Name),
	}
}

// Name returns the job identifier.
func (j *Job) Name() string { return Name }

// Run executes one batch. When zero stories survive filtering, no digest
// is written for the run.
func (j *Job) Run(ctx context.Context) error {
	stories, err := j.topFilteredStories(ctx)
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		j.logger.Info("No suitable stories found; skipping digest")
		return nil
	}

	entries := make([]string, 0, len(stories))
	for _, story := range stories {
		entries = append(entries, renderStory(story))
	}
	j.publisher.Publish(ctx, Name, entries)
	return nil
}

// topFilteredStories fetches the first N top stories and drops those
// below the score threshold. A single item fetch failure is logged and
// skipped; a top-list failure fails the run.
func (j *Job) topFilteredStories(ctx context.Context) ([]Story, error) {
	ids, err := j.client.TopStories(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > j.topStories {
		ids = ids[:j.topStories]
	}
	metrics.AddRecordsFetched(Name, len(ids))

	var stories []Story
	for _, id := range ids {
		item, err := j.client.Item(ctx, id)
		if err != nil {
			j.logger.Warn("Failed to fetch story; skipping", zap.Int("id", id), zap.Error(err))
			continue
		}
		if item.Score < j.scoreThreshold {
			continue
		}

		story := Story{Title: item.Title, Score: item.Score, URL: item.URL}
		if item.Text != "" {
			story.Text = j.resolveText(ctx, item)
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// resolveText strips the inline HTML and summarizes it when the plain
// length falls inside the summarizable band. A summarizer failure
// degrades to the stripped text.
func (j *Job) resolveText(ctx context.Context, item Item) string {
	plain := stripHTML(item.Text)
	length := utf8.RuneCountInString(plain)
	if length <= minSummarizableLen || length >= maxSummarizableLen {
		return plain
	}

	summary, err := j.summarizer.Summarize(ctx, systemInstruction, fmt.Sprintf(contentsFormat, item.Title, plain))
	metrics.ObserveSummarizerCall(Name, err)
	if err != nil {
		j.logger.Warn("Summarization failed; keeping stripped text",
			zap.Int("id", item.ID),
			zap.Error(err),
		)
		return plain
	}
	return summary
}

// stripHTML reduces an HTML fragment to its plain text.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return doc.Text()
}

// renderStory maps a story onto the fixed Markdown layout: a link line
// when the story points elsewhere, its (summarized) text otherwise.
func renderStory(story Story) string {
	var urlOrText string
	switch {
	case story.URL != "":
		urlOrText = fmt.Sprintf("[View Link](%s)", story.URL)
	case story.Text != "":
		urlOrText = story.Text
	default:
		urlOrText = "No content"
	}
	return fmt.Sprintf("\n# %s\n\n**Score**: %d\n\n%s\n", story.Title, story.Score, urlOrText)
}
