// Package trending implements the GitHub Trending digest job.
package trending

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/digest"
	"github.com/asagiri-dev/choukan/internal/metrics"
)

// Name is the job identifier and digest key prefix.
const Name = "github_trending"

const defaultBaseURL = "https://github.com/trending"

// Repository is one trending repository entry scraped from the page.
type Repository struct {
	Name        string
	Description string
	Link        string
	Stars       int
}

// Job scrapes the daily trending page per configured language and
// publishes one combined digest.
type Job struct {
	languages []string
	publisher *digest.Publisher
	logger    *zap.Logger

	baseURL   string
	userAgent string
	timeout   time.Duration
}

// Option tweaks job construction.
type Option func(*Job)

// WithBaseURL points the scraper at a different trending page. Test hook.
func WithBaseURL(base string) Option {
	return func(j *Job) { j.baseURL = base }
}

// New builds the trending job.
func New(languages []string, publisher *digest.Publisher, userAgent string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Job {
	j := &Job{
		languages: languages,
		publisher: publisher,
		logger:    logger.Named(Name),
		baseURL:   defaultBaseURL,
		userAgent: userAgent,
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name returns the job identifier.
func (j *Job) Name() string { return Name }

// Run fetches the trending page for every configured language and
// publishes the combined digest. A failure in one language is logged and
// the loop continues with the next.
func (j *Job) Run(ctx context.Context) error {
	var entries []string
	for _, language := range j.languages {
		repos, err := j.retrieveRepositories(ctx, language)
		if err != nil {
			j.logger.Error("Failed to process language",
				zap.String("language", language),
				zap.Error(err),
			)
			continue
		}
		metrics.AddRecordsFetched(Name, len(repos))
		for _, repo := range repos {
			entries = append(entries, renderRepository(repo))
		}
	}
	j.publisher.Publish(ctx, Name, entries)
	return nil
}

// retrieveRepositories scrapes the daily trending page for one language.
func (j *Job) retrieveRepositories(_ context.Context, language string) ([]Repository, error) {
	c := colly.NewCollector()
	if j.userAgent != "" {
		c.UserAgent = j.userAgent
	}
	if j.timeout > 0 {
		c.SetRequestTimeout(j.timeout)
	}

	var repos []Repository
	c.OnHTML("article.Box-row", func(e *colly.HTMLElement) {
		name := squeezeWhitespace(e.ChildText("h2 a"))
		if name == "" {
			return
		}
		stars, err := parseStars(e.ChildText(`a[href$="/stargazers"]`))
		if err != nil {
			j.logger.Warn("Failed to parse star count",
				zap.String("repository", name),
				zap.Error(err),
			)
		}
		repos = append(repos, Repository{
			Name:        name,
			Description: strings.TrimSpace(e.ChildText("p")),
			Link:        fmt.Sprintf("https://github.com/%s", name),
			Stars:       stars,
		})
	})

	if err := c.Visit(j.trendingURL(language)); err != nil {
		return nil, fmt.Errorf("fetch trending page: %w", err)
	}
	return repos, nil
}

// trendingURL builds the daily trending page URL; an empty language means
// the unfiltered page.
func (j *Job) trendingURL(language string) string {
	if language == "" {
		return j.baseURL + "?since=daily"
	}
	return j.baseURL + "/" + url.PathEscape(language) + "?since=daily"
}

// squeezeWhitespace removes all spaces and newlines, turning the page's
// "owner /\n repo" heading into "owner/repo".
func squeezeWhitespace(s string) string {
	return strings.NewReplacer("\n", "", " ", "").Replace(strings.TrimSpace(s))
}

// parseStars converts a star count like "1,234" into an integer,
// stripping thousands separators.
func parseStars(s string) (int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse star count %q: %w", s, err)
	}
	return n, nil
}

// renderRepository maps a repository onto the fixed Markdown layout.
func renderRepository(repo Repository) string {
	description := repo.Description
	if description == "" {
		description = "No description"
	}
	return fmt.Sprintf("\n# %s\n\n**Score**: %d\n\n[View Link](%s)\n\n%s\n",
		repo.Name, repo.Stars, repo.Link, description)
}
