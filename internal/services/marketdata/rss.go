package marketdata

import (
	"bytes"
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

// RSSNews pulls headlines from a fixed list of RSS/Atom feeds.
type RSSNews struct {
	feeds      []string
	maxEntries int
	timeout    time.Duration
	client     *xhttp.Client
	opts       options
}

// NewRSSNews creates a feed reader. maxEntries caps items taken per feed.
func NewRSSNews(feeds []string, maxEntries int, timeout time.Duration, opts ...Option) *RSSNews {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &RSSNews{
		feeds:      feeds,
		maxEntries: maxEntries,
		timeout:    timeout,
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("market-monitor/1.0")),
		opts:       buildOptions(opts),
	}
}

func (r *RSSNews) Name() string { return "rss" }

// FetchNews reads every feed concurrently. A broken feed is skipped; the
// call only fails when no feed could be read at all.
func (r *RSSNews) FetchNews(ctx context.Context) ([]models.NewsItem, error) {
	if len(r.feeds) == 0 {
		return nil, nil
	}

	results := make([][]models.NewsItem, len(r.feeds))
	errs := make([]error, len(r.feeds))

	var wg sync.WaitGroup
	for i, feedURL := range r.feeds {
		wg.Add(1)
		go func(i int, feedURL string) {
			defer wg.Done()
			results[i], errs[i] = r.fetchFeed(ctx, feedURL)
		}(i, feedURL)
	}
	wg.Wait()

	var out []models.NewsItem
	failed := 0
	for i, items := range results {
		if errs[i] != nil {
			failed++
			r.opts.log.Warn("rss feed failed", logger.String("feed", r.feeds[i]), logger.Error(errs[i]))
			continue
		}
		out = append(out, items...)
	}
	if failed == len(r.feeds) {
		return nil, models.ErrDataUnavailable
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Published.After(out[j].Published) })
	return out, nil
}

func (r *RSSNews) fetchFeed(ctx context.Context, feedURL string) ([]models.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.opts.request("rss", "feed")
	var body []byte
	if err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: feedURL}, &body); err != nil {
		r.opts.failure("rss", "feed")
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		r.opts.failure("rss", "feed")
		return nil, err
	}

	source := feed.Title
	if source == "" {
		if u, err := url.Parse(feedURL); err == nil {
			source = u.Host
		}
	}

	n := len(feed.Items)
	if n > r.maxEntries {
		n = r.maxEntries
	}
	items := make([]models.NewsItem, 0, n)
	for _, it := range feed.Items[:n] {
		items = append(items, models.NewsItem{
			Source:    source,
			Title:     it.Title,
			Link:      it.Link,
			Published: itemTime(it),
		})
	}
	return items, nil
}

// itemTime returns the zero time when a feed entry carries no parseable date.
func itemTime(it *gofeed.Item) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC()
	default:
		return time.Time{}
	}
}

// MultiNews merges several news sources, tolerating individual failures.
type MultiNews struct {
	sources []repository.NewsSource
	log     *logger.Logger
}

func NewMultiNews(log *logger.Logger, sources ...repository.NewsSource) *MultiNews {
	if log == nil {
		log = logger.Nop()
	}
	return &MultiNews{sources: sources, log: log}
}

func (m *MultiNews) Name() string { return "multi" }

func (m *MultiNews) FetchNews(ctx context.Context) ([]models.NewsItem, error) {
	var out []models.NewsItem
	var lastErr error
	ok := 0
	for _, s := range m.sources {
		items, err := s.FetchNews(ctx)
		if err != nil {
			lastErr = err
			m.log.Warn("news source failed", logger.String("source", s.Name()), logger.Error(err))
			continue
		}
		ok++
		out = append(out, items...)
	}
	if ok == 0 && lastErr != nil {
		return nil, lastErr
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Published.After(out[j].Published) })
	return out, nil
}

var (
	_ repository.NewsSource = (*RSSNews)(nil)
	_ repository.NewsSource = (*MultiNews)(nil)
)
