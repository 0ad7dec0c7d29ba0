package marketdata

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
)

// EdgarClient reads the SEC EDGAR Form 4 atom feed for a company.
// SEC rejects requests without a contact User-Agent.
type EdgarClient struct {
	baseURL string
	count   int
	timeout time.Duration
	client  *xhttp.Client
	opts    options
}

func NewEdgarClient(baseURL, userAgent string, count int, timeout time.Duration, opts ...Option) *EdgarClient {
	if count <= 0 {
		count = 80
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &EdgarClient{
		baseURL: baseURL,
		count:   count,
		timeout: timeout,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent(userAgent)),
		opts:    buildOptions(opts),
	}
}

// GetFilings returns Form 4 filings for cik, newest first as published by EDGAR.
func (e *EdgarClient) GetFilings(ctx context.Context, cik string) ([]models.Filing, error) {
	cik = strings.TrimSpace(cik)
	if cik == "" {
		return nil, fmt.Errorf("edgar: %w: empty cik", models.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.opts.request("edgar", "form4")
	var body []byte
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    e.baseURL,
		QueryParams: map[string][]string{
			"action": {"getcompany"},
			"CIK":    {cik},
			"type":   {"4"},
			"owner":  {"only"},
			"count":  {strconv.Itoa(e.count)},
			"output": {"atom"},
		},
	}, &body)
	if err != nil {
		e.opts.failure("edgar", "form4")
		return nil, fmt.Errorf("edgar form4: %w: %w", models.ErrDataUnavailable, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		e.opts.failure("edgar", "form4")
		return nil, fmt.Errorf("edgar parse: %w: %w", models.ErrDataUnavailable, err)
	}

	out := make([]models.Filing, 0, len(feed.Items))
	for _, it := range feed.Items {
		out = append(out, models.Filing{Title: it.Title, Link: it.Link, Published: itemTime(it)})
	}
	return out, nil
}

var _ repository.FilingSource = (*EdgarClient)(nil)
