package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
)

func rssDoc(title string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title>`, title)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>Headline %d</title><link>https://example.com/%d</link><pubDate>Mon, 0%d Jan 2024 10:00:00 GMT</pubDate></item>`, i, i, i%9+1)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

const form4Atom = `<?xml version="1.0" encoding="ISO-8859-1" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Form 4 filings</title>
<entry>
  <title>4 - Statement of changes in beneficial ownership of securities</title>
  <link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/320193/000032019324000001-index.htm"/>
  <updated>2024-03-01T18:30:00-05:00</updated>
</entry>
<entry>
  <title>4 - Statement of changes in beneficial ownership of securities</title>
  <link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/320193/000032019324000002-index.htm"/>
  <updated>2024-02-20T18:30:00-05:00</updated>
</entry>
</feed>`

func TestRSSNews_MergesFeedsAndCapsEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(rssDoc("Feed A", 5))) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(rssDoc("Feed B", 2))) })
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewRSSNews([]string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/broken"}, 3, time.Second)
	items, err := r.FetchNews(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 5, "3 from A (capped) + 2 from B")

	sources := map[string]int{}
	for _, it := range items {
		sources[it.Source]++
		assert.False(t, it.Published.IsZero())
	}
	assert.Equal(t, 3, sources["Feed A"])
	assert.Equal(t, 2, sources["Feed B"])
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].Published.After(items[i-1].Published), "newest first")
	}
}

func TestRSSNews_AllFeedsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not xml at all"))
	}))
	defer srv.Close()

	_, err := NewRSSNews([]string{srv.URL}, 10, time.Second).FetchNews(context.Background())
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

type staticNews struct {
	name  string
	items []models.NewsItem
	err   error
}

func (s staticNews) Name() string { return s.name }

func (s staticNews) FetchNews(context.Context) ([]models.NewsItem, error) { return s.items, s.err }

func TestMultiNews_ToleratesFailures(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMultiNews(nil,
		staticNews{name: "a", items: []models.NewsItem{{Title: "old", Published: t0}}},
		staticNews{name: "b", err: errors.New("down")},
		staticNews{name: "c", items: []models.NewsItem{{Title: "new", Published: t0.Add(time.Hour)}}},
	)
	items, err := m.FetchNews(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].Title)

	_, err = NewMultiNews(nil, staticNews{name: "b", err: models.ErrDataUnavailable}).FetchNews(context.Background())
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestEdgarClient_GetFilings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "320193", q.Get("CIK"))
		assert.Equal(t, "4", q.Get("type"))
		assert.Equal(t, "atom", q.Get("output"))
		assert.Equal(t, "80", q.Get("count"))
		assert.Equal(t, "monitor test@example.com", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(form4Atom))
	}))
	defer srv.Close()

	e := NewEdgarClient(srv.URL, "monitor test@example.com", 0, time.Second)
	filings, err := e.GetFilings(context.Background(), "320193")
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Contains(t, filings[0].Link, "000032019324000001")
	assert.Equal(t, 2024, filings[0].Published.Year())

	_, err = e.GetFilings(context.Background(), " ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestEdgarClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewEdgarClient(srv.URL, "ua", 10, time.Second).GetFilings(context.Background(), "1")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

var _ repository.NewsSource = staticNews{}
