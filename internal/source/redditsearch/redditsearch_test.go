package redditsearch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	"github.com/orgball2608/reddit-research-bot/internal/source/redditsearch"
	"github.com/orgball2608/reddit-research-bot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingJSON = `{"kind":"Listing","data":{"after":null,"children":[
	{"kind":"t3","data":{"id":"x1","title":"Acme review","selftext":"","subreddit":"gadgets","author":"bob","url":"https://example.com","permalink":"/r/gadgets/comments/x1/acme_review/","score":-3,"num_comments":7,"created_utc":1700000000.0}}
]}}`

func newAdapter(bases ...string) *redditsearch.Adapter {
	return redditsearch.New(redditsearch.Options{
		BaseURLs: bases,
		HTTP:     source.NewHTTPClient(5*time.Second, "test-agent"),
		Pager: source.Pager{
			Retry: retry.Config{Backoff: func(int, error) time.Duration { return 0 }},
			Clock: clockwork.NewFakeClock(),
		},
	})
}

func TestSearchFallsBackToSecondEndpointAndSticks(t *testing.T) {
	var blockedHits atomic.Int32
	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		blockedHits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer blocked.Close()

	var paths []string
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, `"acme"`, q.Get("q"))
		assert.Equal(t, "new", q.Get("sort"))
		assert.Equal(t, "year", q.Get("t"))
		assert.Equal(t, "link", q.Get("type"))
		_, _ = w.Write([]byte(listingJSON))
	}))
	defer working.Close()

	a := newAdapter(blocked.URL, working.URL)

	posts, err := a.Search(context.Background(), source.Query{Keyword: "acme"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, int32(1), blockedHits.Load())

	p := posts[0]
	assert.Equal(t, "x1", p.ID)
	assert.Equal(t, "gadgets", p.Community)
	assert.Equal(t, -3, p.Score)
	assert.Equal(t, 7, p.CommentCount)
	assert.Equal(t, "https://reddit.com/r/gadgets/comments/x1/acme_review/", p.Permalink)
	assert.Equal(t, redditsearch.Name, p.Source)

	_, err = a.Search(context.Background(), source.Query{Keyword: "acme", Community: "gadgets"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), blockedHits.Load(), "working endpoint should be tried first")
	assert.Equal(t, []string{"/search.json", "/r/gadgets/search.json"}, paths)
}

func TestSearchCommunityRestrictsToSubreddit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "on", r.URL.Query().Get("restrict_sr"))
		_, _ = w.Write([]byte(listingJSON))
	}))
	defer srv.Close()

	_, err := newAdapter(srv.URL).Search(context.Background(), source.Query{Keyword: "acme", Community: "india"})
	require.NoError(t, err)
}

func TestSearchAllEndpointsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	posts, err := newAdapter(srv.URL, srv.URL).Search(context.Background(), source.Query{Keyword: "acme"})
	assert.Error(t, err)
	assert.Empty(t, posts)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"acme"`, redditsearch.Quote("acme"))
	assert.Equal(t, `"acme corp"`, redditsearch.Quote(` "acme corp" `))
	assert.Equal(t, `"""`, redditsearch.Quote(`"`))
}
