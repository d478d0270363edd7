package pullpush_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	"github.com/orgball2608/reddit-research-bot/internal/source/pullpush"
	"github.com/orgball2608/reddit-research-bot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(baseURL string) *pullpush.Adapter {
	return pullpush.New(pullpush.Options{
		BaseURL: baseURL,
		HTTP:    source.NewHTTPClient(5*time.Second, "test-agent"),
		Pager: source.Pager{
			Retry: retry.Config{Backoff: func(int, error) time.Duration { return 0 }},
			Clock: clockwork.NewFakeClock(),
		},
	})
}

func TestSearchMovesBeforeCursorBackOneSecond(t *testing.T) {
	var befores []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reddit/search/submission", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "acme", q.Get("q"))
		assert.Equal(t, "created_utc", q.Get("sort_type"))
		assert.Equal(t, "1", q.Get("size"))
		befores = append(befores, q.Get("before"))

		switch q.Get("before") {
		case "":
			_, _ = w.Write([]byte(`{"data":[{"id":"p1","title":"t","subreddit":"india","permalink":"/r/india/comments/p1/t/","created_utc":1700000100}]}`))
		case "1700000099":
			_, _ = w.Write([]byte(`{"data":[{"id":"p2","title":"t","subreddit":"india","created_utc":1700000050}]}`))
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer srv.Close()

	posts, err := newAdapter(srv.URL).Search(context.Background(), source.Query{Keyword: "acme", Limit: 1, MaxPages: 5})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, []string{"", "1700000099", "1700000049"}, befores)
	assert.Equal(t, "https://reddit.com/r/india/comments/p1/t/", posts[0].Permalink)
	assert.Equal(t, pullpush.Name, posts[0].Source)
}

func TestSearchRejectsCommunityScope(t *testing.T) {
	_, err := newAdapter("http://unused").Search(context.Background(), source.Query{Keyword: "acme", Community: "india"})
	assert.Error(t, err)
}

func TestSearchServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	posts, err := newAdapter(srv.URL).Search(context.Background(), source.Query{Keyword: "acme"})
	assert.Error(t, err)
	assert.Empty(t, posts)
}
