package source_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	mock_source "github.com/orgball2608/reddit-research-bot/internal/source/mocks"
	apperrors "github.com/orgball2608/reddit-research-bot/pkg/errors"
	"github.com/orgball2608/reddit-research-bot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testPager() source.Pager {
	return source.Pager{
		Retry: retry.Config{
			MaxRetries: 2,
			Backoff:    func(int, error) time.Duration { return 0 },
			Retryable:  source.Retryable,
		},
		Clock: clockwork.NewFakeClock(),
	}
}

func posts(prefix string, n int) []domain.Post {
	out := make([]domain.Post, n)
	for i := range out {
		out[i] = domain.Post{ID: fmt.Sprintf("%s%d", prefix, i)}
	}
	return out
}

func TestPagerStopsOnShortPage(t *testing.T) {
	calls := 0
	got, err := testPager().Collect(context.Background(), "q", 5, 10, func(_ context.Context, cursor string) (source.Page, error) {
		calls++
		return source.Page{Posts: posts("a", 3), Cursor: "next"}, nil
	})

	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 1, calls)
}

func TestPagerStopsOnEmptyPage(t *testing.T) {
	calls := 0
	got, err := testPager().Collect(context.Background(), "q", 2, 10, func(_ context.Context, cursor string) (source.Page, error) {
		calls++
		if cursor == "" {
			return source.Page{Posts: posts("a", 2), Cursor: "c1"}, nil
		}
		return source.Page{}, nil
	})

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, calls)
}

func TestPagerStopsOnRepeatedCursor(t *testing.T) {
	var cursors []string
	_, err := testPager().Collect(context.Background(), "q", 2, 10, func(_ context.Context, cursor string) (source.Page, error) {
		cursors = append(cursors, cursor)
		return source.Page{Posts: posts(cursor, 2), Cursor: "same"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"", "same"}, cursors)
}

func TestPagerStopsOnMissingCursor(t *testing.T) {
	calls := 0
	_, err := testPager().Collect(context.Background(), "q", 2, 10, func(context.Context, string) (source.Page, error) {
		calls++
		return source.Page{Posts: posts("a", 2)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPagerHonoursMaxPages(t *testing.T) {
	calls := 0
	got, err := testPager().Collect(context.Background(), "q", 2, 3, func(context.Context, string) (source.Page, error) {
		calls++
		return source.Page{Posts: posts(fmt.Sprint(calls), 2), Cursor: fmt.Sprint(calls)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, got, 6)
}

func TestPagerReturnsPartialResultsOnFailure(t *testing.T) {
	calls := 0
	boom := apperrors.FromStatus(http.StatusBadGateway)
	got, err := testPager().Collect(context.Background(), "q", 2, 10, func(_ context.Context, cursor string) (source.Page, error) {
		calls++
		if cursor == "" {
			return source.Page{Posts: posts("a", 2), Cursor: "c1"}, nil
		}
		return source.Page{}, boom
	})

	require.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
	assert.Len(t, got, 2)
	assert.Equal(t, 1+3, calls)
}

func TestPagerDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	_, err := testPager().Collect(context.Background(), "q", 2, 10, func(context.Context, string) (source.Page, error) {
		calls++
		return source.Page{}, apperrors.FromStatus(http.StatusNotFound)
	})

	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestPagerDropsPostsWithoutID(t *testing.T) {
	got, err := testPager().Collect(context.Background(), "q", 5, 1, func(context.Context, string) (source.Page, error) {
		return source.Page{Posts: []domain.Post{{ID: "a"}, {ID: ""}, {ID: "b"}}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []domain.Post{{ID: "a"}, {ID: "b"}}, got)
}

func TestPagerStopsWhenCancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := testPager()
	p.Delay = time.Hour

	calls := 0
	got, err := p.Collect(ctx, "q", 2, 10, func(context.Context, string) (source.Page, error) {
		calls++
		cancel()
		return source.Page{Posts: posts("a", 2), Cursor: "c1"}, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, calls)
}

func TestProbeCacheRemembersOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock_source.NewMockSource(ctrl)
	src.EXPECT().Name().Return("arcticshift").AnyTimes()
	src.EXPECT().Probe(gomock.Any()).Return(errors.New("down")).Times(1)

	cache := source.NewProbeCache(8, time.Minute)
	assert.Error(t, cache.Check(context.Background(), src))
	assert.Error(t, cache.Check(context.Background(), src))

	cache.Forget("arcticshift")
	src.EXPECT().Probe(gomock.Any()).Return(nil).Times(1)
	assert.NoError(t, cache.Check(context.Background(), src))
	assert.NoError(t, cache.Check(context.Background(), src))
}

func TestProbeCacheSharesConcurrentProbes(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock_source.NewMockSource(ctrl)
	release := make(chan struct{})
	src.EXPECT().Name().Return("pullpush").AnyTimes()
	src.EXPECT().Probe(gomock.Any()).DoAndReturn(func(context.Context) error {
		<-release
		return errors.New("down")
	}).Times(1)

	cache := source.NewProbeCache(8, time.Minute)
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- cache.Check(context.Background(), src) }()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	assert.EqualError(t, <-results, "down")
	assert.EqualError(t, <-results, "down")
}

func TestProbeCacheSurvivesCancelledCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock_source.NewMockSource(ctrl)
	entered := make(chan struct{})
	release := make(chan struct{})
	probeErr := make(chan error, 1)
	src.EXPECT().Name().Return("redditsearch").AnyTimes()
	src.EXPECT().Probe(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		close(entered)
		<-release
		probeErr <- ctx.Err()
		return nil
	}).Times(1)

	cache := source.NewProbeCache(8, time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- cache.Check(firstCtx, src) }()
	<-entered

	second := make(chan error, 1)
	go func() { second <- cache.Check(context.Background(), src) }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.NoError(t, <-second)
	assert.NoError(t, <-probeErr)
	assert.NoError(t, cache.Check(context.Background(), src))
}

func TestHTTPClientClassifiesStatus(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Query().Get("mode") {
		case "limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "garbage":
			_, _ = w.Write([]byte("<html>"))
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	c := source.NewHTTPClient(5*time.Second, "research-bot/1.0")

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, "research-bot/1.0", gotUA)

	err := c.GetJSON(context.Background(), srv.URL, map[string][]string{"mode": {"limited"}}, &out)
	assert.True(t, apperrors.IsRateLimited(err))

	err = c.GetJSON(context.Background(), srv.URL, map[string][]string{"mode": {"garbage"}}, &out)
	assert.ErrorIs(t, err, source.ErrMalformed)
}

func TestCapability(t *testing.T) {
	both := source.CapGlobal | source.CapCommunity
	assert.True(t, both.Has(source.CapGlobal))
	assert.True(t, both.Has(source.CapCommunity))
	assert.False(t, source.CapGlobal.Has(source.CapCommunity))
	assert.Equal(t, "global+community", both.String())
}

func TestUnixTime(t *testing.T) {
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), source.UnixTime(1700000000))
}
