package pullpush

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
)

const (
	Name            = "pullpush"
	DefaultBaseURL  = "https://api.pullpush.io"
	searchPath      = "/reddit/search/submission"
	defaultMaxPages = 5
	defaultLimit    = 100
)

type Options struct {
	BaseURL string
	HTTP    *source.HTTPClient
	Pager   source.Pager
	Logger  logger.Logger
}

// Adapter queries the Pullpush mirror of the Pushshift archive. It is the
// least reliable upstream and only supports global search.
type Adapter struct {
	baseURL string
	http    *source.HTTPClient
	pager   source.Pager
	log     logger.Logger
}

var _ source.Source = (*Adapter)(nil)

func New(opts Options) *Adapter {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("Pullpush")
	opts.Pager.Logger = log
	return &Adapter{baseURL: base, http: opts.HTTP, pager: opts.Pager, log: log}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() source.Capability { return source.CapGlobal }

type submission struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

type response struct {
	Data []submission `json:"data"`
}

func (a *Adapter) Search(ctx context.Context, q source.Query) ([]domain.Post, error) {
	if !q.Global() {
		return nil, fmt.Errorf("%s: community search is not supported", Name)
	}
	limit := q.Limit
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	label := fmt.Sprintf("%s %q", Name, q.Keyword)
	return a.pager.Collect(ctx, label, limit, maxPages, func(ctx context.Context, cursor string) (source.Page, error) {
		params := url.Values{
			"q":         {q.Keyword},
			"size":      {strconv.Itoa(limit)},
			"sort":      {"desc"},
			"sort_type": {"created_utc"},
		}
		if !q.After.IsZero() {
			params.Set("after", strconv.FormatInt(q.After.Unix(), 10))
		}
		if cursor != "" {
			params.Set("before", cursor)
		}
		return a.fetch(ctx, params)
	})
}

func (a *Adapter) Probe(ctx context.Context) error {
	_, err := a.fetch(ctx, url.Values{"q": {"test"}, "size": {"1"}})
	return err
}

func (a *Adapter) fetch(ctx context.Context, params url.Values) (source.Page, error) {
	var resp response
	if err := a.http.GetJSON(ctx, a.baseURL+searchPath, params, &resp); err != nil {
		return source.Page{}, err
	}

	page := source.Page{Posts: make([]domain.Post, 0, len(resp.Data))}
	for _, s := range resp.Data {
		page.Posts = append(page.Posts, s.toDomain())
	}
	// The next page ends one second before the oldest post seen.
	if n := len(resp.Data); n > 0 {
		page.Cursor = strconv.FormatInt(int64(resp.Data[n-1].CreatedUTC)-1, 10)
	}
	return page, nil
}

func (s submission) toDomain() domain.Post {
	author := s.Author
	if author == "" {
		author = "[deleted]"
	}
	return domain.Post{
		ID:           s.ID,
		Title:        s.Title,
		Body:         s.Selftext,
		Community:    s.Subreddit,
		Author:       author,
		URL:          s.URL,
		Permalink:    "https://reddit.com" + s.Permalink,
		Score:        s.Score,
		CommentCount: s.NumComments,
		CreatedAt:    source.UnixTime(s.CreatedUTC),
		Source:       Name,
	}
}
