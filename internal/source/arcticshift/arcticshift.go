package arcticshift

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
	Name            = "arcticshift"
	DefaultBaseURL  = "https://arctic-shift.photon-reddit.com"
	searchPath      = "/api/posts/search"
	defaultMaxPages = 5
	defaultLimit    = 100
)

type Options struct {
	BaseURL string
	HTTP    *source.HTTPClient
	Pager   source.Pager
	Logger  logger.Logger
}

// Adapter searches the Arctic Shift archive. Full-text search there requires a
// community filter, so only community-scoped queries are supported.
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
	log = log.WithComponent("ArcticShift")
	opts.Pager.Logger = log
	return &Adapter{baseURL: base, http: opts.HTTP, pager: opts.Pager, log: log}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() source.Capability { return source.CapCommunity }

type post struct {
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
	Data  []post `json:"data"`
	Error string `json:"error"`
}

func (a *Adapter) Search(ctx context.Context, q source.Query) ([]domain.Post, error) {
	if q.Global() {
		return nil, fmt.Errorf("%s: community is required", Name)
	}
	limit := q.Limit
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	label := fmt.Sprintf("%s r/%s %q", Name, q.Community, q.Keyword)
	posts, err := a.pager.Collect(ctx, label, limit, maxPages, func(ctx context.Context, cursor string) (source.Page, error) {
		params := url.Values{
			"query":     {q.Keyword},
			"subreddit": {q.Community},
			"limit":     {strconv.Itoa(limit)},
			"sort":      {"desc"},
		}
		if !q.After.IsZero() {
			params.Set("after", strconv.FormatInt(q.After.Unix(), 10))
		}
		if cursor != "" {
			params.Set("before", cursor)
		}
		return a.fetch(ctx, params)
	})
	a.log.Debug("Search finished", "community", q.Community, "keyword", q.Keyword, "posts", len(posts))
	return posts, err
}

func (a *Adapter) Probe(ctx context.Context) error {
	params := url.Values{
		"subreddit": {"technology"},
		"limit":     {"1"},
	}
	_, err := a.fetch(ctx, params)
	return err
}

func (a *Adapter) fetch(ctx context.Context, params url.Values) (source.Page, error) {
	var resp response
	if err := a.http.GetJSON(ctx, a.baseURL+searchPath, params, &resp); err != nil {
		return source.Page{}, err
	}
	if resp.Error != "" {
		return source.Page{}, fmt.Errorf("%w: %s", source.ErrMalformed, resp.Error)
	}

	page := source.Page{Posts: make([]domain.Post, 0, len(resp.Data))}
	for _, p := range resp.Data {
		page.Posts = append(page.Posts, p.toDomain())
	}
	if n := len(resp.Data); n > 0 {
		page.Cursor = strconv.FormatInt(int64(resp.Data[n-1].CreatedUTC), 10)
	}
	return page, nil
}

func (p post) toDomain() domain.Post {
	author := p.Author
	if author == "" {
		author = "[deleted]"
	}
	permalink := p.Permalink
	if permalink == "" && p.ID != "" {
		permalink = fmt.Sprintf("https://reddit.com/r/%s/comments/%s", p.Subreddit, p.ID)
	}
	return domain.Post{
		ID:           p.ID,
		Title:        p.Title,
		Body:         p.Selftext,
		Community:    p.Subreddit,
		Author:       author,
		URL:          p.URL,
		Permalink:    permalink,
		Score:        p.Score,
		CommentCount: p.NumComments,
		CreatedAt:    source.UnixTime(p.CreatedUTC),
		Source:       Name,
	}
}
