package redditsearch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
)

const (
	Name            = "redditsearch"
	defaultMaxPages = 3
	defaultLimit    = 100
)

// DefaultBaseURLs are tried in order. The one that answered last is tried
// first on the next request.
var DefaultBaseURLs = []string{
	"https://www.reddit.com",
	"https://old.reddit.com",
}

type Options struct {
	BaseURLs []string
	HTTP     *source.HTTPClient
	Pager    source.Pager
	Logger   logger.Logger
}

// Adapter uses Reddit's own search.json listing.
type Adapter struct {
	bases   []string
	working atomic.Int32
	http    *source.HTTPClient
	pager   source.Pager
	log     logger.Logger
}

var _ source.Source = (*Adapter)(nil)

func New(opts Options) *Adapter {
	bases := make([]string, 0, len(opts.BaseURLs))
	for _, b := range opts.BaseURLs {
		bases = append(bases, strings.TrimRight(b, "/"))
	}
	if len(bases) == 0 {
		bases = DefaultBaseURLs
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("RedditSearch")
	opts.Pager.Logger = log
	return &Adapter{bases: bases, http: opts.HTTP, pager: opts.Pager, log: log}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() source.Capability {
	return source.CapGlobal | source.CapCommunity
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data child `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type child struct {
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

func (a *Adapter) Search(ctx context.Context, q source.Query) ([]domain.Post, error) {
	limit := q.Limit
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	path := "/search.json"
	label := fmt.Sprintf("%s %q", Name, q.Keyword)
	if !q.Global() {
		path = "/r/" + url.PathEscape(q.Community) + "/search.json"
		label = fmt.Sprintf("%s r/%s %q", Name, q.Community, q.Keyword)
	}

	return a.pager.Collect(ctx, label, limit, maxPages, func(ctx context.Context, cursor string) (source.Page, error) {
		params := SearchParams(q, limit, cursor)
		return a.fetch(ctx, path, params)
	})
}

// SearchParams builds the listing query shared by the JSON and feed endpoints.
// Keywords are quoted for exact phrase matching.
func SearchParams(q source.Query, limit int, cursor string) url.Values {
	params := url.Values{
		"q":     {Quote(q.Keyword)},
		"sort":  {"new"},
		"t":     {"year"},
		"limit": {strconv.Itoa(limit)},
		"type":  {"link"},
	}
	if !q.Global() {
		params.Set("restrict_sr", "on")
	}
	if cursor != "" {
		params.Set("after", cursor)
	}
	return params
}

// Quote wraps keyword in double quotes unless it already is.
func Quote(keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if strings.HasPrefix(keyword, `"`) && strings.HasSuffix(keyword, `"`) && len(keyword) > 1 {
		return keyword
	}
	return `"` + keyword + `"`
}

func (a *Adapter) Probe(ctx context.Context) error {
	params := url.Values{"q": {"test"}, "limit": {"1"}, "type": {"link"}}
	_, err := a.fetch(ctx, "/search.json", params)
	return err
}

// fetch tries each base URL, starting from the last one that worked.
func (a *Adapter) fetch(ctx context.Context, path string, params url.Values) (source.Page, error) {
	start := int(a.working.Load())
	var lastErr error
	for i := range a.bases {
		idx := (start + i) % len(a.bases)
		var l listing
		err := a.http.GetJSON(ctx, a.bases[idx]+path, params, &l)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			a.log.Warn("Endpoint failed, trying next", "base", a.bases[idx], "error", err)
			continue
		}
		a.working.Store(int32(idx))
		return l.toPage(), nil
	}
	return source.Page{}, lastErr
}

func (l listing) toPage() source.Page {
	page := source.Page{
		Posts:  make([]domain.Post, 0, len(l.Data.Children)),
		Cursor: l.Data.After,
	}
	for _, c := range l.Data.Children {
		page.Posts = append(page.Posts, c.Data.toDomain())
	}
	return page
}

func (c child) toDomain() domain.Post {
	return domain.Post{
		ID:           c.ID,
		Title:        c.Title,
		Body:         c.Selftext,
		Community:    c.Subreddit,
		Author:       c.Author,
		URL:          c.URL,
		Permalink:    "https://reddit.com" + c.Permalink,
		Score:        c.Score,
		CommentCount: c.NumComments,
		CreatedAt:    source.UnixTime(c.CreatedUTC),
		Source:       Name,
	}
}
