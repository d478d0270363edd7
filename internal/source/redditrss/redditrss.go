package redditrss

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	"github.com/orgball2608/reddit-research-bot/internal/source/redditsearch"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
)

const (
	Name            = "redditrss"
	DefaultBaseURL  = "https://www.reddit.com"
	defaultMaxPages = 3
	defaultLimit    = 100
	fullNamePrefix  = "t3_"
)

type Options struct {
	BaseURL string
	HTTP    *source.HTTPClient
	Pager   source.Pager
	Logger  logger.Logger
}

// Adapter reads Reddit search results through the Atom feed endpoint, which is
// often served when the JSON listing is blocked. Feeds carry no vote or
// comment counts.
type Adapter struct {
	baseURL string
	http    *source.HTTPClient
	pager   source.Pager
	log     logger.Logger
	policy  *bluemonday.Policy
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
	log = log.WithComponent("RedditRSS")
	opts.Pager.Logger = log
	return &Adapter{
		baseURL: base,
		http:    opts.HTTP,
		pager:   opts.Pager,
		log:     log,
		policy:  bluemonday.StrictPolicy(),
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() source.Capability {
	return source.CapGlobal | source.CapCommunity
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

	path := "/search.rss"
	label := fmt.Sprintf("%s %q", Name, q.Keyword)
	if !q.Global() {
		path = "/r/" + url.PathEscape(q.Community) + "/search.rss"
		label = fmt.Sprintf("%s r/%s %q", Name, q.Community, q.Keyword)
	}

	return a.pager.Collect(ctx, label, limit, maxPages, func(ctx context.Context, cursor string) (source.Page, error) {
		return a.fetch(ctx, path, redditsearch.SearchParams(q, limit, cursor))
	})
}

func (a *Adapter) Probe(ctx context.Context) error {
	_, err := a.fetch(ctx, "/search.rss", url.Values{"q": {"test"}, "limit": {"1"}})
	return err
}

func (a *Adapter) fetch(ctx context.Context, path string, params url.Values) (source.Page, error) {
	body, err := a.http.Get(ctx, a.baseURL+path, params)
	if err != nil {
		return source.Page{}, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return source.Page{}, fmt.Errorf("%w: %s: %v", source.ErrMalformed, path, err)
	}

	page := source.Page{Posts: make([]domain.Post, 0, len(feed.Items))}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		page.Posts = append(page.Posts, a.toDomain(item))
	}
	if n := len(feed.Items); n > 0 && feed.Items[n-1] != nil {
		page.Cursor = feed.Items[n-1].GUID
	}
	return page, nil
}

func (a *Adapter) toDomain(item *gofeed.Item) domain.Post {
	p := domain.Post{
		ID:        strings.TrimPrefix(item.GUID, fullNamePrefix),
		Title:     item.Title,
		Body:      a.plainText(item.Content),
		Permalink: item.Link,
		URL:       item.Link,
		Source:    Name,
	}

	if len(item.Categories) > 0 {
		p.Community = strings.TrimPrefix(item.Categories[0], "r/")
	}

	switch {
	case item.Author != nil:
		p.Author = strings.TrimPrefix(item.Author.Name, "/u/")
	case len(item.Authors) > 0 && item.Authors[0] != nil:
		p.Author = strings.TrimPrefix(item.Authors[0].Name, "/u/")
	}

	switch {
	case item.PublishedParsed != nil:
		p.CreatedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		p.CreatedAt = item.UpdatedParsed.UTC()
	}
	return p
}

// plainText strips markup from an entry body and collapses whitespace.
func (a *Adapter) plainText(raw string) string {
	if raw == "" {
		return ""
	}
	clean := a.policy.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(clean)), " ")
}
