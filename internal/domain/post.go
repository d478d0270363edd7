package domain

import (
	"strings"
	"time"
)

type Post struct {
	ID           string    // Upstream submission id, the dedup key
	Title        string    // Submission title
	Body         string    // Self text, may be empty
	Community    string    // Subreddit without the r/ prefix
	Author       string    // Author username
	URL          string    // Link target
	Permalink    string    // Canonical discussion URL
	Score        int       // Net votes, may be negative
	CommentCount int       // Number of comments
	CreatedAt    time.Time // Submission time in UTC
	Source       string    // Name of the source that fetched it
}

// CreatedDate is the YYYY-MM-DD bucket used in reports.
func (p Post) CreatedDate() string {
	return p.CreatedAt.UTC().Format(time.DateOnly)
}

// Text joins title and body for keyword matching.
func (p Post) Text() string {
	if p.Body == "" {
		return p.Title
	}
	return p.Title + " " + p.Body
}

// Link prefers the discussion permalink over the outbound URL.
func (p Post) Link() string {
	if p.Permalink != "" {
		if strings.HasPrefix(p.Permalink, "/") {
			return "https://www.reddit.com" + p.Permalink
		}
		return p.Permalink
	}
	return p.URL
}
