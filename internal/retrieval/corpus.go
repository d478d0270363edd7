package retrieval

import (
	"sort"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
)

// Corpus is the deduplicated set of posts for one run. The first post seen
// for an ID is kept and later ones are ignored.
type Corpus struct {
	posts map[string]domain.Post
}

func NewCorpus() *Corpus {
	return &Corpus{posts: make(map[string]domain.Post)}
}

// Add inserts p and reports whether it was new. Posts without an ID are
// rejected.
func (c *Corpus) Add(p domain.Post) bool {
	if p.ID == "" {
		return false
	}
	if _, ok := c.posts[p.ID]; ok {
		return false
	}
	c.posts[p.ID] = p
	return true
}

// AddAll inserts posts in order and returns how many were new.
func (c *Corpus) AddAll(posts []domain.Post) int {
	added := 0
	for _, p := range posts {
		if c.Add(p) {
			added++
		}
	}
	return added
}

func (c *Corpus) Len() int { return len(c.posts) }

func (c *Corpus) Get(id string) (domain.Post, bool) {
	p, ok := c.posts[id]
	return p, ok
}

// Since returns posts created at or after cutoff, newest first. Equal
// timestamps are ordered by ID so the output is stable.
func (c *Corpus) Since(cutoff time.Time) []domain.Post {
	out := make([]domain.Post, 0, len(c.posts))
	for _, p := range c.posts {
		if cutoff.IsZero() || !p.CreatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
