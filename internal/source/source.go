package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
)

// ErrMalformed marks an upstream page that could not be decoded.
var ErrMalformed = errors.New("malformed upstream response")

// DefaultCommunities are searched when the brand hints alone found nothing.
var DefaultCommunities = []string{
	"india", "AskIndia", "indiasocial",
	"IndianGaming", "IndianConsumer", "IndiaTech",
	"gadgets", "technology", "BuyItForLife",
	"IndianSkincareAddicts", "IndianFashionAddicts",
	"IndiaInvestments", "CreditCardsIndia",
	"Fitness", "SkincareAddiction",
}

type Capability uint8

const (
	CapGlobal Capability = 1 << iota
	CapCommunity
)

func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	var parts []string
	if c.Has(CapGlobal) {
		parts = append(parts, "global")
	}
	if c.Has(CapCommunity) {
		parts = append(parts, "community")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

type Query struct {
	Keyword string
	// Community scopes the search. Empty means a global search.
	Community string
	// After is the inclusive lower bound on creation time. Zero means unbounded.
	After    time.Time
	Limit    int
	MaxPages int
}

// Global reports whether the query has no community scope.
func (q Query) Global() bool { return q.Community == "" }

//go:generate go run go.uber.org/mock/mockgen -source=source.go -destination=mocks/mock.go
type Source interface {
	// Name is a stable identifier used in logs, diagnostics and metrics.
	Name() string
	Capabilities() Capability
	// Search pages through results for q. On a page failure it returns the
	// posts collected so far together with the error.
	Search(ctx context.Context, q Query) ([]domain.Post, error)
	// Probe issues one cheap request to check the upstream is reachable.
	Probe(ctx context.Context) error
}

// UnixTime converts a float epoch as returned by reddit-style APIs.
func UnixTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
