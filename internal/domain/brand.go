package domain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// BrandProfile describes what to search for and how to judge it.
type BrandProfile struct {
	Name           string   `json:"name" yaml:"name" validate:"required"`
	Description    string   `json:"description" yaml:"description"`
	Category       string   `json:"category" yaml:"category"`
	Keywords       []string `json:"keywords" yaml:"keywords" validate:"required,min=1,dive,required"`
	ProductTerms   []string `json:"product_terms" yaml:"product_terms"`
	Competitors    []string `json:"competitors" yaml:"competitors"`
	CommunityHints []string `json:"subreddit_hints" yaml:"subreddit_hints"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate rejects profiles that cannot drive a search.
func (b BrandProfile) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("invalid brand profile %q: %w", b.Name, err)
	}
	return nil
}

// HasHint reports whether community is one of the brand's hint communities.
func (b BrandProfile) HasHint(community string) bool {
	community = NormalizeCommunity(community)
	if community == "" {
		return false
	}
	for _, h := range b.CommunityHints {
		if strings.EqualFold(NormalizeCommunity(h), community) {
			return true
		}
	}
	return false
}

// NormalizeCommunity strips whitespace and an "r/" or "/r/" prefix, so
// "r/duolingo" and "duolingo" name the same community.
func NormalizeCommunity(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if len(name) >= 2 && strings.EqualFold(name[:2], "r/") {
		name = name[2:]
	}
	return strings.TrimSpace(name)
}

// CanonicalCompetitor returns the configured spelling of name, if it is a
// known competitor.
func (b BrandProfile) CanonicalCompetitor(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range b.Competitors {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}
