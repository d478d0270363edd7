package analyzerimpl

import (
	"strings"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/pkg/formatter"
)

const (
	defaultTheme     = "general discussion"
	summaryMaxLength = 100
)

var (
	positiveWords = []string{
		"love", "great", "amazing", "best", "awesome", "excellent",
		"recommend", "good", "fantastic", "happy", "satisfied", "smooth",
	}
	negativeWords = []string{
		"hate", "worst", "terrible", "bad", "awful", "scam", "fraud",
		"disappointed", "horrible", "poor", "waste", "trash", "bug",
		"crash", "slow", "stuck", "useless",
	}
)

// KeywordJudge decides a post without any model. A post is relevant when it
// mentions a product term or sits in one of the brand's hint communities.
func KeywordJudge(post domain.Post, brand domain.BrandProfile) domain.Judgment {
	text := strings.ToLower(post.Text())

	relevant := brand.HasHint(post.Community)
	for _, term := range brand.ProductTerms {
		if relevant {
			break
		}
		term = strings.ToLower(strings.TrimSpace(term))
		relevant = term != "" && strings.Contains(text, term)
	}
	if !relevant {
		return domain.NotRelevant{ID: post.ID, Resolution: domain.ResolutionKeyword}
	}

	return domain.Relevant{
		ID:                 post.ID,
		Sentiment:          keywordSentiment(text),
		Theme:              defaultTheme,
		Summary:            formatter.Truncate(post.Title, summaryMaxLength),
		CompetitorMentions: mentionedCompetitors(text, brand.Competitors),
		Resolution:         domain.ResolutionKeyword,
	}
}

func keywordSentiment(text string) domain.Sentiment {
	pos, neg := countWords(text, positiveWords), countWords(text, negativeWords)
	switch {
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func countWords(text string, words []string) int {
	n := 0
	for _, w := range words {
		n += strings.Count(text, w)
	}
	return n
}

// mentionedCompetitors returns configured competitor names found in the
// lowercased text, in configured order.
func mentionedCompetitors(text string, competitors []string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, c := range competitors {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" || seen[key] {
			continue
		}
		if strings.Contains(text, key) {
			seen[key] = true
			found = append(found, c)
		}
	}
	return found
}
