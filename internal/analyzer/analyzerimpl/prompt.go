package analyzerimpl

import (
	"fmt"
	"strings"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/pkg/formatter"
)

const (
	singleTitleMax = 500
	singleBodyMax  = 1000
	batchTitleMax  = 300
	batchBodyMax   = 500

	batchTokensPerPost = 120
	batchTokensBase    = 200
)

const commonWordWarning = `The brand name may also be a common word (e.g. "Sahi" means "correct" in Hindi). ` +
	`Only mark a post as relevant if it is actually discussing the brand or its product.`

func brandHeader(b *strings.Builder, brand domain.BrandProfile) {
	category := brand.Category
	if category == "" {
		category = "general"
	}
	fmt.Fprintf(b, "Brand: %s\n", brand.Name)
	fmt.Fprintf(b, "Description: %s\n", brand.Description)
	fmt.Fprintf(b, "Category: %s\n", category)
}

func competitorLine(brand domain.BrandProfile) string {
	if len(brand.Competitors) == 0 {
		return "Known competitors: none known"
	}
	return "Known competitors: " + strings.Join(brand.Competitors, ", ")
}

// SinglePrompt asks for relevance and sentiment of one post in one call.
func SinglePrompt(post domain.Post, brand domain.BrandProfile) string {
	var b strings.Builder
	b.WriteString("You are analyzing a Reddit post to determine if it's about a specific brand, and if so, what the sentiment is.\n\n")
	brandHeader(&b, brand)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Reddit post title: %s\n", formatter.Truncate(post.Title, singleTitleMax))
	fmt.Fprintf(&b, "Reddit post body: %s\n", formatter.Truncate(post.Body, singleBodyMax))
	fmt.Fprintf(&b, "Subreddit: r/%s\n", post.Community)
	fmt.Fprintf(&b, "Upvotes: %d\n\n", post.Score)
	b.WriteString(commonWordWarning + "\n\n")
	b.WriteString(competitorLine(brand) + "\n\n")
	b.WriteString("Respond with ONLY a JSON object:\n")
	b.WriteString(`- If the post is NOT about the brand: {"relevant": false}` + "\n")
	b.WriteString(`- If the post IS about the brand: {"relevant": true, "sentiment": "positive", "theme": "great sunscreen formula", ` +
		`"summary": "User recommends the brand's sunscreen for oily skin.", "competitor_mentions": ["Minimalist"]}`)
	return b.String()
}

// BatchPrompt asks for one judgment per post, correlated by post id.
func BatchPrompt(posts []domain.Post, brand domain.BrandProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing %d Reddit posts to determine which are about a specific brand, and the sentiment of each relevant one.\n\n", len(posts))
	brandHeader(&b, brand)
	b.WriteString(competitorLine(brand) + "\n\n")
	b.WriteString(commonWordWarning + "\n\n")

	for i, p := range posts {
		fmt.Fprintf(&b, "--- Post %d ---\n", i+1)
		fmt.Fprintf(&b, "id: %s\n", p.ID)
		fmt.Fprintf(&b, "title: %s\n", formatter.Truncate(p.Title, batchTitleMax))
		fmt.Fprintf(&b, "body: %s\n", formatter.Truncate(p.Body, batchBodyMax))
		fmt.Fprintf(&b, "subreddit: r/%s\n", p.Community)
		fmt.Fprintf(&b, "upvotes: %d\n\n", p.Score)
	}

	fmt.Fprintf(&b, "Respond with ONLY a JSON array containing exactly %d objects, one per post, each carrying the post's id:\n", len(posts))
	b.WriteString(`- Not about the brand: {"id": "abc123", "relevant": false}` + "\n")
	b.WriteString(`- About the brand: {"id": "abc123", "relevant": true, "sentiment": "positive|negative|neutral", ` +
		`"theme": "short theme", "summary": "one sentence", "competitor_mentions": []}`)
	return b.String()
}

// BatchMaxTokens sizes the completion budget for a batch of n posts.
func BatchMaxTokens(n int) int {
	return batchTokensPerPost*n + batchTokensBase
}
