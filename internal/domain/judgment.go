package domain

import "strings"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

var sentimentAliases = map[string]Sentiment{
	"positive": SentimentPositive,
	"pos":      SentimentPositive,
	"good":     SentimentPositive,
	"negative": SentimentNegative,
	"neg":      SentimentNegative,
	"bad":      SentimentNegative,
	"neutral":  SentimentNeutral,
	"mixed":    SentimentNeutral,
}

// NormalizeSentiment maps any model output onto the three known values.
// Unknown input is neutral.
func NormalizeSentiment(raw string) Sentiment {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, " \t\n\"'.!,;:")
	if v, ok := sentimentAliases[s]; ok {
		return v
	}
	return SentimentNeutral
}

// Resolution records which rung of the classification ladder decided a post.
type Resolution string

const (
	ResolutionBatch   Resolution = "batch"
	ResolutionSingle  Resolution = "single"
	ResolutionKeyword Resolution = "keyword"
)

// Judgment is the decision for one post. It is either Relevant or NotRelevant.
type Judgment interface {
	PostID() string
	ResolvedBy() Resolution
	isJudgment()
}

type Relevant struct {
	ID                 string
	Sentiment          Sentiment
	Theme              string
	Summary            string
	CompetitorMentions []string
	Resolution         Resolution
}

func (r Relevant) PostID() string         { return r.ID }
func (r Relevant) ResolvedBy() Resolution { return r.Resolution }
func (Relevant) isJudgment()              {}

type NotRelevant struct {
	ID         string
	Resolution Resolution
}

func (n NotRelevant) PostID() string         { return n.ID }
func (n NotRelevant) ResolvedBy() Resolution { return n.Resolution }
func (NotRelevant) isJudgment()              {}

// Finding pairs a relevant post with its analysis.
type Finding struct {
	Post     Post
	Analysis Relevant
}
