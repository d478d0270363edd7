package analyzerimpl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/pkg/formatter"
)

var (
	ErrMissingRelevance = errors.New("verdict has no relevant field")
	ErrNoVerdicts       = errors.New("batch response has no verdicts")
)

// verdict is one judgment as a model writes it.
type verdict struct {
	ID                 flexID   `json:"id"`
	PostID             flexID   `json:"post_id"`
	Relevant           *bool    `json:"relevant"`
	Sentiment          string   `json:"sentiment"`
	Theme              string   `json:"theme"`
	Summary            string   `json:"summary"`
	CompetitorMentions flexList `json:"competitor_mentions"`
}

func (v verdict) key() string {
	if v.ID != "" {
		return string(v.ID)
	}
	return string(v.PostID)
}

// flexID accepts a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", data)
	}
	*f = flexID(n.String())
	return nil
}

// flexList accepts a JSON array of strings or one comma separated string.
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}

// parseSingle reads a one-post answer.
func parseSingle(raw string, post domain.Post, brand domain.BrandProfile) (domain.Judgment, error) {
	v, err := formatter.ParseJSON[verdict](raw)
	if err != nil {
		return nil, err
	}
	if v.Relevant == nil {
		return nil, ErrMissingRelevance
	}
	return toJudgment(v, post, brand, domain.ResolutionSingle), nil
}

// parseBatch reads a batch answer and correlates verdicts with posts by id
// only; answer order is never trusted. Verdicts that match nothing, repeat an
// earlier match or lack a relevance flag are dropped, leaving those posts
// absent from the result.
func parseBatch(raw string, posts []domain.Post, brand domain.BrandProfile) (map[string]domain.Judgment, error) {
	verdicts, err := decodeVerdicts(raw)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	out := make(map[string]domain.Judgment, len(posts))
	for _, v := range verdicts {
		if v.Relevant == nil {
			continue
		}
		post, ok := byID[v.key()]
		if !ok {
			continue
		}
		if _, dup := out[post.ID]; dup {
			continue
		}
		out[post.ID] = toJudgment(v, post, brand, domain.ResolutionBatch)
	}
	return out, nil
}

// decodeVerdicts accepts a bare array, an object wrapping one, or an array
// surrounded by prose.
func decodeVerdicts(raw string) ([]verdict, error) {
	if arr, err := formatter.ParseJSON[[]verdict](raw); err == nil {
		return nonEmpty(arr)
	}

	if obj, err := formatter.ParseJSON[map[string]json.RawMessage](raw); err == nil {
		for _, key := range []string{"results", "posts", "verdicts", "data"} {
			if msg, ok := obj[key]; ok {
				var arr []verdict
				if err := json.Unmarshal(msg, &arr); err == nil {
					return nonEmpty(arr)
				}
			}
		}
	}

	body := formatter.StripCodeFence(raw)
	start, end := strings.Index(body, "["), strings.LastIndex(body, "]")
	if start >= 0 && end > start {
		var arr []verdict
		if err := json.Unmarshal([]byte(body[start:end+1]), &arr); err == nil {
			return nonEmpty(arr)
		}
	}
	return nil, fmt.Errorf("%w: %s", formatter.ErrNoJSON, formatter.Truncate(raw, 200))
}

func nonEmpty(arr []verdict) ([]verdict, error) {
	if len(arr) == 0 {
		return nil, ErrNoVerdicts
	}
	return arr, nil
}

func toJudgment(v verdict, post domain.Post, brand domain.BrandProfile, res domain.Resolution) domain.Judgment {
	if v.Relevant == nil || !*v.Relevant {
		return domain.NotRelevant{ID: post.ID, Resolution: res}
	}

	theme := strings.TrimSpace(v.Theme)
	if theme == "" {
		theme = defaultTheme
	}
	summary := strings.TrimSpace(v.Summary)
	if summary == "" {
		summary = formatter.Truncate(post.Title, summaryMaxLength)
	}

	return domain.Relevant{
		ID:                 post.ID,
		Sentiment:          domain.NormalizeSentiment(v.Sentiment),
		Theme:              theme,
		Summary:            summary,
		CompetitorMentions: knownCompetitors(v.CompetitorMentions, brand),
		Resolution:         res,
	}
}

// knownCompetitors keeps only configured competitors, in their configured
// spelling, once each.
func knownCompetitors(mentions []string, brand domain.BrandProfile) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range mentions {
		name, ok := brand.CanonicalCompetitor(m)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
