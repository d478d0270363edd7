package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/pkg/formatter"
	"github.com/samber/lo"
)

const topN = 5

type Count struct {
	Name  string
	Count int
}

// Week holds sentiment counts for one ISO week.
type Week struct {
	Label    string // 2024-W18
	Start    time.Time
	Positive int
	Negative int
	Neutral  int
}

type Summary struct {
	Brand        string
	Fetched      int
	LookbackDays int

	Relevant int
	Positive int
	Negative int
	Neutral  int

	TopCommunities []Count
	TopThemes      []Count
	Competitors    []Count
	Trend          []Week
	Resolutions    map[domain.Resolution]int
}

// Summarize aggregates findings into the numbers shown to the user.
func Summarize(brand string, fetched, lookbackDays int, findings []domain.Finding) Summary {
	s := Summary{
		Brand:        brand,
		Fetched:      fetched,
		LookbackDays: lookbackDays,
		Relevant:     len(findings),
		Resolutions:  make(map[domain.Resolution]int),
	}

	for _, f := range findings {
		switch f.Analysis.Sentiment {
		case domain.SentimentPositive:
			s.Positive++
		case domain.SentimentNegative:
			s.Negative++
		default:
			s.Neutral++
		}
		s.Resolutions[f.Analysis.Resolution]++
	}

	s.TopCommunities = top(lo.CountValuesBy(findings, func(f domain.Finding) string {
		return f.Post.Community
	}), topN)
	s.TopThemes = top(lo.CountValuesBy(findings, func(f domain.Finding) string {
		return f.Analysis.Theme
	}), topN)
	s.Competitors = top(lo.CountValues(lo.FlatMap(findings, func(f domain.Finding, _ int) []string {
		return f.Analysis.CompetitorMentions
	})), 0)
	s.Trend = weeklyTrend(findings)
	return s
}

// top sorts counts descending, ties by name, keeping at most n (all when n is 0).
func top(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for name, c := range counts {
		if name == "" {
			continue
		}
		out = append(out, Count{Name: name, Count: c})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func weeklyTrend(findings []domain.Finding) []Week {
	weeks := make(map[string]*Week)
	for _, f := range findings {
		if f.Post.CreatedAt.IsZero() {
			continue
		}
		t := f.Post.CreatedAt.UTC()
		year, wk := t.ISOWeek()
		label := fmt.Sprintf("%d-W%02d", year, wk)
		w, ok := weeks[label]
		if !ok {
			w = &Week{Label: label, Start: weekStart(t)}
			weeks[label] = w
		}
		switch f.Analysis.Sentiment {
		case domain.SentimentPositive:
			w.Positive++
		case domain.SentimentNegative:
			w.Negative++
		default:
			w.Neutral++
		}
	}

	out := make([]Week, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, *w)
	}
	slices.SortFunc(out, func(a, b Week) int { return a.Start.Compare(b.Start) })
	return out
}

// weekStart returns the Monday 00:00 UTC of t's week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Text renders the summary as a plain chat message.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research Complete: %s\n", s.Brand)
	b.WriteString(strings.Repeat("=", 30) + "\n\n")

	fmt.Fprintf(&b, "Total relevant posts: %s of %s fetched", formatter.FormatNumber(s.Relevant), formatter.FormatNumber(s.Fetched))
	if s.LookbackDays > 0 {
		fmt.Fprintf(&b, " (last %d days)", s.LookbackDays)
	}
	b.WriteString("\n\n")

	b.WriteString("Sentiment breakdown:\n")
	fmt.Fprintf(&b, "  Positive: %d (%s)\n", s.Positive, formatter.Percent(s.Positive, s.Relevant))
	fmt.Fprintf(&b, "  Negative: %d (%s)\n", s.Negative, formatter.Percent(s.Negative, s.Relevant))
	fmt.Fprintf(&b, "  Neutral: %d (%s)\n", s.Neutral, formatter.Percent(s.Neutral, s.Relevant))

	if len(s.TopCommunities) > 0 {
		b.WriteString("\nTop subreddits:\n")
		for _, c := range s.TopCommunities {
			fmt.Fprintf(&b, "  r/%s: %d posts\n", c.Name, c.Count)
		}
	}
	if len(s.TopThemes) > 0 {
		b.WriteString("\nTop themes:\n")
		for _, c := range s.TopThemes {
			fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Count)
		}
	}
	if len(s.Competitors) > 0 {
		b.WriteString("\nCompetitor mentions:\n")
		for _, c := range s.Competitors {
			fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Count)
		}
	}
	if len(s.Trend) > 0 {
		b.WriteString("\nWeekly trend (positive/negative/neutral):\n")
		for _, w := range s.Trend {
			fmt.Fprintf(&b, "  %s (%s): %d/%d/%d\n", w.Label, w.Start.Format("Jan 02"), w.Positive, w.Negative, w.Neutral)
		}
	}
	if kw := s.Resolutions[domain.ResolutionKeyword]; kw > 0 {
		fmt.Fprintf(&b, "\n%d of %d posts were judged by keyword fallback.\n", kw, s.Relevant)
	}
	return strings.TrimRight(b.String(), "\n")
}
