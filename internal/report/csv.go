package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/domain"
)

var Columns = []string{
	"Date", "Community", "Title", "Sentiment", "Theme", "Summary",
	"Score", "Comments", "Competitor Mentions", "URL", "Resolution",
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9]+`)

// WriteCSV writes one row per finding under a header row.
func WriteCSV(w io.Writer, findings []domain.Finding) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, f := range findings {
		row := []string{
			f.Post.CreatedDate(),
			f.Post.Community,
			f.Post.Title,
			string(f.Analysis.Sentiment),
			f.Analysis.Theme,
			f.Analysis.Summary,
			strconv.Itoa(f.Post.Score),
			strconv.Itoa(f.Post.CommentCount),
			strings.Join(f.Analysis.CompetitorMentions, ", "),
			f.Post.Link(),
			string(f.Analysis.Resolution),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", f.Post.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the attachment name for a brand's export.
func FileName(brand string, at time.Time) string {
	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(brand), "_"), "_")
	if slug == "" {
		slug = "brand"
	}
	return fmt.Sprintf("%s_research_%s.csv", slug, at.UTC().Format("20060102"))
}
