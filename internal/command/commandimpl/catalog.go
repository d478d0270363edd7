package commandimpl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orgball2608/reddit-research-bot/internal/repositories/run"
	"github.com/orgball2608/reddit-research-bot/internal/research"
	"github.com/orgball2608/reddit-research-bot/pkg/formatter"
)

func (c *CommandImpl) handleList(chatID int64) error {
	profiles := c.Brands.All()
	if len(profiles) == 0 {
		_, err := c.Telegram.SendMessage(chatID, "No brands configured.")
		return err
	}

	var b strings.Builder
	b.WriteString("Configured Brands:\n")
	for _, p := range profiles {
		category := p.Category
		if category == "" {
			category = "general"
		}
		fmt.Fprintf(&b, "\n• %s [%s]\n  Keywords: %s\n", p.Name, category, strings.Join(p.Keywords, ", "))
	}
	_, err := c.Telegram.SendMessage(chatID, b.String())
	return err
}

func (c *CommandImpl) handleHistory(ctx context.Context, chatID int64) error {
	runs, err := c.Research.History(ctx, chatID, historyLimit)
	if err != nil {
		c.Logger.Error("Failed to load research history", "chatID", chatID, "error", err)
		_, sendErr := c.Telegram.SendMessage(chatID, "Could not load research history. Please try again later.")
		return sendErr
	}
	if len(runs) == 0 {
		_, err := c.Telegram.SendMessage(chatID, "No stored research runs yet. Start one with /research <brand>.")
		return err
	}

	var b strings.Builder
	b.WriteString("Recent research runs:\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "\n• %s %s: %s, %d of %s posts relevant\n  ID: %s\n",
			r.StartedAt.UTC().Format("2006-01-02 15:04"), r.Brand, r.Status,
			r.Relevant, formatter.FormatNumber(r.Fetched), r.ID)
	}
	_, err = c.Telegram.SendMessage(chatID, b.String())
	return err
}

func (c *CommandImpl) handleExport(ctx context.Context, chatID int64, args string) error {
	runID := strings.TrimSpace(args)
	if runID == "" {
		_, err := c.Telegram.SendMessage(chatID, "Usage: /research_export <run id>\nSee /research_history for ids.")
		return err
	}

	name, data, err := c.Research.Export(ctx, runID)
	switch {
	case errors.Is(err, run.ErrNotFound):
		_, sendErr := c.Telegram.SendMessage(chatID, fmt.Sprintf("Run %s not found.", runID))
		return sendErr
	case errors.Is(err, research.ErrNoCSV):
		_, sendErr := c.Telegram.SendMessage(chatID, "That run found no relevant posts, there is nothing to export.")
		return sendErr
	case err != nil:
		c.Logger.Error("Failed to export research run", "runID", runID, "error", err)
		_, sendErr := c.Telegram.SendMessage(chatID, "Could not export that run. Please try again later.")
		return sendErr
	}

	return c.Telegram.SendDocument(chatID, name, data, "Run ID: "+runID)
}
