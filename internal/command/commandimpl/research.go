package commandimpl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orgball2608/reddit-research-bot/internal/brands"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
	"github.com/orgball2608/reddit-research-bot/internal/research"
	"github.com/panjf2000/ants/v2"
)

func (c *CommandImpl) handleResearch(ctx context.Context, chatID int64, args string) error {
	name := strings.TrimSpace(args)
	if name == "" {
		_, err := c.Telegram.SendMessage(chatID, "Usage: /research <brand_name>")
		return err
	}

	brand, err := c.Brands.Get(name)
	if err != nil {
		if !errors.Is(err, brands.ErrNotFound) {
			return err
		}
		available := strings.Join(c.Brands.Names(), ", ")
		if available == "" {
			available = "None"
		}
		_, err := c.Telegram.SendMessage(chatID, fmt.Sprintf("Brand '%s' not found.\n\nAvailable: %s", name, available))
		return err
	}

	category := brand.Category
	if category == "" {
		category = "general"
	}
	if _, err := c.Telegram.SendMessage(chatID, fmt.Sprintf(
		"Starting deep dive on %s...\n\nCategory: %s\nKeywords: %s\nLookback: %d days\n\nThis may take a few minutes. I'll send results when ready.",
		brand.Name, category, strings.Join(brand.Keywords, ", "), c.lookbackDays,
	)); err != nil {
		return err
	}

	return c.startRun(ctx, chatID, brand)
}

// startRun replaces the chat's active run with a new one. When the previous
// run is still going the new one is handed to its worker, so a replacement
// never competes for a pool slot.
func (c *CommandImpl) startRun(ctx context.Context, chatID int64, brand domain.BrandProfile) error {
	runCtx, cancel := context.WithCancel(ctx)
	run := &activeRun{profile: brand, ctx: runCtx, cancel: cancel}

	c.mu.Lock()
	prev := c.active[chatID]
	c.active[chatID] = run
	queued := prev != nil && !prev.finished
	if queued {
		prev.next = run
	}
	c.mu.Unlock()

	if prev != nil {
		c.Telegram.SendMessage(chatID, "Previous research cancelled. Starting new one...")
		prev.cancel()
		c.Logger.Info("Cancelled previous research", "chatID", chatID, "brand", prev.profile.Name)
	}
	if queued {
		return nil
	}

	c.runs.Add(1)
	err := c.pool.Submit(func() {
		defer c.runs.Done()
		c.work(chatID, run)
	})
	if err != nil {
		c.runs.Done()
		c.mu.Lock()
		run.finished = true
		if c.active[chatID] == run {
			delete(c.active, chatID)
		}
		c.mu.Unlock()
		cancel()
		if errors.Is(err, ants.ErrPoolOverload) {
			_, sendErr := c.Telegram.SendMessage(chatID, "Too many research runs in progress. Please try again in a few minutes.")
			return sendErr
		}
		return fmt.Errorf("failed to submit research: %w", err)
	}
	return nil
}

// work executes run and any runs queued behind it for the same chat.
func (c *CommandImpl) work(chatID int64, run *activeRun) {
	for run != nil {
		c.runResearch(run.ctx, chatID, run.profile)
		run = c.release(chatID, run)
	}
}

// release marks run finished and returns the run queued behind it, if any.
// The chat's active entry is dropped unless a newer run took its place.
func (c *CommandImpl) release(chatID int64, run *activeRun) *activeRun {
	c.mu.Lock()
	run.finished = true
	next := run.next
	if c.active[chatID] == run {
		delete(c.active, chatID)
	}
	c.mu.Unlock()
	run.cancel()
	return next
}

func (c *CommandImpl) handleStop(chatID int64) error {
	c.mu.Lock()
	run := c.active[chatID]
	delete(c.active, chatID)
	c.mu.Unlock()

	if run == nil {
		_, err := c.Telegram.SendMessage(chatID, "No research is currently running.")
		return err
	}

	run.cancel()
	c.Logger.Info("Research stop requested", "chatID", chatID, "brand", run.profile.Name)
	_, err := c.Telegram.SendMessage(chatID, "Stopping research... Please wait.")
	return err
}

func (c *CommandImpl) runResearch(ctx context.Context, chatID int64, brand domain.BrandProfile) {
	sink := progress.NewChannelSink(eventBuffer)
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		c.relayEvents(chatID, sink.Events())
	}()

	outcome, err := c.Research.Run(ctx, chatID, brand, sink)
	sink.Close()
	<-relayed

	if dropped := sink.Dropped(); dropped > 0 {
		c.Logger.Warn("Progress events dropped", "chatID", chatID, "dropped", dropped)
	}

	switch {
	case errors.Is(err, context.Canceled):
		c.Logger.Info("Research was cancelled", "chatID", chatID, "brand", brand.Name)
		c.Telegram.SendMessage(chatID, fmt.Sprintf("Research on %s has been stopped.", brand.Name))
	case err != nil:
		c.Logger.Error("Research pipeline error", "chatID", chatID, "brand", brand.Name, "error", err)
		c.Telegram.SendMessage(chatID, fmt.Sprintf("Research failed: %v", err))
	case outcome.Run.Fetched == 0:
		c.Telegram.SendMessage(chatID, research.NoPostsMessage(brand.Name, c.lookbackDays, outcome.Diagnostics))
	case outcome.Run.Relevant == 0:
		c.Telegram.SendMessage(chatID, research.NoRelevantMessage(brand.Name, outcome.Run.Fetched))
	default:
		c.deliver(chatID, outcome)
	}
}

// relayEvents turns pipeline events into chat messages. Progress ticks edit
// a single message instead of posting a new one each batch.
func (c *CommandImpl) relayEvents(chatID int64, events <-chan progress.Event) {
	progressID := 0
	for ev := range events {
		if ev.Kind != progress.KindProgress {
			c.Telegram.SendMessage(chatID, ev.Message)
			continue
		}

		text := fmt.Sprintf("Analyzed %d/%d posts (%d relevant so far)...", ev.Done, ev.Total, ev.Relevant)
		if progressID != 0 && c.Telegram.EditMessageText(chatID, progressID, text) == nil {
			continue
		}
		if id, err := c.Telegram.SendMessage(chatID, text); err == nil {
			progressID = id
		}
	}
}

func (c *CommandImpl) deliver(chatID int64, outcome research.Outcome) {
	if _, err := c.Telegram.SendMessage(chatID, outcome.Summary.Text()); err != nil {
		c.Logger.Error("Failed to send research summary", "chatID", chatID, "error", err)
	}
	if len(outcome.CSV) == 0 {
		return
	}
	caption := fmt.Sprintf("%s: %d relevant posts\nRun ID: %s", outcome.Run.Brand, outcome.Run.Relevant, outcome.Run.ID)
	if err := c.Telegram.SendDocument(chatID, outcome.FileName, outcome.CSV, caption); err != nil {
		c.Logger.Error("Failed to send research CSV", "chatID", chatID, "error", err)
		c.Telegram.SendMessage(chatID, fmt.Sprintf("Could not send the CSV export. Try /research_export %s", outcome.Run.ID))
	}
}
