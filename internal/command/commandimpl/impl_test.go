package commandimpl

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/reddit-research-bot/internal/brands"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
	"github.com/orgball2608/reddit-research-bot/internal/report"
	"github.com/orgball2608/reddit-research-bot/internal/repositories/run"
	"github.com/orgball2608/reddit-research-bot/internal/research"
	mock_research "github.com/orgball2608/reddit-research-bot/internal/research/mocks"
	"github.com/orgball2608/reddit-research-bot/internal/retrieval"
	mock_telegram "github.com/orgball2608/reddit-research-bot/internal/telegram/mocks"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	chatID int64 = 5
	userID int64 = 7
)

var (
	acme = domain.BrandProfile{Name: "Acme", Category: "fintech", Keywords: []string{"acme", "acme pay"}}
	zeta = domain.BrandProfile{Name: "Zeta", Keywords: []string{"zeta"}}
)

type allowAll bool

func (a allowAll) Allow(int64) bool { return bool(a) }

// chatLog records what the bot said, in order.
type chatLog struct {
	mu    sync.Mutex
	texts []string
	docs  []string
}

func (l *chatLog) add(s string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.texts = append(l.texts, s)
	return len(l.texts)
}

func (l *chatLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.texts...)
}

type fixture struct {
	cmd      *CommandImpl
	tg       *mock_telegram.MockClient
	research *mock_research.MockService
	log      *chatLog
}

func newFixture(t *testing.T, workers int, limiter allowAll) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		tg:       mock_telegram.NewMockClient(ctrl),
		research: mock_research.NewMockService(ctrl),
		log:      &chatLog{},
	}

	f.tg.EXPECT().SendMessage(gomock.Any(), gomock.Any()).DoAndReturn(func(_ int64, text string) (int, error) {
		return f.log.add(text), nil
	}).AnyTimes()
	f.tg.EXPECT().EditMessageText(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ int64, _ int, text string) error {
		f.log.add("edit: " + text)
		return nil
	}).AnyTimes()
	f.tg.EXPECT().SendDocument(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ int64, name string, _ []byte, caption string) error {
		f.log.mu.Lock()
		defer f.log.mu.Unlock()
		f.log.docs = append(f.log.docs, name+" | "+caption)
		return nil
	}).AnyTimes()

	cfg := &config.Config{}
	cfg.Telegram.AuthorizedUsers = []int64{userID}
	cfg.Research.Workers = workers
	cfg.Research.LookbackDays = 90

	cmd, err := New(Opts{
		Telegram: f.tg,
		Research: f.research,
		Brands:   brands.New([]domain.BrandProfile{acme, zeta}),
		Logger:   logger.NewNop(),
		Config:   cfg,
		Limiter:  limiter,
	})
	require.NoError(t, err)
	t.Cleanup(cmd.Close)
	f.cmd = cmd
	return f
}

func message(from int64, text string) *tgbotapi.Message {
	name := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: from},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func (f *fixture) send(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, f.cmd.processCommand(context.Background(), message(userID, text)))
}

func blockUntilCancelled(ctx context.Context, _ int64, _ domain.BrandProfile, _ progress.Sink) (research.Outcome, error) {
	<-ctx.Done()
	return research.Outcome{}, ctx.Err()
}

func TestUnauthorizedUsersAreIgnored(t *testing.T) {
	f := newFixture(t, 2, true)
	f.research.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	require.NoError(t, f.cmd.processCommand(context.Background(), message(99, "/research acme")))
	assert.Empty(t, f.log.all())

	require.NoError(t, f.cmd.processCommand(context.Background(), message(99, "/start")))
	assert.Equal(t, []string{"Not authorized."}, f.log.all())
}

func TestThrottledCommand(t *testing.T) {
	f := newFixture(t, 2, false)
	f.send(t, "/help")
	assert.Equal(t, []string{"Too many commands. Please wait a few seconds and try again."}, f.log.all())
}

func TestHelpAndUnknown(t *testing.T) {
	f := newFixture(t, 2, true)
	f.send(t, "/help")
	f.send(t, "/nope")
	texts := f.log.all()
	require.Len(t, texts, 2)
	assert.Equal(t, helpMessage, texts[0])
	assert.Contains(t, texts[1], "Unknown command")
}

func TestResearchUsageAndUnknownBrand(t *testing.T) {
	f := newFixture(t, 2, true)
	f.send(t, "/research")
	f.send(t, "/research Nope")
	assert.Equal(t, []string{
		"Usage: /research <brand_name>",
		"Brand 'Nope' not found.\n\nAvailable: Acme, Zeta",
	}, f.log.all())
}

func TestResearchDeliversSummaryAndCSV(t *testing.T) {
	f := newFixture(t, 2, true)

	findings := []domain.Finding{{
		Post:     domain.Post{ID: "a", Title: "acme is great", Community: "fintech", CreatedAt: time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)},
		Analysis: domain.Relevant{ID: "a", Sentiment: domain.SentimentPositive, Theme: "praise"},
	}}
	outcome := research.Outcome{
		Run:      domain.ResearchRun{ID: "run-1", Brand: "Acme", Fetched: 2, Relevant: 1, Status: domain.RunCompleted},
		Summary:  report.Summarize("Acme", 2, 90, findings),
		CSV:      []byte("Date\n"),
		FileName: "acme_research_20240501.csv",
	}
	f.research.EXPECT().Run(gomock.Any(), chatID, acme, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, _ domain.BrandProfile, sink progress.Sink) (research.Outcome, error) {
			sink.Emit(progress.Status("Found 2 posts."))
			sink.Emit(progress.Progress(1, 2, 1))
			sink.Emit(progress.Progress(2, 2, 1))
			return outcome, nil
		})

	f.send(t, "/research ACME")
	f.cmd.runs.Wait()

	texts := f.log.all()
	require.Len(t, texts, 5)
	assert.Contains(t, texts[0], "Starting deep dive on Acme...")
	assert.Contains(t, texts[0], "Keywords: acme, acme pay")
	assert.Contains(t, texts[0], "Lookback: 90 days")
	assert.Equal(t, "Found 2 posts.", texts[1])
	assert.Equal(t, "Analyzed 1/2 posts (1 relevant so far)...", texts[2])
	assert.Equal(t, "edit: Analyzed 2/2 posts (1 relevant so far)...", texts[3])
	assert.Contains(t, texts[4], "Research Complete: Acme")
	assert.Equal(t, []string{"acme_research_20240501.csv | Acme: 1 relevant posts\nRun ID: run-1"}, f.log.docs)
}

func TestResearchWithoutPosts(t *testing.T) {
	f := newFixture(t, 2, true)
	diag := retrieval.Diagnostics{Sources: []retrieval.SourceReport{{Source: "arcticshift", Skipped: "probe failed"}}}
	f.research.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(research.Outcome{Diagnostics: diag}, nil)

	f.send(t, "/research acme")
	f.cmd.runs.Wait()

	texts := f.log.all()
	require.Len(t, texts, 2)
	assert.Equal(t, research.NoPostsMessage("Acme", 90, diag), texts[1])
	assert.Contains(t, texts[1], "arcticshift: probe failed")
}

func TestResearchWithoutRelevantPosts(t *testing.T) {
	f := newFixture(t, 2, true)
	f.research.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(research.Outcome{Run: domain.ResearchRun{Fetched: 12}}, nil)

	f.send(t, "/research acme")
	f.cmd.runs.Wait()

	texts := f.log.all()
	require.Len(t, texts, 2)
	assert.Equal(t, research.NoRelevantMessage("Acme", 12), texts[1])
}

func TestResearchFailure(t *testing.T) {
	f := newFixture(t, 2, true)
	f.research.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(research.Outcome{}, errors.New("boom"))

	f.send(t, "/research acme")
	f.cmd.runs.Wait()
	assert.Equal(t, "Research failed: boom", f.log.all()[1])
}

func TestStopCancelsActiveResearch(t *testing.T) {
	f := newFixture(t, 2, true)
	started := make(chan struct{})
	f.research.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, id int64, b domain.BrandProfile, s progress.Sink) (research.Outcome, error) {
			close(started)
			return blockUntilCancelled(ctx, id, b, s)
		})

	f.send(t, "/research acme")
	<-started
	f.send(t, "/research_stop")
	f.cmd.runs.Wait()

	texts := f.log.all()
	assert.Contains(t, texts, "Stopping research... Please wait.")
	assert.Contains(t, texts, "Research on Acme has been stopped.")

	f.send(t, "/research_stop")
	assert.Equal(t, "No research is currently running.", f.log.all()[len(f.log.all())-1])
}

func TestNewResearchReplacesPrevious(t *testing.T) {
	f := newFixture(t, 2, true)
	f.research.EXPECT().Run(gomock.Any(), chatID, acme, gomock.Any()).DoAndReturn(blockUntilCancelled)
	f.research.EXPECT().Run(gomock.Any(), chatID, zeta, gomock.Any()).
		Return(research.Outcome{Run: domain.ResearchRun{Fetched: 3}}, nil)

	f.send(t, "/research acme")
	f.send(t, "/research zeta")
	f.cmd.runs.Wait()

	texts := f.log.all()
	assert.Contains(t, texts, "Previous research cancelled. Starting new one...")
	assert.Contains(t, texts, "Research on Acme has been stopped.")
	assert.Contains(t, texts, research.NoRelevantMessage("Zeta", 3))

	f.cmd.mu.Lock()
	assert.Empty(t, f.cmd.active)
	f.cmd.mu.Unlock()
}

func TestReplaceOnSingleWorkerRunsNewResearch(t *testing.T) {
	f := newFixture(t, 1, true)
	started := make(chan struct{})
	f.research.EXPECT().Run(gomock.Any(), chatID, acme, gomock.Any()).DoAndReturn(
		func(ctx context.Context, id int64, b domain.BrandProfile, s progress.Sink) (research.Outcome, error) {
			close(started)
			return blockUntilCancelled(ctx, id, b, s)
		})
	f.research.EXPECT().Run(gomock.Any(), chatID, zeta, gomock.Any()).
		Return(research.Outcome{Run: domain.ResearchRun{Fetched: 3}}, nil)

	f.send(t, "/research acme")
	<-started
	f.send(t, "/research zeta")
	f.cmd.runs.Wait()

	texts := f.log.all()
	assert.NotContains(t, texts, "Too many research runs in progress. Please try again in a few minutes.")
	require.Len(t, texts, 5)
	assert.True(t, strings.HasPrefix(texts[1], "Starting deep dive on Zeta"))
	assert.Equal(t, "Previous research cancelled. Starting new one...", texts[2])
	assert.Equal(t, "Research on Acme has been stopped.", texts[3])
	assert.Equal(t, research.NoRelevantMessage("Zeta", 3), texts[4])

	f.cmd.mu.Lock()
	assert.Empty(t, f.cmd.active)
	f.cmd.mu.Unlock()
}

func TestPoolOverload(t *testing.T) {
	f := newFixture(t, 1, true)
	started := make(chan struct{})
	f.research.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, id int64, b domain.BrandProfile, s progress.Sink) (research.Outcome, error) {
			close(started)
			return blockUntilCancelled(ctx, id, b, s)
		})

	f.send(t, "/research acme")
	<-started

	other := message(userID, "/research zeta")
	other.Chat.ID = 6
	require.NoError(t, f.cmd.processCommand(context.Background(), other))
	assert.Contains(t, f.log.all(), "Too many research runs in progress. Please try again in a few minutes.")

	f.cmd.mu.Lock()
	_, stillTracked := f.cmd.active[6]
	f.cmd.mu.Unlock()
	assert.False(t, stillTracked)
}

func TestResearchList(t *testing.T) {
	f := newFixture(t, 2, true)
	f.send(t, "/research_list")
	assert.Equal(t, []string{
		"Configured Brands:\n\n• Acme [fintech]\n  Keywords: acme, acme pay\n\n• Zeta [general]\n  Keywords: zeta\n",
	}, f.log.all())
}

func TestResearchHistory(t *testing.T) {
	f := newFixture(t, 2, true)
	gomock.InOrder(
		f.research.EXPECT().History(gomock.Any(), chatID, historyLimit).Return(nil, nil),
		f.research.EXPECT().History(gomock.Any(), chatID, historyLimit).Return([]domain.ResearchRun{{
			ID: "run-1", Brand: "Acme", Status: domain.RunCompleted, Fetched: 1200, Relevant: 40,
			StartedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		}}, nil),
	)

	f.send(t, "/research_history")
	f.send(t, "/research_history")

	texts := f.log.all()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "No stored research runs yet")
	assert.Contains(t, texts[1], "• 2024-05-01 09:30 Acme: completed, 40 of 1,200 posts relevant\n  ID: run-1")
}

func TestResearchExport(t *testing.T) {
	f := newFixture(t, 2, true)
	f.research.EXPECT().Export(gomock.Any(), "run-1").Return("acme.csv", []byte("Date\n"), nil)
	f.research.EXPECT().Export(gomock.Any(), "missing").Return("", nil, run.ErrNotFound)
	f.research.EXPECT().Export(gomock.Any(), "empty").Return("", nil, research.ErrNoCSV)

	f.send(t, "/research_export")
	f.send(t, "/research_export run-1")
	f.send(t, "/research_export missing")
	f.send(t, "/research_export empty")

	texts := f.log.all()
	require.Len(t, texts, 3)
	assert.Contains(t, texts[0], "Usage: /research_export <run id>")
	assert.Equal(t, "Run missing not found.", texts[1])
	assert.Contains(t, texts[2], "nothing to export")
	assert.Equal(t, []string{"acme.csv | Run ID: run-1"}, f.log.docs)
}

func TestHandleCommandLoop(t *testing.T) {
	f := newFixture(t, 2, true)
	updates := make(chan tgbotapi.Update, 1)

	f.tg.EXPECT().GetUpdatesChan(gomock.Any()).Return(tgbotapi.UpdatesChannel(updates))
	f.tg.EXPECT().StopReceivingUpdates()
	f.research.EXPECT().History(gomock.Any(), chatID, historyLimit).Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.cmd.HandleCommand(ctx) }()

	updates <- tgbotapi.Update{Message: message(userID, "/research_history")}
	require.Eventually(t, func() bool { return len(f.log.all()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestHandleCommandStopsWhenUpdatesClose(t *testing.T) {
	f := newFixture(t, 2, true)
	updates := make(chan tgbotapi.Update)
	close(updates)
	f.tg.EXPECT().GetUpdatesChan(gomock.Any()).Return(tgbotapi.UpdatesChannel(updates))

	err := f.cmd.HandleCommand(context.Background())
	assert.EqualError(t, err, "telegram updates channel closed")
}
