package researchimpl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/analyzer"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/metrics"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
	"github.com/orgball2608/reddit-research-bot/internal/repositories/run"
	"github.com/orgball2608/reddit-research-bot/internal/report"
	"github.com/orgball2608/reddit-research-bot/internal/research"
	"github.com/orgball2608/reddit-research-bot/internal/retrieval"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"go.uber.org/fx"
)

const (
	defaultRetention = 30 * 24 * time.Hour
	cleanupTimeout   = 5 * time.Minute
	persistTimeout   = 30 * time.Second
)

type Opts struct {
	fx.In

	Retrieval retrieval.Client
	Analyzer  analyzer.Analyzer
	RunRepo   run.Repository
	Config    *config.Config
	Logger    logger.Logger
	Clock     clockwork.Clock
	Metrics   *metrics.Collector `optional:"true"`
}

type ResearchImpl struct {
	retrieval retrieval.Client
	analyzer  analyzer.Analyzer
	runRepo   run.Repository
	lookback  time.Duration
	retention time.Duration
	batchSize int
	clock     clockwork.Clock
	metrics   *metrics.Collector
	log       logger.Logger
}

var _ research.Service = (*ResearchImpl)(nil)

func New(opts Opts) *ResearchImpl {
	r := &ResearchImpl{
		retrieval: opts.Retrieval,
		analyzer:  opts.Analyzer,
		runRepo:   opts.RunRepo,
		lookback:  retrieval.DefaultLookback,
		retention: defaultRetention,
		batchSize: 10,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
	if cfg := opts.Config; cfg != nil {
		if cfg.Research.LookbackDays > 0 {
			r.lookback = cfg.Lookback()
		}
		if cfg.Research.Retention > 0 {
			r.retention = cfg.Research.Retention
		}
		if cfg.Research.BatchSize > 0 {
			r.batchSize = cfg.Research.BatchSize
		}
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	r.log = r.log.WithComponent("Research")
	return r
}

func (r *ResearchImpl) lookbackDays() int {
	return int(r.lookback / (24 * time.Hour))
}

func (r *ResearchImpl) Run(ctx context.Context, chatID int64, brand domain.BrandProfile, sink progress.Sink) (research.Outcome, error) {
	if sink == nil {
		sink = progress.Discard
	}
	started := r.clock.Now()
	out := research.Outcome{
		Run: domain.ResearchRun{
			ID:        uuid.NewString(),
			ChatID:    chatID,
			Brand:     brand.Name,
			StartedAt: started,
		},
	}

	r.log.Info("Research started", "run_id", out.Run.ID, "chat_id", chatID, "brand", brand.Name)

	fetched, err := r.retrieval.Fetch(ctx, brand, r.lookback, sink)
	out.Diagnostics = fetched.Diagnostics
	if err != nil {
		return out, r.abort(out, err)
	}
	out.Run.Fetched = len(fetched.Posts)
	out.Run.Diagnostics = fetched.Diagnostics.Summary()

	if len(fetched.Posts) == 0 {
		out.Run.Status = domain.RunEmpty
		r.finish(ctx, &out)
		return out, nil
	}

	sink.Emit(progress.Status(fmt.Sprintf(
		"Found %d posts. Filtering for relevance & analyzing sentiment...\n(processing in batches of %d)",
		len(fetched.Posts), r.batchSize,
	)))

	analysis, err := r.analyzer.Analyze(ctx, fetched.Posts, brand, sink)
	out.Stats = analysis.Stats
	if err != nil {
		return out, r.abort(out, err)
	}
	out.Run.Findings = analysis.Findings
	out.Run.Relevant = len(analysis.Findings)

	if len(analysis.Findings) == 0 {
		out.Run.Status = domain.RunEmpty
		r.finish(ctx, &out)
		return out, nil
	}

	sink.Emit(progress.Status(fmt.Sprintf("%d relevant posts analyzed. Generating outputs...", len(analysis.Findings))))

	out.Summary = report.Summarize(brand.Name, out.Run.Fetched, r.lookbackDays(), analysis.Findings)
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, analysis.Findings); err != nil {
		r.log.Error("CSV export failed", "run_id", out.Run.ID, "error", err)
	} else {
		out.CSV = buf.Bytes()
		out.FileName = report.FileName(brand.Name, started)
	}

	out.Run.Status = domain.RunCompleted
	r.finish(ctx, &out)
	return out, nil
}

// abort records a run that did not complete. Cancelled runs are not stored.
func (r *ResearchImpl) abort(out research.Outcome, err error) error {
	elapsed := r.clock.Since(out.Run.StartedAt)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.metrics.RecordRun("cancelled", elapsed)
		r.log.Info("Research cancelled", "run_id", out.Run.ID, "brand", out.Run.Brand)
		return err
	}
	r.metrics.RecordRun(string(domain.RunFailed), elapsed)
	r.log.Error("Research failed", "run_id", out.Run.ID, "brand", out.Run.Brand, "error", err)
	return fmt.Errorf("research %s: %w", out.Run.Brand, err)
}

// finish stamps and stores a run. A storage failure is logged, never returned:
// the user still gets the results.
func (r *ResearchImpl) finish(ctx context.Context, out *research.Outcome) {
	out.Run.FinishedAt = r.clock.Now()
	elapsed := out.Run.FinishedAt.Sub(out.Run.StartedAt)
	r.metrics.RecordRun(string(out.Run.Status), elapsed)

	r.log.Info("Research finished",
		"run_id", out.Run.ID,
		"brand", out.Run.Brand,
		"status", out.Run.Status,
		"fetched", out.Run.Fetched,
		"relevant", out.Run.Relevant,
		"elapsed", elapsed.Round(time.Second).String(),
	)

	if r.runRepo == nil {
		return
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.runRepo.Create(storeCtx, out.Run); err != nil {
		r.log.Error("Failed to store research run", "run_id", out.Run.ID, "error", err)
	}
}

func (r *ResearchImpl) History(ctx context.Context, chatID int64, limit int) ([]domain.ResearchRun, error) {
	return r.runRepo.ListByChat(ctx, chatID, limit)
}

func (r *ResearchImpl) Export(ctx context.Context, runID string) (string, []byte, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return "", nil, fmt.Errorf("%w: %q", run.ErrNotFound, runID)
	}
	stored, err := r.runRepo.Get(ctx, runID)
	if err != nil {
		return "", nil, err
	}
	if len(stored.Findings) == 0 {
		return "", nil, research.ErrNoCSV
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, stored.Findings); err != nil {
		return "", nil, err
	}
	return report.FileName(stored.Brand, stored.StartedAt), buf.Bytes(), nil
}

// CleanupOnce deletes runs that finished before the retention window.
func (r *ResearchImpl) CleanupOnce(ctx context.Context) (int64, error) {
	cutoff := r.clock.Now().Add(-r.retention)
	return r.runRepo.CleanupOlderThan(ctx, cutoff)
}

// ScheduleCleanup sets up a daily job at 03:00 that drops expired runs.
func (r *ResearchImpl) ScheduleCleanup(ctx context.Context) error {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.Local
		r.log.Warn("Failed to load Asia/Ho_Chi_Minh timezone, using local timezone", "error", err)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc), gocron.WithClock(r.clock))
	if err != nil {
		return fmt.Errorf("failed to create cleanup scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0)),
		),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			r.log.Info("Starting scheduled research cleanup")

			cleanupCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
			defer cancel()

			deleted, err := r.CleanupOnce(cleanupCtx)
			if err != nil {
				r.log.Error("Failed to clean up old research runs", "error", err)
				return
			}
			r.log.Info("Research cleanup completed", "runs_deleted", deleted)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule research cleanup: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		r.log.Info("Stopping research cleanup scheduler")
		if err := scheduler.Shutdown(); err != nil {
			r.log.Error("Failed to shut down cleanup scheduler", "error", err)
		}
	}()

	return nil
}
