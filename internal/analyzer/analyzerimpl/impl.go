package analyzerimpl

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/analyzer"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/llm"
	"github.com/orgball2608/reddit-research-bot/internal/metrics"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/orgball2608/reddit-research-bot/pkg/retry"
	"go.uber.org/fx"
)

const (
	defaultBatchSize       = 10
	defaultCooldown        = 2 * time.Second
	defaultLimitedCooldown = 15 * time.Second
	defaultTemperature     = 0.1
	defaultMaxTokens       = 256
)

type Opts struct {
	fx.In

	Chain   *llm.Chain
	Config  *config.Config
	Logger  logger.Logger
	Clock   clockwork.Clock
	Metrics *metrics.Collector `optional:"true"`
}

type AnalyzerImpl struct {
	chain           *llm.Chain
	batchSize       int
	cooldown        time.Duration
	limitedCooldown time.Duration
	temperature     float64
	maxTokens       int
	clock           clockwork.Clock
	metrics         *metrics.Collector
	log             logger.Logger
}

var _ analyzer.Analyzer = (*AnalyzerImpl)(nil)

func New(opts Opts) *AnalyzerImpl {
	a := &AnalyzerImpl{
		chain:           opts.Chain,
		batchSize:       defaultBatchSize,
		cooldown:        defaultCooldown,
		limitedCooldown: defaultLimitedCooldown,
		temperature:     defaultTemperature,
		maxTokens:       defaultMaxTokens,
		clock:           opts.Clock,
		metrics:         opts.Metrics,
		log:             opts.Logger,
	}
	if cfg := opts.Config; cfg != nil {
		if cfg.Research.BatchSize > 0 {
			a.batchSize = cfg.Research.BatchSize
		}
		if cfg.Research.Cooldown > 0 {
			a.cooldown = cfg.Research.Cooldown
		}
		if cfg.Research.LimitedCooldown > 0 {
			a.limitedCooldown = cfg.Research.LimitedCooldown
		}
		if cfg.LLM.Temperature > 0 {
			a.temperature = cfg.LLM.Temperature
		}
		if cfg.LLM.MaxTokens > 0 {
			a.maxTokens = cfg.LLM.MaxTokens
		}
	}
	if a.chain == nil {
		a.chain = llm.NewChain(nil, a.log, a.metrics)
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.log == nil {
		a.log = logger.NewNop()
	}
	a.log = a.log.WithComponent("Analyzer")
	return a
}

func (a *AnalyzerImpl) Analyze(ctx context.Context, posts []domain.Post, brand domain.BrandProfile, sink progress.Sink) (analyzer.Result, error) {
	var result analyzer.Result
	if err := brand.Validate(); err != nil {
		return result, err
	}
	if sink == nil {
		sink = progress.Discard
	}

	total := len(posts)
	keywordOnly := a.chain.Empty()
	st := llm.NewState()

	a.log.Info("Starting analysis", "brand", brand.Name, "posts", total, "keyword_only", keywordOnly)

	for start := 0; start < total; start += a.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+a.batchSize, total)
		batch := posts[start:end]

		st.Reset()
		judgments, err := a.classifyBatch(ctx, st, batch, brand, keywordOnly)
		if err != nil {
			return result, err
		}

		for i, j := range judgments {
			a.tally(&result.Stats, j)
			if rel, ok := j.(domain.Relevant); ok {
				result.Findings = append(result.Findings, domain.Finding{Post: batch[i], Analysis: rel})
			}
		}

		sink.Emit(progress.Progress(end, total, len(result.Findings)))

		if end >= total || keywordOnly {
			continue
		}
		pause := a.cooldown
		if st.AnyLimited() {
			pause = a.limitedCooldown
			a.log.Warn("Batch hit provider rate limits, cooling down", "pause", pause.String())
		}
		if err := retry.Sleep(ctx, a.clock, pause); err != nil {
			return result, err
		}
	}

	a.log.Info("Analysis finished",
		"brand", brand.Name,
		"relevant", len(result.Findings),
		"total", total,
		"batch", result.Stats.Batch,
		"single", result.Stats.Single,
		"keyword", result.Stats.Keyword,
	)
	return result, nil
}

// classifyBatch decides every post of batch, in order. It fails only when ctx
// ends.
func (a *AnalyzerImpl) classifyBatch(
	ctx context.Context,
	st *llm.State,
	batch []domain.Post,
	brand domain.BrandProfile,
	keywordOnly bool,
) ([]domain.Judgment, error) {
	out := make([]domain.Judgment, len(batch))
	if keywordOnly {
		for i, p := range batch {
			out[i] = KeywordJudge(p, brand)
		}
		return out, nil
	}

	parsed, batchErr := a.requestBatch(ctx, st, batch, brand)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exhausted := errors.Is(batchErr, llm.ErrAllRateLimited)
	if batchErr != nil {
		a.log.Warn("Batch classification failed", "posts", len(batch), "all_rate_limited", exhausted, "error", batchErr)
	}

	for i, p := range batch {
		if j, ok := parsed[p.ID]; ok {
			out[i] = j
			continue
		}
		if exhausted || a.chain.AllLimited(st) {
			out[i] = KeywordJudge(p, brand)
			continue
		}
		j, err := a.classifySingle(ctx, st, p, brand)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			a.log.Warn("Single classification failed, using keywords", "post_id", p.ID, "error", err)
			j = KeywordJudge(p, brand)
		}
		out[i] = j
	}
	return out, nil
}

func (a *AnalyzerImpl) requestBatch(ctx context.Context, st *llm.State, batch []domain.Post, brand domain.BrandProfile) (map[string]domain.Judgment, error) {
	raw, err := a.chain.Complete(ctx, st, llm.Request{
		Prompt:      BatchPrompt(batch, brand),
		Temperature: a.temperature,
		MaxTokens:   BatchMaxTokens(len(batch)),
	})
	if err != nil {
		return nil, err
	}
	parsed, err := parseBatch(raw, batch, brand)
	if err != nil {
		return nil, err
	}
	if missing := len(batch) - len(parsed); missing > 0 {
		a.log.Debug("Batch response incomplete", "expected", len(batch), "missing", missing)
	}
	return parsed, nil
}

func (a *AnalyzerImpl) classifySingle(ctx context.Context, st *llm.State, post domain.Post, brand domain.BrandProfile) (domain.Judgment, error) {
	raw, err := a.chain.Complete(ctx, st, llm.Request{
		Prompt:      SinglePrompt(post, brand),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return parseSingle(raw, post, brand)
}

func (a *AnalyzerImpl) tally(stats *analyzer.Stats, j domain.Judgment) {
	_, relevant := j.(domain.Relevant)
	switch j.ResolvedBy() {
	case domain.ResolutionBatch:
		stats.Batch++
	case domain.ResolutionSingle:
		stats.Single++
	case domain.ResolutionKeyword:
		stats.Keyword++
	}
	if !relevant {
		stats.NotRelevant++
	}
	a.metrics.RecordResolution(string(j.ResolvedBy()), relevant)
}
