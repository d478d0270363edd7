package retrievalimpl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/metrics"
	"github.com/orgball2608/reddit-research-bot/internal/progress"
	"github.com/orgball2608/reddit-research-bot/internal/retrieval"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"go.uber.org/fx"
)

const (
	defaultCircuitThreshold = 5
	defaultPageLimit        = 100
	probeCacheSize          = 16
)

type Opts struct {
	fx.In

	Sources []source.Source
	Config  *config.Config
	Logger  logger.Logger
	Clock   clockwork.Clock
	Metrics *metrics.Collector `optional:"true"`
}

// RetrievalImpl queries sources in their given priority order and merges the
// results into one corpus.
type RetrievalImpl struct {
	sources          []source.Source
	probes           *source.ProbeCache
	circuitThreshold uint
	pageLimit        int
	defaults         []string
	clock            clockwork.Clock
	metrics          *metrics.Collector
	log              logger.Logger
}

var _ retrieval.Client = (*RetrievalImpl)(nil)

func New(opts Opts) *RetrievalImpl {
	threshold := uint(defaultCircuitThreshold)
	pageLimit := defaultPageLimit
	ttl := 10 * time.Minute
	if opts.Config != nil {
		if opts.Config.Research.CircuitThreshold > 0 {
			threshold = opts.Config.Research.CircuitThreshold
		}
		if opts.Config.Research.PageLimit > 0 {
			pageLimit = opts.Config.Research.PageLimit
		}
		if opts.Config.Research.ProbeCacheTTL > 0 {
			ttl = opts.Config.Research.ProbeCacheTTL
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &RetrievalImpl{
		sources:          opts.Sources,
		probes:           source.NewProbeCache(probeCacheSize, ttl),
		circuitThreshold: threshold,
		pageLimit:        pageLimit,
		defaults:         source.DefaultCommunities,
		clock:            clock,
		metrics:          opts.Metrics,
		log:              log.WithComponent("Retrieval"),
	}
}

func (r *RetrievalImpl) Fetch(ctx context.Context, brand domain.BrandProfile, lookback time.Duration, sink progress.Sink) (retrieval.Result, error) {
	if err := brand.Validate(); err != nil {
		return retrieval.Result{}, err
	}
	if sink == nil {
		sink = progress.Discard
	}
	if lookback <= 0 {
		lookback = retrieval.DefaultLookback
	}

	cutoff := r.clock.Now().Add(-lookback)
	corpus := retrieval.NewCorpus()
	var diag retrieval.Diagnostics

	r.log.Info("Starting retrieval", "brand", brand.Name, "keywords", len(brand.Keywords), "sources", len(r.sources))

	for _, src := range r.sources {
		if ctx.Err() != nil {
			break
		}
		sink.Emit(progress.Status(fmt.Sprintf("Searching %s (%d posts so far)...", src.Name(), corpus.Len())))

		report := r.runSource(ctx, src, brand, cutoff, corpus)
		diag.Sources = append(diag.Sources, report)
		r.metrics.RecordSourcePosts(report.Source, report.Added)

		r.log.Info("Source finished",
			"source", report.Source,
			"raw", report.Raw,
			"added", report.Added,
			"errors", report.Errors,
			"scopes_visited", report.ScopesVisited,
			"scopes_planned", report.ScopesPlanned,
		)
		sink.Emit(progress.Status(report.String()))
	}

	result := retrieval.Result{
		Posts:       corpus.Since(cutoff),
		Diagnostics: diag,
	}

	if err := ctx.Err(); err != nil {
		r.log.Warn("Retrieval cancelled", "brand", brand.Name, "collected", corpus.Len())
		return result, err
	}

	r.log.Info("Retrieval finished", "brand", brand.Name, "unique", corpus.Len(), "in_window", len(result.Posts))
	sink.Emit(progress.Status(fmt.Sprintf("Fetched %d unique posts. [%s]", len(result.Posts), diag.Summary())))
	return result, nil
}

func (r *RetrievalImpl) runSource(
	ctx context.Context,
	src source.Source,
	brand domain.BrandProfile,
	cutoff time.Time,
	corpus *retrieval.Corpus,
) retrieval.SourceReport {
	name := src.Name()
	report := retrieval.SourceReport{Source: name}

	scopes := PlanScopes(src.Capabilities(), brand, r.defaults, corpus.Len() == 0)
	report.ScopesPlanned = len(scopes)
	if len(scopes) == 0 {
		report.Skipped = "no usable scope"
		return report
	}

	// A single scope costs no more than the probe would.
	if len(scopes) > 1 {
		if err := r.probes.Check(ctx, src); err != nil {
			if ctx.Err() != nil {
				report.Cancelled = true
				return report
			}
			report.Skipped = "probe failed: " + err.Error()
			r.metrics.RecordSourceSkip(name, "probe")
			r.log.Warn("Source unreachable, skipping", "source", name, "error", err)
			return report
		}
	}

	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(r.circuitThreshold).
		WithDelay(time.Hour).
		Build()

	for _, scope := range scopes {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if breaker.IsOpen() {
			report.Aborted = fmt.Sprintf("gave up after %d consecutive failed scopes", r.circuitThreshold)
			r.metrics.RecordSourceSkip(name, "circuit_open")
			r.log.Warn("Circuit open, abandoning remaining scopes",
				"source", name,
				"remaining", len(scopes)-report.ScopesVisited,
			)
			break
		}

		report.ScopesVisited++
		succeeded := false

		for _, kw := range brand.Keywords {
			if ctx.Err() != nil {
				break
			}
			posts, err := src.Search(ctx, source.Query{
				Keyword:   kw,
				Community: scope,
				After:     cutoff,
				Limit:     r.pageLimit,
			})
			report.Queries++
			report.Raw += len(posts)
			report.Added += corpus.AddAll(posts)
			r.metrics.RecordSourceQuery(name, err)

			if err != nil {
				if ctx.Err() != nil {
					break
				}
				report.RecordError(err)
				r.log.Warn("Search failed", "source", name, "scope", scopeLabel(scope), "keyword", kw, "error", err)
				continue
			}
			report.Successes++
			succeeded = true
		}

		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if succeeded {
			breaker.RecordSuccess()
		} else {
			breaker.RecordFailure()
		}
	}

	return report
}

// PlanScopes lists the scopes a source should visit. "" is the global scope.
// Hint communities come first; default communities are only added while the
// corpus is still empty.
func PlanScopes(caps source.Capability, brand domain.BrandProfile, defaults []string, corpusEmpty bool) []string {
	var scopes []string
	if caps.Has(source.CapGlobal) {
		scopes = append(scopes, "")
	}
	if !caps.Has(source.CapCommunity) {
		return scopes
	}

	seen := make(map[string]bool)
	add := func(c string) {
		c = domain.NormalizeCommunity(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			return
		}
		seen[key] = true
		scopes = append(scopes, c)
	}
	for _, h := range brand.CommunityHints {
		add(h)
	}
	if corpusEmpty {
		for _, d := range defaults {
			add(d)
		}
	}
	return scopes
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "global"
	}
	return "r/" + scope
}
