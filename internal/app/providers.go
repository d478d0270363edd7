package app

import (
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/llm"
	"github.com/orgball2608/reddit-research-bot/internal/llm/openai"
	"github.com/orgball2608/reddit-research-bot/internal/metrics"
	"github.com/orgball2608/reddit-research-bot/internal/source"
	"github.com/orgball2608/reddit-research-bot/internal/source/arcticshift"
	"github.com/orgball2608/reddit-research-bot/internal/source/pullpush"
	"github.com/orgball2608/reddit-research-bot/internal/source/redditrss"
	"github.com/orgball2608/reddit-research-bot/internal/source/redditsearch"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newCollector(reg *prometheus.Registry) *metrics.Collector {
	return metrics.NewCollector(reg)
}

// newSources lists the adapters in priority order: archive, live search,
// feed, mirror.
func newSources(cfg *config.Config, log logger.Logger, clock clockwork.Clock) []source.Source {
	httpClient := source.NewHTTPClient(cfg.Reddit.RequestTimeout, cfg.Reddit.UserAgent)
	pager := source.NewPager(cfg, log)
	pager.Clock = clock
	pager.Retry.Clock = clock

	return []source.Source{
		arcticshift.New(arcticshift.Options{HTTP: httpClient, Pager: pager, Logger: log}),
		redditsearch.New(redditsearch.Options{HTTP: httpClient, Pager: pager, Logger: log}),
		redditrss.New(redditrss.Options{HTTP: httpClient, Pager: pager, Logger: log}),
		pullpush.New(pullpush.Options{HTTP: httpClient, Pager: pager, Logger: log}),
	}
}

type providerSpec struct {
	name  string
	key   string
	model string
	url   string
}

// llmProviders builds the chain members in fallback order. Providers without
// an API key are left out.
func llmProviders(cfg *config.Config, log logger.Logger, clock clockwork.Clock) []llm.Provider {
	specs := []providerSpec{
		{"groq", cfg.LLM.GroqKey, cfg.LLM.GroqModel, cfg.LLM.GroqURL},
		{"cerebras", cfg.LLM.CerebrasKey, cfg.LLM.CerebrasModel, cfg.LLM.CerebrasURL},
		{"sambanova", cfg.LLM.SambaNovaKey, cfg.LLM.SambaNovaModel, cfg.LLM.SambaNovaURL},
		{"mistral", cfg.LLM.MistralKey, cfg.LLM.MistralModel, cfg.LLM.MistralURL},
	}

	var providers []llm.Provider
	for _, s := range specs {
		if s.key == "" {
			continue
		}
		providers = append(providers, openai.New(openai.Config{
			Name:       s.name,
			APIURL:     s.url,
			APIKey:     s.key,
			Model:      s.model,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: cfg.LLM.MaxRetries,
			RetryStep:  cfg.LLM.RetryStep,
			LimitStep:  cfg.LLM.LimitStep,
			Clock:      clock,
		}, log))
	}
	return providers
}

func newChain(cfg *config.Config, log logger.Logger, clock clockwork.Clock, m *metrics.Collector) *llm.Chain {
	chain := llm.NewChain(llmProviders(cfg, log, clock), log, m)
	if chain.Empty() {
		log.Warn("No LLM provider configured, posts will be classified by keyword heuristic only")
	} else {
		log.Info("LLM providers configured", "providers", chain.Names())
	}
	return chain
}
