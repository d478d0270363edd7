package commandimpl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/reddit-research-bot/internal/brands"
	"github.com/orgball2608/reddit-research-bot/internal/command"
	"github.com/orgball2608/reddit-research-bot/internal/domain"
	"github.com/orgball2608/reddit-research-bot/internal/ratelimit"
	"github.com/orgball2608/reddit-research-bot/internal/research"
	"github.com/orgball2608/reddit-research-bot/internal/telegram"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

const (
	defaultWorkers      = 2
	defaultLookbackDays = 90
	eventBuffer         = 64
	historyLimit        = 10
)

type Opts struct {
	fx.In

	Telegram telegram.Client
	Research research.Service
	Brands   *brands.Store
	Logger   logger.Logger
	Config   *config.Config
	Clock    clockwork.Clock   `optional:"true"`
	Limiter  ratelimit.Limiter `optional:"true"`
}

// activeRun is one research run of a chat. A run that replaces a still
// running one is queued as its next and executed by the same worker.
type activeRun struct {
	profile domain.BrandProfile
	ctx     context.Context
	cancel  func()

	// guarded by CommandImpl.mu
	next     *activeRun
	finished bool
}

type CommandImpl struct {
	Telegram telegram.Client
	Research research.Service
	Brands   *brands.Store
	Logger   logger.Logger
	Limiter  ratelimit.Limiter

	pool         *ants.Pool
	authorized   map[int64]struct{}
	lookbackDays int

	mu     sync.Mutex
	active map[int64]*activeRun
	runs   sync.WaitGroup
}

func New(opts Opts) (*CommandImpl, error) {
	cfg := opts.Config
	log := opts.Logger.WithComponent("Command")

	workers := cfg.Research.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			log.Error("Panic recovered in research worker", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create research pool: %w", err)
	}

	limiter := opts.Limiter
	if limiter == nil {
		interval := cfg.Telegram.CommandInterval
		if interval <= 0 {
			interval = 3 * time.Second
		}
		burst := cfg.Telegram.CommandBurst
		if burst <= 0 {
			burst = 3
		}
		limiter = ratelimit.NewInMemoryLimiter(1, interval, burst, opts.Clock)
	}

	authorized := make(map[int64]struct{}, len(cfg.Telegram.AuthorizedUsers))
	for _, id := range cfg.Telegram.AuthorizedUsers {
		authorized[id] = struct{}{}
	}

	lookbackDays := cfg.Research.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}

	return &CommandImpl{
		Telegram:     opts.Telegram,
		Research:     opts.Research,
		Brands:       opts.Brands,
		Logger:       log,
		Limiter:      limiter,
		pool:         pool,
		authorized:   authorized,
		lookbackDays: lookbackDays,
		active:       make(map[int64]*activeRun),
	}, nil
}

var _ command.Client = (*CommandImpl)(nil)

func (c *CommandImpl) isAuthorized(userID int64) bool {
	_, ok := c.authorized[userID]
	return ok
}

func (c *CommandImpl) Close() {
	c.mu.Lock()
	for chatID, run := range c.active {
		run.cancel()
		delete(c.active, chatID)
	}
	c.mu.Unlock()

	c.runs.Wait()
	c.pool.Release()
}
