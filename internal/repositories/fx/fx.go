package fx

import (
	"github.com/orgball2608/reddit-research-bot/internal/repositories/run"
	"go.uber.org/fx"
)

// Module provides every postgres-backed repository.
var Module = fx.Options(
	run.Module,
)
