package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	mock_command "github.com/orgball2608/reddit-research-bot/internal/command/mocks"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLLMProvidersSkipMissingKeys(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.CerebrasKey = "c-key"
	cfg.LLM.MistralKey = "m-key"

	providers := llmProviders(cfg, logger.NewNop(), clockwork.NewFakeClock())
	require.Len(t, providers, 2)
	assert.Equal(t, "cerebras", providers[0].Name())
	assert.Equal(t, "mistral", providers[1].Name())

	chain := newChain(&config.Config{}, logger.NewNop(), clockwork.NewFakeClock(), nil)
	assert.True(t, chain.Empty())
}

func TestSourcesInPriorityOrder(t *testing.T) {
	cfg := &config.Config{}
	cfg.Reddit.RequestTimeout = time.Second
	cfg.Reddit.UserAgent = "test"

	var names []string
	for _, s := range newSources(cfg, logger.NewNop(), clockwork.NewFakeClock()) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"arcticshift", "redditsearch", "redditrss", "pullpush"}, names)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	reg := newRegistry()
	newCollector(reg).RecordLLMCall("groq", "success")

	srv := httptest.NewServer(newMux(logger.NewNop(), reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `research_llm_calls_total{outcome="success",provider="groq"} 1`)
}

func TestHandleCommandsRestartsAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	cmd := mock_command.NewMockClient(ctrl)
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		cmd.EXPECT().HandleCommand(gomock.Any()).Return(errors.New("telegram updates channel closed")),
		cmd.EXPECT().HandleCommand(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		}),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleCommands(ctx, logger.NewNop(), clock, cmd)
	}()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(restartDelay)
	<-done
}
