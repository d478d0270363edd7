package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST" env-default:"localhost"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Telegram struct {
		Token           string        `env:"RESEARCH_BOT_TOKEN" env-required:"true"`
		AuthorizedUsers []int64       `env:"AUTHORIZED_USERS" env-separator:","`
		CommandInterval time.Duration `env:"COMMAND_INTERVAL" env-default:"3s"`
		CommandBurst    int           `env:"COMMAND_BURST" env-default:"3"`
	}
	LLM struct {
		Temperature float64       `env:"LLM_TEMPERATURE" env-default:"0.1"`
		MaxTokens   int           `env:"LLM_MAX_TOKENS" env-default:"256"`
		Timeout     time.Duration `env:"LLM_TIMEOUT" env-default:"30s"`
		MaxRetries  uint64        `env:"LLM_MAX_RETRIES" env-default:"2"`
		RetryStep   time.Duration `env:"LLM_RETRY_STEP" env-default:"2s"`
		LimitStep   time.Duration `env:"LLM_RATE_LIMIT_STEP" env-default:"5s"`

		GroqKey   string `env:"GROQ_API_KEY"`
		GroqModel string `env:"GROQ_MODEL" env-default:"llama-3.1-8b-instant"`
		GroqURL   string `env:"GROQ_API_URL" env-default:"https://api.groq.com/openai/v1"`

		CerebrasKey   string `env:"CEREBRAS_API_KEY"`
		CerebrasModel string `env:"CEREBRAS_MODEL" env-default:"llama-3.3-70b"`
		CerebrasURL   string `env:"CEREBRAS_API_URL" env-default:"https://api.cerebras.ai/v1"`

		SambaNovaKey   string `env:"SAMBANOVA_API_KEY"`
		SambaNovaModel string `env:"SAMBANOVA_MODEL" env-default:"Meta-Llama-3.3-70B-Instruct"`
		SambaNovaURL   string `env:"SAMBANOVA_API_URL" env-default:"https://api.sambanova.ai/v1"`

		MistralKey   string `env:"MISTRAL_API_KEY"`
		MistralModel string `env:"MISTRAL_MODEL" env-default:"mistral-small-latest"`
		MistralURL   string `env:"MISTRAL_API_URL" env-default:"https://api.mistral.ai/v1"`
	}
	Reddit struct {
		UserAgent      string        `env:"REDDIT_USER_AGENT" env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"`
		PageDelay      time.Duration `env:"REDDIT_PAGE_DELAY" env-default:"2s"`
		RequestTimeout time.Duration `env:"REDDIT_REQUEST_TIMEOUT" env-default:"30s"`
		MaxRetries     uint64        `env:"REDDIT_MAX_RETRIES" env-default:"2"`
		RetryStep      time.Duration `env:"REDDIT_RETRY_STEP" env-default:"2s"`
		BlockedStep    time.Duration `env:"REDDIT_BLOCKED_STEP" env-default:"3s"`
	}
	Research struct {
		BrandsPath       string        `env:"BRANDS_CONFIG_PATH" env-default:"./brands.json"`
		LookbackDays     int           `env:"RESEARCH_LOOKBACK_DAYS" env-default:"90"`
		BatchSize        int           `env:"RESEARCH_BATCH_SIZE" env-default:"10"`
		Cooldown         time.Duration `env:"RESEARCH_COOLDOWN" env-default:"2s"`
		LimitedCooldown  time.Duration `env:"RESEARCH_LIMITED_COOLDOWN" env-default:"15s"`
		CircuitThreshold uint          `env:"RESEARCH_CIRCUIT_THRESHOLD" env-default:"5"`
		PageLimit        int           `env:"RESEARCH_PAGE_LIMIT" env-default:"100"`
		ProbeCacheTTL    time.Duration `env:"PROBE_CACHE_TTL" env-default:"10m"`
		Workers          int           `env:"RESEARCH_WORKERS" env-default:"2"`
		Retention        time.Duration `env:"RESEARCH_RETENTION" env-default:"720h"`
	}
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Pass,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Name,
		c.Postgres.SslMode,
	)
}

// Lookback returns the research window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Research.LookbackDays) * 24 * time.Hour
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}
