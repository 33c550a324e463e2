package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/gokatarajesh/fluentflow/internal/exam"
)

// App holds core runtime configuration for the exam API.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"fluentflow"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat               string        `env:"LOG_FORMAT" envDefault:""`

	Exam      Exam
	Generator Generator
	Security  Security
	Postgres  Postgres
	Redis     Redis
	Archive   Archive
	Stats     Stats
	CORS      CORS
}

// Exam groups session defaults. They apply to every session and are not adjustable per session.
type Exam struct {
	TotalQuestions    int           `env:"EXAM_TOTAL_QUESTIONS" envDefault:"20"`
	TimeLimit         time.Duration `env:"EXAM_TIME_LIMIT" envDefault:"480s"`
	TickInterval      time.Duration `env:"EXAM_TICK_INTERVAL" envDefault:"1s"`
	DefaultDifficulty string        `env:"EXAM_DEFAULT_DIFFICULTY" envDefault:"TOEFL Basic"`
	RequestTimeout    time.Duration `env:"QUESTION_REQUEST_TIMEOUT" envDefault:"2m"`
	SessionIdleTTL    time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	JanitorInterval   time.Duration `env:"SESSION_JANITOR_INTERVAL" envDefault:"1m"`
}

// Generator configures the HTTP question source.
type Generator struct {
	URL        string        `env:"GENERATOR_URL" envDefault:"http://localhost:5000"`
	APIKey     string        `env:"GENERATOR_API_KEY" envDefault:""`
	Timeout    time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"30s"`
	MaxRetries uint64        `env:"GENERATOR_MAX_RETRIES" envDefault:"2"`
	RetryBase  time.Duration `env:"GENERATOR_RETRY_BASE" envDefault:"200ms"`
}

// Security stores secrets for signing session tokens.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL  time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"2h"`
}

// Postgres captures connection info for the archive database. Only required when the archive
// is enabled.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"PG_MAX_CONNS" envDefault:"10"`
}

// Redis holds the stats backend. An empty address disables statistics.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Archive governs persistence of completed sessions.
type Archive struct {
	Enabled      bool          `env:"ARCHIVE_ENABLED" envDefault:"false"`
	QueueSize    int           `env:"ARCHIVE_QUEUE_SIZE" envDefault:"256"`
	WriteTimeout time.Duration `env:"ARCHIVE_WRITE_TIMEOUT" envDefault:"5s"`
}

// Stats configures the Redis keys and channel used for difficulty statistics.
type Stats struct {
	Channel   string `env:"STATS_CHANNEL" envDefault:"stats:updates"`
	KeyPrefix string `env:"STATS_KEY_PREFIX" envDefault:"stats"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// GeneratorServer configures the standalone question generation service.
type GeneratorServer struct {
	Name           string        `env:"APP_NAME" envDefault:"fluentflow-generator"`
	Env            string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr       string        `env:"GENERATOR_HTTP_ADDR" envDefault:"0.0.0.0:5000"`
	RequestTimeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"60s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:""`

	OpenAI OpenAI
	CORS   CORS
}

// OpenAI holds the upstream chat completion backend.
type OpenAI struct {
	APIKey  string `env:"OPENAI_API_KEY,notEmpty"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadGenerator parses the generation service configuration.
func LoadGenerator(ctx context.Context) (*GeneratorServer, error) {
	cfg := &GeneratorServer{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse generator config: %w", err)
	}
	return cfg, nil
}

// LoadPostgres parses and validates only the database settings.
func LoadPostgres() (Postgres, error) {
	var pg Postgres
	if err := env.ParseWithOptions(&pg, env.Options{RequiredIfNoDef: true}); err != nil {
		return Postgres{}, fmt.Errorf("parse postgres config: %w", err)
	}
	if err := pg.Validate(); err != nil {
		return Postgres{}, err
	}
	return pg, nil
}

// Validate checks cross-field constraints the struct tags cannot express.
func (a *App) Validate() error {
	var errs []error
	if a.Exam.TotalQuestions <= 0 {
		errs = append(errs, errors.New("EXAM_TOTAL_QUESTIONS must be positive"))
	}
	if a.Exam.TimeLimit < time.Second {
		errs = append(errs, errors.New("EXAM_TIME_LIMIT must be at least 1s"))
	}
	if a.Exam.TickInterval <= 0 {
		errs = append(errs, errors.New("EXAM_TICK_INTERVAL must be positive"))
	}
	if _, err := exam.ParseDifficulty(a.Exam.DefaultDifficulty); err != nil {
		errs = append(errs, fmt.Errorf("EXAM_DEFAULT_DIFFICULTY: %w", err))
	}
	if a.Archive.Enabled {
		if err := a.Postgres.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ARCHIVE_ENABLED requires postgres: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// TimeLimitSeconds is the session time limit in whole seconds.
func (e Exam) TimeLimitSeconds() int {
	return int(e.TimeLimit / time.Second)
}

// Validate reports missing connection fields.
func (p Postgres) Validate() error {
	var missing []error
	if p.User == "" {
		missing = append(missing, errors.New("PG_USER is required"))
	}
	if p.Password == "" {
		missing = append(missing, errors.New("PG_PASSWORD is required"))
	}
	if p.Database == "" {
		missing = append(missing, errors.New("PG_DATABASE is required"))
	}
	return errors.Join(missing...)
}

// DSN renders a libpq style connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// StatsEnabled reports whether a Redis address is configured.
func (a *App) StatsEnabled() bool {
	return a.Redis.Addr != ""
}
