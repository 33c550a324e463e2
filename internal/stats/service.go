package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/exam"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

const (
	defaultChannel = "stats:updates"
	defaultPrefix  = "stats"
)

// Totals aggregates completed sessions for one difficulty.
type Totals struct {
	Difficulty  exam.Difficulty `json:"difficulty"`
	Sessions    int64           `json:"sessions"`
	Answered    int64           `json:"answered"`
	Correct     int64           `json:"correct"`
	Skipped     int64           `json:"skipped"`
	CorrectRate float64         `json:"correct_rate"`
}

// ServiceOptions configures the stats service.
type ServiceOptions struct {
	PubSubChannel  string
	RedisKeyPrefix string
	WriteTimeout   time.Duration
}

// Service keeps per-difficulty counters in Redis hashes and publishes every change over
// Pub/Sub.
type Service struct {
	redis         *redis.Client
	logger        zerolog.Logger
	pubsubChannel string
	prefix        string
	writeTimeout  time.Duration
}

// NewService constructs a stats service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	channel := opts.PubSubChannel
	if channel == "" {
		channel = defaultChannel
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Service{
		redis:         redis,
		logger:        logger.With().Str("component", "stats").Logger(),
		pubsubChannel: channel,
		prefix:        prefix,
		writeTimeout:  timeout,
	}
}

// Channel is the Pub/Sub channel updates are published on.
func (s *Service) Channel() string { return s.pubsubChannel }

// Record adds a completed session's summary to its difficulty counters and publishes the new
// totals.
func (s *Service) Record(ctx context.Context, difficulty exam.Difficulty, summary exam.Summary) error {
	key := s.difficultyKey(difficulty)

	pipe := s.redis.TxPipeline()
	pipe.HIncrBy(ctx, key, "sessions", 1)
	pipe.HIncrBy(ctx, key, "answered", int64(summary.Total))
	pipe.HIncrBy(ctx, key, "correct", int64(summary.Correct))
	pipe.HIncrBy(ctx, key, "skipped", int64(summary.Skipped))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update stats for %s: %w", difficulty, err)
	}

	totals, err := s.Get(ctx, difficulty)
	if err != nil {
		return err
	}
	return s.publish(ctx, totals)
}

// Get reads the totals for one difficulty. Unknown keys read as zero.
func (s *Service) Get(ctx context.Context, difficulty exam.Difficulty) (Totals, error) {
	data, err := s.redis.HGetAll(ctx, s.difficultyKey(difficulty)).Result()
	if err != nil {
		return Totals{}, fmt.Errorf("fetch stats for %s: %w", difficulty, err)
	}

	t := Totals{
		Difficulty: difficulty,
		Sessions:   parseInt(data["sessions"]),
		Answered:   parseInt(data["answered"]),
		Correct:    parseInt(data["correct"]),
		Skipped:    parseInt(data["skipped"]),
	}
	if t.Answered > 0 {
		t.CorrectRate = float64(t.Correct) / float64(t.Answered) * 100
	}
	return t, nil
}

// All returns totals for every difficulty in display order.
func (s *Service) All(ctx context.Context) ([]Totals, error) {
	out := make([]Totals, 0, len(exam.Difficulties))
	for _, d := range exam.Difficulties {
		t, err := s.Get(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// OnEvent records completed sessions. The write runs in the background so the session's event
// delivery is never blocked on Redis.
func (s *Service) OnEvent(e exam.Event) {
	if e.Type != exam.EventCompleted || e.Summary == nil {
		return
	}
	difficulty := e.Difficulty
	summary := *e.Summary
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()
		if err := s.Record(ctx, difficulty, summary); err != nil {
			s.logger.Warn().Err(err).Str("session_id", e.SessionID).Msg("failed to record session stats")
		}
	}()
}

func (s *Service) publish(ctx context.Context, t Totals) error {
	data, err := json.Marshal(toWSPayload(t))
	if err != nil {
		return err
	}
	if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
		return fmt.Errorf("publish stats update: %w", err)
	}
	return nil
}

func (s *Service) difficultyKey(d exam.Difficulty) string {
	return fmt.Sprintf("%s:difficulty:%s", s.prefix, d.Slug())
}

func toWSPayload(t Totals) ws.StatsUpdatePayload {
	return ws.StatsUpdatePayload{
		Difficulty:  string(t.Difficulty),
		Sessions:    t.Sessions,
		Answered:    t.Answered,
		Correct:     t.Correct,
		Skipped:     t.Skipped,
		CorrectRate: t.CorrectRate,
	}
}

func parseInt(val string) int64 {
	if val == "" {
		return 0
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return i
}
