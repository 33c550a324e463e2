package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/gokatarajesh/fluentflow/internal/exam"
)

// Request results reported to a Recorder.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// errEmptyContent is malformed upstream output, so it reads as a parse failure.
var errEmptyContent = fmt.Errorf("%w: generator returned empty content", exam.ErrParse)

// Config holds connection details for the question generation service.
type Config struct {
	GeneratorURL string
	GeneratorKey string
	Timeout      time.Duration
	MaxRetries   uint64
	RetryBase    time.Duration
}

// Recorder observes question requests. internal/metrics implements it.
type Recorder interface {
	ObserveQuestionRequest(result string, elapsed time.Duration)
}

// Client implements exam.QuestionSource over HTTP.
type Client struct {
	httpClient  *http.Client
	config      Config
	recorder    Recorder
	logger      zerolog.Logger
	generateURL string
}

func NewClient(cfg Config, recorder Recorder, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	base := strings.TrimSuffix(cfg.GeneratorURL, "/")

	generateURL := ""
	if base != "" {
		generateURL = base + "/generate-question"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:      cfg,
		recorder:    recorder,
		logger:      logger.With().Str("component", "question_client").Logger(),
		generateURL: generateURL,
	}
}

// BuildPrompt renders the generation prompt for a difficulty.
func BuildPrompt(difficulty exam.Difficulty) string {
	return "Create a " + strings.ToLower(string(difficulty)) +
		" language question with options and the correct answer. " +
		"Format: 'Question: ..., Options: a) ..., b) ..., c) ..., d) ..., Correct Answer: ...', " +
		"no extra words or explanation just show this question"
}

// RequestQuestion asks the generator for one question and returns its raw text. Transport
// errors and 5xx responses are retried with exponential backoff; every failure wraps
// exam.ErrNetwork.
func (c *Client) RequestQuestion(ctx context.Context, difficulty exam.Difficulty) (string, error) {
	if c.generateURL == "" {
		return "", fmt.Errorf("%w: generator endpoint not configured", exam.ErrNetwork)
	}

	body, err := json.Marshal(PromptRequest{Prompt: BuildPrompt(difficulty)})
	if err != nil {
		return "", err
	}

	start := time.Now()
	backoff := retry.WithMaxRetries(c.config.MaxRetries, retry.NewExponential(c.config.RetryBase))
	var (
		attempt int
		content string
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var genErr error
		content, genErr = c.generate(ctx, body)
		if genErr != nil {
			c.logger.Debug().Err(genErr).Int("attempt", attempt).Msg("question request attempt failed")
		}
		return genErr
	})
	c.observe(err, time.Since(start))
	if err != nil {
		c.logger.Warn().Err(err).
			Str("difficulty", string(difficulty)).
			Int("attempts", attempt).
			Msg("question request failed")
		if errors.Is(err, exam.ErrParse) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", exam.ErrNetwork, err)
	}
	return content, nil
}

func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.GeneratorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.GeneratorKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", retry.RetryableError(statusError(resp))
	}
	if resp.StatusCode >= 300 {
		return "", statusError(resp)
	}

	var out ContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode generator payload: %w", exam.ErrParse, err)
	}
	if strings.TrimSpace(out.Content) == "" {
		return "", errEmptyContent
	}
	return out.Content, nil
}

func (c *Client) observe(err error, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.recorder.ObserveQuestionRequest(result, elapsed)
}

func statusError(resp *http.Response) error {
	var payload ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("generator returned status %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("generator returned status %d", resp.StatusCode)
}
