package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ConferenceScanner/internal/config"
	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/ports"
)

const defaultTimeout = 60 * time.Second

// ChatGPTClient implements the extraction and relevance ports backed by
// OpenAI-compatible chat-completion APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	cycleYear  int
	now        func() time.Time
	httpClient *http.Client
	limiter    *rate.Limiter
	schemas    replySchemas
	logger     *slog.Logger
}

var (
	_ ports.Extractor        = (*ChatGPTClient)(nil)
	_ ports.RelevanceChecker = (*ChatGPTClient)(nil)
)

// NewChatGPTClient builds a client from configuration. cycleYear is assumed for
// deadlines quoted without one.
func NewChatGPTClient(cfg config.ChatGPTConfig, cycleYear int, logger *slog.Logger) (*ChatGPTClient, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" || cfg.Model == "" {
		return nil, fmt.Errorf("chatgpt client misconfigured")
	}

	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &ChatGPTClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		cycleYear:  cycleYear,
		now:        time.Now,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		schemas:    schemas,
		logger:     logger,
	}, nil
}

// Extract asks the model for the structured fields of one announcement.
func (c *ChatGPTClient) Extract(ctx context.Context, title, pageText string) (domain.Extraction, error) {
	reply, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: extractionPrompt(title, pageText, c.assumedYear())},
		},
	})
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("extract %q: %w", title, err)
	}

	var out domain.Extraction
	if err := decodeReply(reply, c.schemas.extraction, &out); err != nil {
		return domain.Extraction{}, fmt.Errorf("extract %q: %w", title, err)
	}
	return trimExtraction(out), nil
}

// assumedYear is the configured cycle year, or the year of the call when unset.
func (c *ChatGPTClient) assumedYear() int {
	if c.cycleYear > 0 {
		return c.cycleYear
	}
	return c.now().Year()
}

// CheckRelevance asks the model whether the conference matches the filter.
// A reply without a verdict counts as relevant.
func (c *ChatGPTClient) CheckRelevance(ctx context.Context, title, pageText string, filter domain.TopicFilter) (domain.Relevance, error) {
	maxTokens := relevanceMaxTokens
	reply, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: relevanceSystemPrompt},
			{Role: "user", Content: relevancePrompt(title, pageText, filter)},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return domain.Relevance{}, fmt.Errorf("relevance %q: %w", title, err)
	}

	var out struct {
		Relevant       *bool  `json:"relevant"`
		Reason         string `json:"reason"`
		DetectedTopics string `json:"detected_topics"`
	}
	if err := decodeReply(reply, c.schemas.relevance, &out); err != nil {
		return domain.Relevance{}, fmt.Errorf("relevance %q: %w", title, err)
	}

	relevant := true
	if out.Relevant != nil {
		relevant = *out.Relevant
	}
	return domain.Relevance{
		Relevant:       relevant,
		Reason:         out.Reason,
		DetectedTopics: out.DetectedTopics,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete posts one chat request and returns the first choice's content.
func (c *ChatGPTClient) complete(ctx context.Context, payload chatRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chatgpt response has no choices")
	}

	if c.logger != nil {
		c.logger.Debug("chatgpt completion", "model", c.model, "elapsed", time.Since(started))
	}
	return decoded.Choices[0].Message.Content, nil
}

func trimExtraction(e domain.Extraction) domain.Extraction {
	e.SubmissionDeadline = strings.TrimSpace(e.SubmissionDeadline)
	e.DeadlineDate = strings.TrimSpace(e.DeadlineDate)
	e.ConferenceDates = strings.TrimSpace(e.ConferenceDates)
	e.Location = strings.TrimSpace(e.Location)
	e.KeynoteSpeakers = strings.TrimSpace(e.KeynoteSpeakers)
	e.Description = strings.TrimSpace(e.Description)
	e.Topics = strings.TrimSpace(e.Topics)
	return e
}
