package classification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/zyxiao/pocketledger/internal/domain/expense"
)

var (
	// ErrLLMUnavailable reports that the model could not be reached after
	// retries.
	ErrLLMUnavailable = errors.New("classification: llm unavailable")
	// ErrBadAnswer reports a model reply that could not be used.
	ErrBadAnswer = errors.New("classification: unusable llm answer")
)

const (
	defaultTimeout = 30 * time.Second
	// Two retries on top of the initial attempt, with exponential backoff
	// starting at one second.
	maxRetries     = 2
	initialBackoff = time.Second
)

// LLMClient talks to an OpenAI-compatible chat completions endpoint.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

func NewLLMClient(baseURL, apiKey, model string, logger *slog.Logger) *LLMClient {
	return &LLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type answer struct {
	CategoryL1 string `json:"category_l1"`
	CategoryL2 string `json:"category_l2"`
}

// Classify asks the model for a category pair inside tax. Answers outside
// the taxonomy are rejected with ErrBadAnswer so the caller can fall back.
func (c *LLMClient) Classify(ctx context.Context, description string, tax *Taxonomy) (*expense.Suggestion, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(tax)},
			{Role: "user", Content: description},
		},
		Temperature:    0.1,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	var content string
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(initialBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		content, callErr = c.complete(ctx, payload)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	ans, err := parseAnswer(content)
	if err != nil {
		return nil, err
	}
	if !tax.Valid(ans.CategoryL1, ans.CategoryL2) {
		return nil, fmt.Errorf("%w: %q/%q not in taxonomy", ErrBadAnswer, ans.CategoryL1, ans.CategoryL2)
	}
	return &expense.Suggestion{L1: ans.CategoryL1, L2: ans.CategoryL2}, nil
}

// complete performs one chat completion round trip.
func (c *LLMClient) complete(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", retry.RetryableError(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("llm request throttled or failed",
			slog.Int("status", resp.StatusCode))
		return "", retry.RetryableError(fmt.Errorf("llm returned %d", resp.StatusCode))
	default:
		return "", fmt.Errorf("llm returned %d: %s", resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// fencedJSON matches a JSON object wrapped in a markdown code fence.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseAnswer pulls the category pair out of the model reply, tolerating
// code fences and prose around the JSON object.
func parseAnswer(content string) (*answer, error) {
	candidate := strings.TrimSpace(content)
	if m := fencedJSON.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	} else if start := strings.Index(candidate, "{"); start >= 0 {
		if end := strings.LastIndex(candidate, "}"); end > start {
			candidate = candidate[start : end+1]
		}
	}

	var ans answer
	if err := json.Unmarshal([]byte(candidate), &ans); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAnswer, err)
	}
	ans.CategoryL1 = strings.TrimSpace(ans.CategoryL1)
	ans.CategoryL2 = strings.TrimSpace(ans.CategoryL2)
	if ans.CategoryL1 == "" {
		return nil, fmt.Errorf("%w: empty category", ErrBadAnswer)
	}
	return &ans, nil
}
