package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/normalize"
)

// MaxTextChars caps the document text sent with one question. Reports run
// long; the KPI mention is almost always in the first pages.
const MaxTextChars = 40000

const esgSystemPrompt = `You extract one numeric ESG KPI from a report excerpt. Reply with strict JSON only, no prose.
If the document states the KPI: {"value": <number>, "unit": "<unit token as written>", "confidence": <0.0-1.0>}
If the document does not state it: {"no_answer": true}
Never guess. Never convert units yourself. Use only numbers present in the text.`

// HTTPError is a non-2xx reply from the completion endpoint. Callers branch
// on StatusCode; RetryAfter is the server's backoff hint when present.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm API status %d (retry after %s): %s", e.StatusCode, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("llm API status %d: %s", e.StatusCode, e.Message)
}

// Chat completion request/response types (OpenAI-compatible).
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *responseFmt  `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Answer is one model reply for one KPI.
type Answer struct {
	Value      float64
	Unit       string
	Confidence float64
	NoAnswer   bool
}

// Client sends chat completion requests to one OpenAI-compatible endpoint.
type Client struct {
	cfg    Config
	client http.Client
}

// NewClient resolves env overrides and provider defaults, validates, and
// returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// Name returns a human-readable provider/model label.
func (c *Client) Name() string {
	return c.cfg.Provider + "/" + c.cfg.Model
}

// AskKPI asks the model for one KPI in one attempt. No retries: a missing
// KPI is an acceptable outcome, a stale answer is not.
func (c *Client) AskKPI(ctx context.Context, k catalog.KPI, text string) (Answer, error) {
	if len(text) > MaxTextChars {
		text = text[:MaxTextChars]
	}

	prompt := fmt.Sprintf("KPI: %s\nAccepted unit tokens: %s\nAlso known as: %s\n\nDocument:\n%s",
		k.CanonicalName, strings.Join(unitTokens(k), ", "), strings.Join(k.Aliases, ", "), text)

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}
	ans, err := parseAnswer(raw)
	if err != nil {
		return Answer{}, fmt.Errorf("parsing model answer for %s: %w", k.ID, err)
	}
	return ans, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: esgSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:      300,
		Temperature:    0,
		ResponseFormat: &responseFmt{Type: "json_object"},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", httpError(resp, respBody)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("llm API error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("empty response from llm API")
	}
	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}

func httpError(resp *http.Response, body []byte) *HTTPError {
	he := &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var chat chatResponse
	if json.Unmarshal(body, &chat) == nil && chat.Error != nil && chat.Error.Message != "" {
		he.Message = chat.Error.Message
	}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			he.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return he
}

// modelAnswer is the raw decoded reply. Value stays untyped: models return
// numbers, quoted numbers, and locale-formatted strings like "12,500".
type modelAnswer struct {
	Value      any     `json:"value"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
	NoAnswer   bool    `json:"no_answer"`
}

// parseAnswer decodes the strict-JSON contract, stripping markdown fences
// and repairing near-JSON before giving up.
func parseAnswer(raw string) (Answer, error) {
	s := stripFences(raw)
	if s == "" {
		return Answer{}, fmt.Errorf("empty answer")
	}

	var m modelAnswer
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(s)
		if repairErr != nil {
			return Answer{}, fmt.Errorf("unmarshal failed and repair failed: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &m); err != nil {
			return Answer{}, fmt.Errorf("unmarshal of repaired JSON failed: %w", err)
		}
	}

	if m.NoAnswer {
		return Answer{NoAnswer: true}, nil
	}

	v, ok := coerceValue(m.Value)
	if !ok {
		return Answer{}, fmt.Errorf("answer value %v is not numeric", m.Value)
	}
	return Answer{Value: v, Unit: strings.TrimSpace(m.Unit), Confidence: m.Confidence}, nil
}

func coerceValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return normalize.ParseNumber(t)
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func unitTokens(k catalog.KPI) []string {
	tokens := make([]string, 0, len(k.Units))
	for token := range k.Units {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
