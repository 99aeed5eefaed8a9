// Package backend is the HTTP client for the exercise backend: task catalog,
// sandboxed execution, style checks, AI feedback and chat.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

// RequestIDHeader carries a per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Client talks to the exercise backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	guard      *Guard
}

// Config holds configuration for the backend client
type Config struct {
	BaseURL string        // default: http://127.0.0.1:8000
	Timeout time.Duration // default: 120s
	Guard   *Guard        // optional resilience wrapper
}

// NewClient creates a backend client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:8000"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: newHTTPClient(cfg.Timeout),
		guard:      cfg.Guard,
	}
}

// BaseURL returns the backend root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases resilience resources
func (c *Client) Close() error {
	return c.guard.Close()
}

type taskListResponse struct {
	Tasks []domain.TaskSummary `json:"tasks"`
}

type taskResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MessedCode  string `json:"messed_code"`
	Topic       string `json:"topic"`
}

type linesRequest struct {
	Lines []string `json:"lines"`
}

type runResponse struct {
	Res string `json:"res"`
}

type manualCheckResponse struct {
	Res []string `json:"res"`
}

type feedbackEnvelope struct {
	Res json.RawMessage `json:"res"`
}

// feedbackPayload is the decoded res document. Models sometimes write the
// score as 92.0 or "92", so it is parsed separately.
type feedbackPayload struct {
	Answer string          `json:"answer"`
	Hints  []string        `json:"hints"`
	Score  json.RawMessage `json:"score"`
}

type chatRequest struct {
	Role    string              `json:"role"`
	Input   string              `json:"input"`
	History []domain.Suggestion `json:"llm_history"`
}

type chatResponse struct {
	Content string `json:"content"`
}

// ListTasks fetches the flat task list. Both {"tasks": [...]} and a bare
// array are accepted.
func (c *Client) ListTasks(ctx context.Context) ([]domain.TaskSummary, error) {
	body, err := c.do(ctx, http.MethodGet, "/tasks", "", nil)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tasks []domain.TaskSummary
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, fmt.Errorf("list tasks: %w: %v", ErrNotJSON, err)
		}
		return tasks, nil
	}

	var resp taskListResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("list tasks: %w: %v", ErrNotJSON, err)
	}
	if resp.Tasks == nil {
		resp.Tasks = []domain.TaskSummary{}
	}
	return resp.Tasks, nil
}

// GetTask fetches a single task. A 404 wraps domain.ErrTaskNotFound.
func (c *Client) GetTask(ctx context.Context, id int) (*domain.Task, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d", id), "", nil)
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("get task %d: %w: %w", id, domain.ErrTaskNotFound, err)
		}
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}

	var resp taskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("get task %d: %w: %v", id, ErrNotJSON, err)
	}

	return &domain.Task{
		ID:          resp.ID,
		Name:        resp.Name,
		Description: resp.Description,
		Topic:       resp.Topic,
		InitialCode: resp.MessedCode,
	}, nil
}

// Run executes lines in the backend sandbox
func (c *Client) Run(ctx context.Context, taskID int, lines []string) (domain.ExecutionResult, error) {
	payload, err := marshalLines(lines)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/run", taskID), "application/json", payload)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("run code: %w", err)
	}

	var resp runResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("run code: %w: %v", ErrNotJSON, err)
	}
	return domain.NewExecutionResult(resp.Res), nil
}

// ManualCheck runs the style checker over lines
func (c *Client) ManualCheck(ctx context.Context, taskID int, lines []string) (domain.ManualCheckResult, error) {
	payload, err := marshalLines(lines)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/task/%d/manual_quality_checker", taskID), "application/json", payload)
	if err != nil {
		return nil, fmt.Errorf("style check: %w", err)
	}

	var resp manualCheckResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("style check: %w: %v", ErrNotJSON, err)
	}
	if resp.Res == nil {
		return domain.ManualCheckResult{}, nil
	}
	return domain.ManualCheckResult(resp.Res), nil
}

// Suggest asks the AI checker to review code. The code travels both as the
// request query parameter and as the raw body.
func (c *Client) Suggest(ctx context.Context, taskID int, code string) (domain.Suggestion, error) {
	path := fmt.Sprintf("/task/%d/AI_checker?request=%s", taskID, url.QueryEscape(code))

	body, err := c.do(ctx, http.MethodPost, path, "text/plain; charset=utf-8", []byte(code))
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("ai feedback: %w", err)
	}

	s, err := DecodeSuggestion(body)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("ai feedback: %w", err)
	}
	return s, nil
}

// DecodeSuggestion unpacks the AI checker response. The envelope's res
// field is itself a JSON document encoded as a string.
func DecodeSuggestion(body []byte) (domain.Suggestion, error) {
	var env feedbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: %v", ErrEnvelopeDecode, err)
	}
	if len(env.Res) == 0 {
		return domain.Suggestion{}, fmt.Errorf("%w: missing res", ErrEnvelopeDecode)
	}

	var inner string
	if err := json.Unmarshal(env.Res, &inner); err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: res is not a string: %v", ErrEnvelopeDecode, err)
	}

	var p feedbackPayload
	if err := json.Unmarshal([]byte(inner), &p); err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}
	score, err := parseScore(p.Score)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}

	s := domain.Suggestion{Answer: p.Answer, Hints: p.Hints, Score: score}
	if !s.ValidScore() {
		return domain.Suggestion{}, fmt.Errorf("%w: %w: %d", ErrPayloadDecode, domain.ErrScoreOutOfRange, s.Score)
	}
	if s.Hints == nil {
		s.Hints = []string{}
	}
	return s, nil
}

// parseScore accepts a JSON number or a numeric string and rounds it to the
// nearest integer. A missing score reads as 0.
func parseScore(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("score: %v", err)
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("score %s is not a number", raw)
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s", domain.ErrScoreOutOfRange, raw)
	}
	return int(math.Round(f)), nil
}

// Chat sends one user turn. history is the whole suggestion log.
func (c *Client) Chat(ctx context.Context, input string, history []domain.Suggestion) (string, error) {
	if history == nil {
		history = []domain.Suggestion{}
	}

	payload, err := json.Marshal(chatRequest{
		Role:    string(domain.ChatRoleUser),
		Input:   input,
		History: history,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/chat", "application/json", payload)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("chat: %w: %v", ErrNotJSON, err)
	}
	return resp.Content, nil
}

// Ping checks that the backend answers on the task list route
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListTasks(ctx)
	return err
}

func marshalLines(lines []string) ([]byte, error) {
	if lines == nil {
		lines = []string{}
	}
	payload, err := json.Marshal(linesRequest{Lines: lines})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return payload, nil
}

// do performs one guarded round trip and returns the body of a 2xx response
func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	resp, err := c.guard.Execute(ctx, func(ctx context.Context) (*rawResponse, error) {
		return c.roundTrip(ctx, method, path, contentType, payload)
	})
	if err != nil {
		return nil, err
	}

	if resp.status < 200 || resp.status > 299 {
		return nil, newHTTPError(resp.status, resp.body)
	}
	return resp.body, nil
}

// roundTrip reports server errors (5xx) as failures so the guard can count
// them; any other status is returned as a response.
func (c *Client) roundTrip(ctx context.Context, method, path, contentType string, payload []byte) (*rawResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, newHTTPError(resp.StatusCode, body)
	}
	return &rawResponse{status: resp.StatusCode, body: body}, nil
}
