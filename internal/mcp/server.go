// Package mcp exposes the challenge session as MCP tools so an editor agent
// can drive an exercise attempt.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/refacto/internal/app"
	"github.com/felixgeelhaar/refacto/internal/challenge"
	"github.com/felixgeelhaar/refacto/internal/domain"
)

// Server wraps the MCP server with refacto functionality
type Server struct {
	mcpServer *server.Server
	app       *app.App
}

// Config contains configuration for the MCP server
type Config struct {
	App     *app.App
	Version string
}

// NewServer creates a new MCP server for refacto
func NewServer(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{app: cfg.App}

	s.mcpServer = server.New(server.Info{
		Name:    "refacto",
		Version: version,
	}, server.WithInstructions(`
Refacto runs code refactoring challenges against the exercise backend.
One challenge is open at a time.

Available tools:
- refacto_topics: List tasks grouped by topic
- refacto_open: Open a task in refactor or scratch mode
- refacto_code: Replace the code of the open task
- refacto_check: Run the code and the style checker
- refacto_suggest: Get AI feedback (records the score)
- refacto_submit: Submit against the latest score (pass above the threshold)
- refacto_continue: After a pass, open the next task
- refacto_try_again: After a fail, request fresh feedback
- refacto_chat: Ask the assistant about the feedback so far
- refacto_status: Show the open task, outcome and score
`))

	s.registerTools()

	return s
}

// registerTools registers all refacto MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("refacto_topics").
		Description("List available tasks grouped by topic.").
		Handler(s.handleTopics)

	s.mcpServer.Tool("refacto_open").
		Description("Open a task. Refactor mode starts from the task's messy code, scratch mode from an empty buffer.").
		Handler(s.handleOpen)

	s.mcpServer.Tool("refacto_code").
		Description("Replace the code of the open task.").
		Handler(s.handleCode)

	s.mcpServer.Tool("refacto_check").
		Description("Run the code and the style checker together.").
		Handler(s.handleCheck)

	s.mcpServer.Tool("refacto_suggest").
		Description("Request AI feedback on the current code. The score is recorded.").
		Handler(s.handleSuggest)

	s.mcpServer.Tool("refacto_submit").
		Description("Submit the attempt against the latest recorded score.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("refacto_continue").
		Description("After a passing submission, open the next task.").
		Handler(s.handleContinue)

	s.mcpServer.Tool("refacto_try_again").
		Description("After a failing submission, request fresh feedback and keep working.").
		Handler(s.handleTryAgain)

	s.mcpServer.Tool("refacto_chat").
		Description("Ask the assistant a question, grounded on all feedback so far.").
		Handler(s.handleChat)

	s.mcpServer.Tool("refacto_status").
		Description("Show the open task, the gate outcome and the current score.").
		Handler(s.handleStatus)
}

// Input/Output types for tools

type EmptyInput struct{}

type TopicsOutput struct {
	Topics []domain.TopicGroup `json:"topics"`
}

type OpenInput struct {
	TaskID int    `json:"task_id" jsonschema:"description=Task ID"`
	Mode   string `json:"mode,omitempty" jsonschema:"description=Mission: refactor or scratch (default: refactor),enum=refactor,enum=scratch"`
}

type TaskOutput struct {
	TaskID      int    `json:"task_id"`
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
	Code        string `json:"code"`
}

type CodeInput struct {
	Code string `json:"code" jsonschema:"description=Full source of the attempt"`
}

type CodeOutput struct {
	Lines int `json:"lines"`
}

type CheckOutput struct {
	Output      string   `json:"output"`
	IsError     bool     `json:"is_error"`
	StyleIssues []string `json:"style_issues"`
	Summary     string   `json:"summary"`
}

type FeedbackOutput struct {
	Answer string   `json:"answer"`
	Hints  []string `json:"hints"`
}

type SubmitOutput struct {
	Outcome   string `json:"outcome"`
	Score     *int   `json:"score,omitempty"`
	Threshold int    `json:"threshold"`
	Message   string `json:"message"`
}

type ChatInput struct {
	Message string `json:"message" jsonschema:"description=Question for the assistant"`
}

type ChatOutput struct {
	Reply string `json:"reply"`
}

type StatusOutput struct {
	SessionID string `json:"session_id"`
	TaskID    int    `json:"task_id,omitempty"`
	TaskName  string `json:"task_name,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Outcome   string `json:"outcome"`
	Score     *int   `json:"score,omitempty"`
	Checking  bool   `json:"checking"`
	Reviewing bool   `json:"reviewing"`
}

// Tool handlers

func (s *Server) handleTopics(ctx context.Context, _ EmptyInput) (TopicsOutput, error) {
	groups, err := s.app.Catalog.Topics(ctx)
	if err != nil {
		return TopicsOutput{}, fmt.Errorf("failed to load topics: %w", err)
	}
	return TopicsOutput{Topics: groups}, nil
}

func (s *Server) handleOpen(ctx context.Context, input OpenInput) (TaskOutput, error) {
	mode := domain.ModeRefactor
	if input.Mode != "" {
		m, err := domain.ParseMode(input.Mode)
		if err != nil {
			return TaskOutput{}, err
		}
		mode = m
	}

	task, err := s.app.Open(ctx, input.TaskID, mode)
	if err != nil {
		return TaskOutput{}, err
	}
	return s.taskOutput(task, mode), nil
}

func (s *Server) handleCode(ctx context.Context, input CodeInput) (CodeOutput, error) {
	if err := s.app.Session.SetCode(input.Code); err != nil {
		return CodeOutput{}, err
	}
	return CodeOutput{Lines: len(s.app.Session.Lines())}, nil
}

func (s *Server) handleCheck(ctx context.Context, _ EmptyInput) (CheckOutput, error) {
	report, err := s.app.Session.Check(ctx)
	if err != nil {
		return CheckOutput{}, fmt.Errorf("check failed: %w", err)
	}

	issues := []string(report.ManualCheck)
	if issues == nil {
		issues = []string{}
	}

	var summary []string
	if report.Execution.IsError {
		summary = append(summary, "Run: ✗")
	} else {
		summary = append(summary, "Run: ✓")
	}
	if report.ManualCheck.Clean() {
		summary = append(summary, "Style: ✓")
	} else {
		summary = append(summary, fmt.Sprintf("Style: %d issue(s)", len(issues)))
	}

	return CheckOutput{
		Output:      report.Execution.Output,
		IsError:     report.Execution.IsError,
		StyleIssues: issues,
		Summary:     strings.Join(summary, " | "),
	}, nil
}

func (s *Server) handleSuggest(ctx context.Context, _ EmptyInput) (FeedbackOutput, error) {
	fb, err := s.app.Session.Suggest(ctx)
	if err != nil {
		return FeedbackOutput{}, fmt.Errorf("feedback failed: %w", err)
	}
	return FeedbackOutput{Answer: fb.Answer, Hints: fb.Hints}, nil
}

func (s *Server) handleSubmit(ctx context.Context, _ EmptyInput) (SubmitOutput, error) {
	outcome, err := s.app.Session.Submit(ctx)
	if err != nil && !errors.Is(err, challenge.ErrOutcomePending) {
		return SubmitOutput{}, err
	}

	out := SubmitOutput{
		Outcome:   outcome.String(),
		Threshold: s.app.Session.Threshold(),
	}
	if score, ok, _ := s.app.Log.LatestScore(); ok {
		out.Score = &score
	}

	switch outcome {
	case challenge.Success:
		out.Message = "Passed. Use refacto_continue for the next task."
	case challenge.Failure:
		out.Message = "Not there yet. Use refacto_try_again for fresh feedback."
	default:
		out.Message = "No score yet. Feedback was requested; submit again once it arrives."
	}
	return out, nil
}

func (s *Server) handleContinue(ctx context.Context, _ EmptyInput) (TaskOutput, error) {
	task, err := s.app.Continue(ctx)
	if err != nil {
		return TaskOutput{}, err
	}
	return s.taskOutput(task, s.app.Session.Key().Mode), nil
}

func (s *Server) handleTryAgain(ctx context.Context, _ EmptyInput) (FeedbackOutput, error) {
	call, err := s.app.Session.TryAgain(ctx)
	if err != nil {
		return FeedbackOutput{}, err
	}

	sug, err := call.Wait(ctx)
	if err != nil {
		return FeedbackOutput{}, fmt.Errorf("feedback failed: %w", err)
	}
	fb := sug.Feedback()
	return FeedbackOutput{Answer: fb.Answer, Hints: fb.Hints}, nil
}

func (s *Server) handleChat(ctx context.Context, input ChatInput) (ChatOutput, error) {
	// a reply that never arrived would block the conversation
	if s.app.Chat.Pending() {
		if _, err := s.app.Chat.Retract(); err != nil {
			return ChatOutput{}, err
		}
	}

	answer, err := s.app.Chat.Send(ctx, input.Message)
	if err != nil {
		return ChatOutput{}, err
	}
	return ChatOutput{Reply: answer.Content}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ EmptyInput) (StatusOutput, error) {
	st := s.app.Session.Status()

	out := StatusOutput{
		SessionID: st.ID,
		Outcome:   st.Outcome.String(),
		Checking:  st.Check.Pending,
		Reviewing: st.Suggest.Pending,
	}
	if st.Task != nil {
		out.TaskID = st.Task.ID
		out.TaskName = st.Task.Name
		out.Mode = string(st.Key.Mode)
	}
	if st.HasScore {
		score := st.Score
		out.Score = &score
	}
	return out, nil
}

func (s *Server) taskOutput(task *domain.Task, mode domain.Mode) TaskOutput {
	return TaskOutput{
		TaskID:      task.ID,
		Name:        task.Name,
		Topic:       task.Topic,
		Description: task.Description,
		Mode:        string(mode),
		Code:        s.app.Session.Code(),
	}
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
