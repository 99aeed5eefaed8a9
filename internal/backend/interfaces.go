package backend

import (
	"context"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

// API is the exercise backend contract consumed by the challenge session
type API interface {
	// ListTasks returns the flat task list
	ListTasks(ctx context.Context) ([]domain.TaskSummary, error)

	// GetTask fetches one task definition
	GetTask(ctx context.Context, id int) (*domain.Task, error)

	// Run executes code in the backend sandbox
	Run(ctx context.Context, taskID int, lines []string) (domain.ExecutionResult, error)

	// ManualCheck runs the style/quality checker
	ManualCheck(ctx context.Context, taskID int, lines []string) (domain.ManualCheckResult, error)

	// Suggest asks the AI checker to review code
	Suggest(ctx context.Context, taskID int, code string) (domain.Suggestion, error)

	// Chat sends one user turn grounded on the suggestion history
	Chat(ctx context.Context, input string, history []domain.Suggestion) (string, error)
}

// Ensure Client implements API
var _ API = (*Client)(nil)
