package challenge

import (
	"context"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

// Backend is the part of the exercise backend a session drives
type Backend interface {
	GetTask(ctx context.Context, id int) (*domain.Task, error)
	Run(ctx context.Context, taskID int, lines []string) (domain.ExecutionResult, error)
	ManualCheck(ctx context.Context, taskID int, lines []string) (domain.ManualCheckResult, error)
	Suggest(ctx context.Context, taskID int, code string) (domain.Suggestion, error)
}

// SuggestionLog records AI feedback and exposes the current score
type SuggestionLog interface {
	Append(s domain.Suggestion) error
	LatestScore() (score int, ok bool, err error)
}
