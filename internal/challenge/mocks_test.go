package challenge

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

type mockBackend struct {
	mu sync.Mutex

	tasks map[int]*domain.Task

	runErr   error
	checkErr error
	suggest  []domain.Suggestion // consumed in order; last one repeats
	suggErr  error

	// hold Suggest and Run until closed
	suggestGate chan struct{}
	runGate     chan struct{}

	getCalls     int
	runLines     [][]string
	suggestCodes []string
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		tasks: map[int]*domain.Task{
			1: {ID: 1, Name: "one", Topic: "A", InitialCode: "x=1\ny=2"},
			2: {ID: 2, Name: "two", Topic: "A", InitialCode: "z=3"},
		},
	}
}

func (m *mockBackend) GetTask(ctx context.Context, id int) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockBackend) Run(ctx context.Context, taskID int, lines []string) (domain.ExecutionResult, error) {
	if m.runGate != nil {
		<-m.runGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runLines = append(m.runLines, lines)
	if m.runErr != nil {
		return domain.ExecutionResult{}, m.runErr
	}
	return domain.NewExecutionResult("ran " + strings.Join(lines, ";")), nil
}

func (m *mockBackend) ManualCheck(ctx context.Context, taskID int, lines []string) (domain.ManualCheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	if len(lines) > 1 {
		return domain.ManualCheckResult{"too many lines"}, nil
	}
	return domain.ManualCheckResult{}, nil
}

func (m *mockBackend) Suggest(ctx context.Context, taskID int, code string) (domain.Suggestion, error) {
	if m.suggestGate != nil {
		<-m.suggestGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestCodes = append(m.suggestCodes, code)
	if m.suggErr != nil {
		return domain.Suggestion{}, m.suggErr
	}
	if len(m.suggest) == 0 {
		return domain.Suggestion{}, errors.New("no suggestion configured")
	}
	s := m.suggest[0]
	if len(m.suggest) > 1 {
		m.suggest = m.suggest[1:]
	}
	return s, nil
}

func (m *mockBackend) suggestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.suggestCodes)
}

type memLog struct {
	mu        sync.Mutex
	records   []domain.Suggestion
	appendErr error
	scoreErr  error
}

func (l *memLog) Append(s domain.Suggestion) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.records = append(l.records, s)
	return nil
}

func (l *memLog) LatestScore() (int, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scoreErr != nil {
		return 0, false, l.scoreErr
	}
	if len(l.records) == 0 {
		return 0, false, nil
	}
	return l.records[len(l.records)-1].Score, true, nil
}

func (l *memLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
