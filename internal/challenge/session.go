// Package challenge runs one exercise attempt: it loads the task, holds the
// code buffer, requests checks and AI feedback on demand, and gates
// submission on the latest score.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

var (
	ErrTaskUnavailable = errors.New("task unavailable")
	ErrNoTask          = errors.New("no task open")
	ErrOutcomePending  = errors.New("an outcome is showing")
	ErrNoOutcome       = errors.New("no outcome to act on")
	ErrSuperseded      = errors.New("superseded by a newer open")
)

// Key identifies a session view: a task under a mission
type Key struct {
	TaskID int
	Mode   domain.Mode
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.TaskID, k.Mode)
}

// Options configures a Session
type Options struct {
	PassThreshold int

	// AwaitSuggestion makes Submit without a score wait for the triggered
	// suggestion and evaluate it. When false Submit returns NoDecision and
	// the user has to submit again.
	AwaitSuggestion bool

	Query QueryOptions
}

// DefaultOptions returns the stock behaviour
func DefaultOptions() Options {
	return Options{
		PassThreshold:   DefaultPassThreshold,
		AwaitSuggestion: true,
		Query:           QueryOptions{Policy: PolicyRace},
	}
}

// Session is the orchestrator for one exercise attempt
type Session struct {
	id   string
	api  Backend
	log  SuggestionLog
	opts Options

	check   *Query[domain.CheckReport]
	suggest *Query[domain.Suggestion]

	mu       sync.Mutex
	key      Key
	task     *domain.Task
	buffer   Buffer
	gate     Gate
	openSeq  uint64
	openedAt time.Time
}

// NewSession creates a session with no task open
func NewSession(api Backend, log SuggestionLog, opts Options) *Session {
	if opts.PassThreshold <= 0 {
		opts.PassThreshold = DefaultPassThreshold
	}
	if opts.Query.Policy == "" {
		opts.Query.Policy = PolicyRace
	}

	return &Session{
		id:      uuid.NewString(),
		api:     api,
		log:     log,
		opts:    opts,
		check:   NewQuery[domain.CheckReport]("check", opts.Query),
		suggest: NewQuery[domain.Suggestion]("suggest", opts.Query),
		gate:    NewGate(opts.PassThreshold),
	}
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// Close waits for in-flight checks and suggestions and releases the
// query queues. Calls started afterwards fail.
func (s *Session) Close() error {
	return errors.Join(s.check.Close(), s.suggest.Close())
}

// Open loads a task and seeds the buffer for mode. Every call fetches the
// task again, so reopening the same id under another mode re-seeds.
// On failure the session holds no task.
func (s *Session) Open(ctx context.Context, taskID int, mode domain.Mode) (*domain.Task, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}

	s.mu.Lock()
	s.openSeq++
	seq := s.openSeq
	s.mu.Unlock()

	task, err := s.api.GetTask(ctx, taskID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.openSeq {
		return nil, ErrSuperseded
	}

	s.resetView()
	s.key = Key{TaskID: taskID, Mode: mode}

	if err != nil {
		slog.Warn("task load failed", "session", s.id, "task_id", taskID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTaskUnavailable, err)
	}

	s.task = task
	s.buffer = NewBuffer(task.SeedCode(mode))
	s.openedAt = time.Now()

	slog.Info("task opened", "session", s.id, "task_id", taskID, "mode", mode)

	cp := *task
	return &cp, nil
}

// resetView clears per-view state. Caller holds s.mu.
func (s *Session) resetView() {
	s.task = nil
	s.buffer = NewBuffer("")
	s.gate.Close()
	s.check.Reset()
	s.suggest.Reset()
}

// Threshold returns the score a submission must exceed
func (s *Session) Threshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gate.Threshold()
}

// Task returns a copy of the open task
func (s *Session) Task() (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task == nil {
		return nil, ErrNoTask
	}
	cp := *s.task
	return &cp, nil
}

// Key returns the current view key
func (s *Session) Key() Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.key
}

// Code returns the buffer text
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buffer.Text()
}

// Lines returns the buffer line view
func (s *Session) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buffer.Lines()
}

// SetCode replaces the buffer. Edits are refused while an outcome shows.
func (s *Session) SetCode(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	s.buffer.SetText(text)
	return nil
}

// SetLines replaces the buffer from a line view
func (s *Session) SetLines(lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	s.buffer.SetLines(lines)
	return nil
}

func (s *Session) editable() error {
	if s.task == nil {
		return ErrNoTask
	}
	if s.gate.Decided() {
		return ErrOutcomePending
	}
	return nil
}

// StartCheck sends the current lines to the run and style endpoints
// concurrently. Both must succeed for the report to replace the previous
// one.
func (s *Session) StartCheck(ctx context.Context) *Call[domain.CheckReport] {
	s.mu.Lock()
	if s.task == nil {
		s.mu.Unlock()
		return failedCall[domain.CheckReport](ErrNoTask)
	}
	defer s.mu.Unlock()
	taskID := s.task.ID
	lines := s.buffer.Lines()

	// started under s.mu so the call belongs to this view's epoch
	return s.check.Start(ctx, func(ctx context.Context) (domain.CheckReport, error) {
		var report domain.CheckReport

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			res, err := s.api.Run(gctx, taskID, lines)
			if err != nil {
				return err
			}
			report.Execution = res
			return nil
		})
		g.Go(func() error {
			res, err := s.api.ManualCheck(gctx, taskID, lines)
			if err != nil {
				return err
			}
			report.ManualCheck = res
			return nil
		})

		if err := g.Wait(); err != nil {
			slog.Warn("check failed", "session", s.id, "task_id", taskID, "error", err)
			return domain.CheckReport{}, err
		}
		return report, nil
	})
}

// Check runs StartCheck and waits for it
func (s *Session) Check(ctx context.Context) (domain.CheckReport, error) {
	return s.StartCheck(ctx).Wait(ctx)
}

// CheckState returns the check query snapshot
func (s *Session) CheckState() QueryState[domain.CheckReport] {
	return s.check.State()
}

// StartSuggest asks for AI feedback on the current code. A successful
// response is appended to the suggestion log, which also makes its score
// current. Nothing is written on failure.
func (s *Session) StartSuggest(ctx context.Context) *Call[domain.Suggestion] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startSuggestLocked(ctx)
}

// startSuggestLocked snapshots the view and starts the request. Caller
// holds s.mu, so the call belongs to this view's epoch.
func (s *Session) startSuggestLocked(ctx context.Context) *Call[domain.Suggestion] {
	if s.task == nil {
		return failedCall[domain.Suggestion](ErrNoTask)
	}
	taskID := s.task.ID
	code := s.buffer.Text()

	return s.suggest.Start(ctx, func(ctx context.Context) (domain.Suggestion, error) {
		sug, err := s.api.Suggest(ctx, taskID, code)
		if err != nil {
			slog.Warn("suggestion failed", "session", s.id, "task_id", taskID, "error", err)
			return domain.Suggestion{}, err
		}

		if err := s.log.Append(sug); err != nil {
			slog.Error("suggestion not recorded", "session", s.id, "error", err)
			return domain.Suggestion{}, err
		}

		slog.Info("suggestion recorded", "session", s.id, "task_id", taskID, "score", sug.Score)
		return sug, nil
	})
}

// Suggest runs StartSuggest and waits for it
func (s *Session) Suggest(ctx context.Context) (domain.Feedback, error) {
	sug, err := s.StartSuggest(ctx).Wait(ctx)
	if err != nil {
		return domain.Feedback{}, err
	}
	return sug.Feedback(), nil
}

// SuggestState returns the suggestion query snapshot
func (s *Session) SuggestState() QueryState[domain.Suggestion] {
	return s.suggest.State()
}

// Feedback returns the displayable part of the last suggestion in this view
func (s *Session) Feedback() (domain.Feedback, bool) {
	st := s.suggest.State()
	if !st.HasResult {
		return domain.Feedback{}, false
	}
	return st.Result.Feedback(), true
}

// Submit evaluates the current score against the gate. Without any score
// a suggestion is requested first. If another Open replaces the view while
// Submit waits, nothing is evaluated and ErrSuperseded is returned.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.task == nil {
		s.mu.Unlock()
		return NoDecision, ErrNoTask
	}
	if s.gate.Decided() {
		s.mu.Unlock()
		return s.gate.Outcome(), ErrOutcomePending
	}
	seq := s.openSeq
	s.mu.Unlock()

	score, ok, err := s.log.LatestScore()
	if err != nil {
		return NoDecision, fmt.Errorf("read score: %w", err)
	}

	if !ok {
		call := s.StartSuggest(ctx)
		if !s.opts.AwaitSuggestion {
			return NoDecision, nil
		}

		sug, err := call.Wait(ctx)
		if err != nil {
			return NoDecision, err
		}
		score = sug.Score
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.openSeq {
		slog.Info("submission dropped", "session", s.id, "score", score, "reason", "view replaced")
		return NoDecision, ErrSuperseded
	}
	if s.task == nil {
		return NoDecision, ErrNoTask
	}
	if s.gate.Decided() {
		return s.gate.Outcome(), ErrOutcomePending
	}
	outcome := s.gate.Evaluate(score)
	slog.Info("submission evaluated", "session", s.id, "task_id", s.task.ID, "score", score, "outcome", outcome.String())
	return outcome, nil
}

// Outcome returns the gate state
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gate.Outcome()
}

// Continue closes a Success outcome and opens the next task id under the
// same mode.
func (s *Session) Continue(ctx context.Context) (*domain.Task, error) {
	s.mu.Lock()
	if s.gate.Outcome() != Success {
		s.mu.Unlock()
		return nil, ErrNoOutcome
	}
	s.gate.Close()
	next := Key{TaskID: s.key.TaskID + 1, Mode: s.key.Mode}
	s.mu.Unlock()

	return s.Open(ctx, next.TaskID, next.Mode)
}

// TryAgain closes a Failure outcome and requests fresh feedback on the
// same task.
func (s *Session) TryAgain(ctx context.Context) (*Call[domain.Suggestion], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gate.Outcome() != Failure {
		return nil, ErrNoOutcome
	}
	s.gate.Close()
	return s.startSuggestLocked(ctx), nil
}

// Dismiss closes whatever outcome is showing without advancing. Closing a
// Failure also requests fresh feedback; the returned call is nil otherwise.
func (s *Session) Dismiss(ctx context.Context) (*Call[domain.Suggestion], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.gate.Outcome() {
	case NoDecision:
		return nil, ErrNoOutcome
	case Success:
		s.gate.Close()
		return nil, nil
	}
	s.gate.Close()
	return s.startSuggestLocked(ctx), nil
}

// Status is a point-in-time view of the session
type Status struct {
	ID       string
	Key      Key
	Task     *domain.Task
	Code     string
	Outcome  Outcome
	Check    QueryState[domain.CheckReport]
	Suggest  QueryState[domain.Suggestion]
	Score    int
	HasScore bool
	OpenedAt time.Time
}

// Status gathers a snapshot. A score that cannot be read is reported as
// missing.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		ID:       s.id,
		Key:      s.key,
		Code:     s.buffer.Text(),
		Outcome:  s.gate.Outcome(),
		OpenedAt: s.openedAt,
	}
	if s.task != nil {
		cp := *s.task
		st.Task = &cp
	}
	s.mu.Unlock()

	st.Check = s.check.State()
	st.Suggest = s.suggest.State()

	score, ok, err := s.log.LatestScore()
	if err != nil {
		slog.Warn("score unavailable", "session", s.id, "error", err)
	}
	st.Score, st.HasScore = score, ok
	return st
}
