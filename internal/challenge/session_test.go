package challenge

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

func openSession(t *testing.T, api *mockBackend, log *memLog, opts Options) *Session {
	t.Helper()
	s := NewSession(api, log, opts)
	if _, err := s.Open(context.Background(), 1, domain.ModeRefactor); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func waitSuggestIdle(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.SuggestState().Pending {
		if time.Now().After(deadline) {
			t.Fatal("suggestion never completed")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitSuggestPending(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.SuggestState().Pending {
		if time.Now().After(deadline) {
			t.Fatal("suggestion never started")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSession_Open(t *testing.T) {
	s := NewSession(newMockBackend(), &memLog{}, DefaultOptions())

	task, err := s.Open(context.Background(), 1, domain.ModeRefactor)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if task.Name != "one" {
		t.Errorf("task = %+v", task)
	}
	if s.Code() != "x=1\ny=2" {
		t.Errorf("Code() = %q", s.Code())
	}
	if !reflect.DeepEqual(s.Lines(), []string{"x=1", "y=2"}) {
		t.Errorf("Lines() = %q", s.Lines())
	}
	if s.Key() != (Key{TaskID: 1, Mode: domain.ModeRefactor}) {
		t.Errorf("Key() = %v", s.Key())
	}
}

func TestSession_Open_ModeSwitchReseeds(t *testing.T) {
	api := newMockBackend()
	s := NewSession(api, &memLog{}, DefaultOptions())
	ctx := context.Background()

	s.Open(ctx, 1, domain.ModeRefactor)
	s.SetCode("edited")

	s.Open(ctx, 1, domain.ModeScratch)
	if s.Code() != "" || len(s.Lines()) != 0 {
		t.Errorf("scratch buffer = %q", s.Code())
	}

	s.Open(ctx, 1, domain.ModeRefactor)
	if s.Code() != "x=1\ny=2" {
		t.Errorf("refactor buffer = %q", s.Code())
	}
	if api.getCalls != 3 {
		t.Errorf("GetTask calls = %d, want 3", api.getCalls)
	}
}

func TestSession_Open_Failure(t *testing.T) {
	s := NewSession(newMockBackend(), &memLog{}, DefaultOptions())
	ctx := context.Background()

	s.Open(ctx, 1, domain.ModeRefactor)
	_, err := s.Open(ctx, 99, domain.ModeRefactor)
	if !errors.Is(err, ErrTaskUnavailable) {
		t.Fatalf("Open() error = %v, want ErrTaskUnavailable", err)
	}
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Open() should keep the cause, got %v", err)
	}
	if _, err := s.Task(); !errors.Is(err, ErrNoTask) {
		t.Errorf("Task() error = %v, want ErrNoTask", err)
	}
	if err := s.SetCode("x"); !errors.Is(err, ErrNoTask) {
		t.Errorf("SetCode() error = %v, want ErrNoTask", err)
	}
	if _, err := s.Check(ctx); !errors.Is(err, ErrNoTask) {
		t.Errorf("Check() error = %v, want ErrNoTask", err)
	}
}

func TestSession_Open_InvalidMode(t *testing.T) {
	s := NewSession(newMockBackend(), &memLog{}, DefaultOptions())
	if _, err := s.Open(context.Background(), 1, domain.Mode("bogus")); !errors.Is(err, domain.ErrInvalidMode) {
		t.Errorf("Open() error = %v, want ErrInvalidMode", err)
	}
}

func TestSession_Check(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	s := openSession(t, api, &memLog{}, DefaultOptions())

	report, err := s.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if report.Execution.Output != "ran x=1;y=2" || report.Execution.IsError {
		t.Errorf("Execution = %+v", report.Execution)
	}
	if len(report.ManualCheck) != 1 {
		t.Errorf("ManualCheck = %v", report.ManualCheck)
	}

	again, _ := s.Check(context.Background())
	if !reflect.DeepEqual(report, again) {
		t.Errorf("identical input produced %+v then %+v", report, again)
	}

	st := s.CheckState()
	if st.Pending || !st.HasResult || st.Err != nil {
		t.Errorf("CheckState() = %+v", st)
	}
}

func TestSession_Check_FailureKeepsPrevious(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	s := openSession(t, api, &memLog{}, DefaultOptions())
	ctx := context.Background()

	first, err := s.Check(ctx)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	api.mu.Lock()
	api.checkErr = errors.New("style service down")
	api.mu.Unlock()

	s.SetCode("changed")
	if _, err := s.Check(ctx); err == nil {
		t.Fatal("Check() should fail when either call fails")
	}

	st := s.CheckState()
	if !reflect.DeepEqual(st.Result, first) {
		t.Errorf("previous report replaced: %+v", st.Result)
	}
	if st.Err == nil {
		t.Error("CheckState().Err should be set")
	}
}

func TestSession_Suggest(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "better", Hints: []string{"h"}, Score: 40}}
	log := &memLog{}
	s := openSession(t, api, log, DefaultOptions())

	fb, err := s.Suggest(context.Background())
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if fb.Answer != "better" || len(fb.Hints) != 1 {
		t.Errorf("Feedback = %+v", fb)
	}
	if log.len() != 1 {
		t.Errorf("log length = %d, want 1", log.len())
	}
	if score, ok, _ := log.LatestScore(); !ok || score != 40 {
		t.Errorf("LatestScore() = %d, %v", score, ok)
	}
	if api.suggestCodes[0] != "x=1\ny=2" {
		t.Errorf("sent code = %q", api.suggestCodes[0])
	}
}

func TestSession_Suggest_FailureWritesNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggErr = errors.New("bad payload")
	log := &memLog{}
	s := openSession(t, api, log, DefaultOptions())

	if _, err := s.Suggest(context.Background()); err == nil {
		t.Fatal("Suggest() should fail")
	}
	if log.len() != 0 {
		t.Errorf("log length = %d, want 0", log.len())
	}
	if _, ok := s.Feedback(); ok {
		t.Error("no feedback should be exposed")
	}
}

func TestSession_Suggest_LogFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "a", Score: 95}}
	log := &memLog{appendErr: errors.New("disk full")}
	s := openSession(t, api, log, DefaultOptions())

	if _, err := s.Suggest(context.Background()); err == nil {
		t.Fatal("Suggest() should fail when the log cannot be written")
	}
	if _, ok := s.Feedback(); ok {
		t.Error("unrecorded feedback should not be exposed")
	}
}

func TestSession_Submit(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  Outcome
	}{
		{"zero fails", 0, Failure},
		{"threshold fails", 90, Failure},
		{"above threshold passes", 91, Success},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &memLog{records: []domain.Suggestion{{Score: tt.score}}}
			api := newMockBackend()
			s := openSession(t, api, log, DefaultOptions())

			got, err := s.Submit(context.Background())
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Submit() = %v, want %v", got, tt.want)
			}
			if api.suggestCount() != 0 {
				t.Error("Submit() with a score should not fetch a suggestion")
			}
		})
	}
}

func TestSession_Submit_NoScoreAwaits(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "great", Score: 97}}
	log := &memLog{}
	s := openSession(t, api, log, DefaultOptions())

	got, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got != Success {
		t.Errorf("Submit() = %v, want Success", got)
	}
	if log.len() != 1 {
		t.Errorf("log length = %d, want 1", log.len())
	}
}

func TestSession_Submit_NoScoreDeferred(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "meh", Score: 20}}
	log := &memLog{}
	opts := DefaultOptions()
	opts.AwaitSuggestion = false
	s := openSession(t, api, log, opts)

	got, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got != NoDecision {
		t.Errorf("Submit() = %v, want NoDecision", got)
	}

	waitSuggestIdle(t, s)

	got, err = s.Submit(context.Background())
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	if got != Failure {
		t.Errorf("second Submit() = %v, want Failure", got)
	}
}

func TestSession_Submit_NoScoreFetchFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggErr = errors.New("offline")
	s := openSession(t, api, &memLog{}, DefaultOptions())

	got, err := s.Submit(context.Background())
	if err == nil {
		t.Fatal("Submit() should report the failed fetch")
	}
	if got != NoDecision || s.Outcome() != NoDecision {
		t.Errorf("outcome = %v, want NoDecision", got)
	}
}

func TestSession_OutcomeBlocksEdits(t *testing.T) {
	log := &memLog{records: []domain.Suggestion{{Score: 10}}}
	s := openSession(t, newMockBackend(), log, DefaultOptions())

	s.Submit(context.Background())
	if err := s.SetCode("new"); !errors.Is(err, ErrOutcomePending) {
		t.Errorf("SetCode() error = %v, want ErrOutcomePending", err)
	}
	if err := s.SetLines([]string{"new"}); !errors.Is(err, ErrOutcomePending) {
		t.Errorf("SetLines() error = %v, want ErrOutcomePending", err)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrOutcomePending) {
		t.Errorf("Submit() error = %v, want ErrOutcomePending", err)
	}
}

func TestSession_Continue(t *testing.T) {
	api := newMockBackend()
	log := &memLog{records: []domain.Suggestion{{Score: 99}}}
	s := openSession(t, api, log, DefaultOptions())
	ctx := context.Background()

	if _, err := s.Continue(ctx); !errors.Is(err, ErrNoOutcome) {
		t.Errorf("Continue() before submit error = %v", err)
	}

	s.Submit(ctx)
	task, err := s.Continue(ctx)
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if task.ID != 2 {
		t.Errorf("next task = %d, want 2", task.ID)
	}
	if s.Key() != (Key{TaskID: 2, Mode: domain.ModeRefactor}) {
		t.Errorf("Key() = %v", s.Key())
	}
	if s.Outcome() != NoDecision {
		t.Errorf("Outcome() = %v, want NoDecision", s.Outcome())
	}
	if s.Code() != "z=3" {
		t.Errorf("Code() = %q", s.Code())
	}
}

func TestSession_Continue_PastLastTask(t *testing.T) {
	api := newMockBackend()
	log := &memLog{records: []domain.Suggestion{{Score: 99}}}
	s := NewSession(api, log, DefaultOptions())
	ctx := context.Background()

	s.Open(ctx, 2, domain.ModeScratch)
	s.Submit(ctx)
	if _, err := s.Continue(ctx); !errors.Is(err, ErrTaskUnavailable) {
		t.Errorf("Continue() error = %v, want ErrTaskUnavailable", err)
	}
}

func TestSession_TryAgain(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "again", Score: 60}}
	log := &memLog{records: []domain.Suggestion{{Score: 30}}}
	s := openSession(t, api, log, DefaultOptions())
	ctx := context.Background()

	if _, err := s.TryAgain(ctx); !errors.Is(err, ErrNoOutcome) {
		t.Errorf("TryAgain() before submit error = %v", err)
	}

	s.Submit(ctx)
	call, err := s.TryAgain(ctx)
	if err != nil {
		t.Fatalf("TryAgain() error = %v", err)
	}
	if s.Outcome() != NoDecision {
		t.Errorf("Outcome() = %v, want NoDecision", s.Outcome())
	}
	if _, err := call.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if log.len() != 2 {
		t.Errorf("log length = %d, want 2", log.len())
	}
	if s.Key().TaskID != 1 {
		t.Errorf("TryAgain() moved to task %d", s.Key().TaskID)
	}
}

func TestSession_Dismiss(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("success stays on task", func(t *testing.T) {
		api := newMockBackend()
		s := openSession(t, api, &memLog{records: []domain.Suggestion{{Score: 95}}}, DefaultOptions())
		s.Submit(ctx)

		call, err := s.Dismiss(ctx)
		if err != nil || call != nil {
			t.Fatalf("Dismiss() = %v, %v", call, err)
		}
		if s.Outcome() != NoDecision || s.Key().TaskID != 1 {
			t.Errorf("after dismiss: outcome %v task %d", s.Outcome(), s.Key().TaskID)
		}
		if api.suggestCount() != 0 {
			t.Error("dismissing success should not fetch feedback")
		}
	})

	t.Run("failure refetches", func(t *testing.T) {
		api := newMockBackend()
		api.suggest = []domain.Suggestion{{Score: 1}}
		s := openSession(t, api, &memLog{records: []domain.Suggestion{{Score: 5}}}, DefaultOptions())
		s.Submit(ctx)

		call, err := s.Dismiss(ctx)
		if err != nil || call == nil {
			t.Fatalf("Dismiss() = %v, %v", call, err)
		}
		call.Wait(ctx)
		if api.suggestCount() != 1 {
			t.Errorf("suggest calls = %d, want 1", api.suggestCount())
		}
	})

	t.Run("nothing showing", func(t *testing.T) {
		s := openSession(t, newMockBackend(), &memLog{}, DefaultOptions())
		if _, err := s.Dismiss(ctx); !errors.Is(err, ErrNoOutcome) {
			t.Errorf("Dismiss() error = %v, want ErrNoOutcome", err)
		}
	})
}

func TestSession_OpenDiscardsStaleResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "old view", Score: 50}}
	api.suggestGate = make(chan struct{})
	log := &memLog{}
	s := openSession(t, api, log, DefaultOptions())
	ctx := context.Background()

	call := s.StartSuggest(ctx)
	if !s.SuggestState().Pending {
		t.Fatal("suggest should be pending")
	}

	if _, err := s.Open(ctx, 2, domain.ModeRefactor); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	close(api.suggestGate)
	call.Wait(ctx)

	if _, ok := s.Feedback(); ok {
		t.Error("feedback from the previous view leaked into the new one")
	}
	if log.len() != 1 {
		t.Errorf("the log is process-wide and should still record the suggestion, len = %d", log.len())
	}
}

func TestSession_SubmitAcrossOpen(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "old task", Score: 99}}
	api.suggestGate = make(chan struct{})
	s := openSession(t, api, &memLog{}, DefaultOptions())
	ctx := context.Background()

	type result struct {
		outcome Outcome
		err     error
	}
	submitted := make(chan result, 1)
	go func() {
		o, err := s.Submit(ctx)
		submitted <- result{o, err}
	}()
	waitSuggestPending(t, s)

	if _, err := s.Open(ctx, 2, domain.ModeScratch); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	close(api.suggestGate)
	got := <-submitted

	if !errors.Is(got.err, ErrSuperseded) || got.outcome != NoDecision {
		t.Errorf("Submit() = %v, %v; want NoDecision, ErrSuperseded", got.outcome, got.err)
	}
	if s.Outcome() != NoDecision {
		t.Errorf("new view outcome = %v, want NoDecision", s.Outcome())
	}
	if err := s.SetCode("fresh"); err != nil {
		t.Errorf("SetCode() on the new view error = %v", err)
	}
}

func TestSession_TryAgainAcrossOpen(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.suggest = []domain.Suggestion{{Answer: "retry feedback", Score: 30}}
	api.suggestGate = make(chan struct{})
	log := &memLog{records: []domain.Suggestion{{Score: 10}}}
	s := openSession(t, api, log, DefaultOptions())
	ctx := context.Background()

	if got, _ := s.Submit(ctx); got != Failure {
		t.Fatalf("Submit() = %v, want Failure", got)
	}
	call, err := s.TryAgain(ctx)
	if err != nil {
		t.Fatalf("TryAgain() error = %v", err)
	}

	if _, err := s.Open(ctx, 2, domain.ModeRefactor); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	close(api.suggestGate)
	call.Wait(ctx)

	if _, ok := s.Feedback(); ok {
		t.Error("feedback requested by TryAgain on task 1 showed up on task 2")
	}
	if st := s.SuggestState(); st.Pending {
		t.Error("new view should have no pending suggestion")
	}
	if s.Outcome() != NoDecision {
		t.Errorf("outcome = %v, want NoDecision", s.Outcome())
	}
}

func TestSession_CheckAcrossOpen_Serialize(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newMockBackend()
	api.runGate = make(chan struct{})
	opts := DefaultOptions()
	opts.Query = QueryOptions{Policy: PolicySerialize, MaxQueue: 2, QueueTimeout: 5 * time.Second}
	s := openSession(t, api, &memLog{}, opts)
	defer s.Close()
	ctx := context.Background()

	first := s.StartCheck(ctx)
	queued := s.StartCheck(ctx)

	if _, err := s.Open(ctx, 2, domain.ModeRefactor); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	close(api.runGate)
	first.Wait(ctx)
	queued.Wait(ctx)

	st := s.CheckState()
	if st.HasResult || st.Pending || st.Err != nil {
		t.Errorf("new view check state = %+v, want empty", st)
	}

	report, err := s.Check(ctx)
	if err != nil {
		t.Fatalf("Check() on the new view error = %v", err)
	}
	if report.Execution.Output != "ran z=3" {
		t.Errorf("Execution.Output = %q, want the new task's code", report.Execution.Output)
	}
}

func TestSession_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	opts := DefaultOptions()
	opts.Query.Policy = PolicySerialize
	s := openSession(t, newMockBackend(), &memLog{}, opts)

	if _, err := s.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := s.Check(context.Background()); !errors.Is(err, ErrQueryClosed) {
		t.Errorf("Check() after Close() error = %v, want ErrQueryClosed", err)
	}
}

func TestSession_Status(t *testing.T) {
	log := &memLog{records: []domain.Suggestion{{Score: 42}}}
	s := openSession(t, newMockBackend(), log, DefaultOptions())

	st := s.Status()
	if st.ID == "" || st.Task == nil || st.Task.ID != 1 {
		t.Errorf("Status() = %+v", st)
	}
	if !st.HasScore || st.Score != 42 {
		t.Errorf("score = %d, %v", st.Score, st.HasScore)
	}
	if st.Outcome != NoDecision {
		t.Errorf("Outcome = %v", st.Outcome)
	}

	log.scoreErr = errors.New("corrupt")
	if st := s.Status(); st.HasScore {
		t.Error("unreadable score should be reported as missing")
	}
}

func TestSession_Threshold(t *testing.T) {
	if got := NewSession(newMockBackend(), &memLog{}, Options{}).Threshold(); got != DefaultPassThreshold {
		t.Errorf("Threshold() = %d, want %d", got, DefaultPassThreshold)
	}
	opts := DefaultOptions()
	opts.PassThreshold = 75
	if got := NewSession(newMockBackend(), &memLog{}, opts).Threshold(); got != 75 {
		t.Errorf("Threshold() = %d, want 75", got)
	}
}
