package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/refacto/internal/app"
	"github.com/felixgeelhaar/refacto/internal/challenge"
	"github.com/felixgeelhaar/refacto/internal/domain"
)

const replHelp = `Commands:
  show                 Show the task and the current code
  open <id> [mission]  Open another task (mission: refactor|scratch)
  sync                 Reload the code from the workspace file
  check                Run the code and the style checker
  suggest              Get AI feedback on the code
  submit               Submit against the latest score
  continue             After a pass, open the next task
  retry                After a fail, get fresh feedback
  dismiss              Close the outcome without moving on
  chat <message>       Ask the assistant
  retract | resend     Drop or resend an unanswered chat message
  transcript           Show the chat so far
  status               Show task, outcome and score
  quit                 Leave`

var errQuit = errors.New("quit")

// repl drives one challenge session from line commands. The code is edited
// in a workspace file and pulled into the session before it is sent.
type repl struct {
	app       *app.App
	out       io.Writer
	workspace string
}

func newREPL(a *app.App, out io.Writer, workspace string) *repl {
	return &repl{app: a, out: out, workspace: workspace}
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// run reads commands until EOF, quit or ctx ends
func (r *repl) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		r.printf("refacto> ")

		select {
		case <-ctx.Done():
			r.printf("\n")
			return nil
		case line, ok := <-lines:
			if !ok {
				r.printf("\n")
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			err := r.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				r.printf("Error detected: %v\n", err)
			}
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "help", "?":
		r.printf("%s\n", replHelp)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "show":
		return r.show()
	case "open":
		return r.openCmd(ctx, rest)
	case "sync":
		return r.sync()
	case "check":
		return r.check(ctx)
	case "suggest":
		return r.suggest(ctx)
	case "submit":
		return r.submit(ctx)
	case "continue", "next":
		return r.next(ctx)
	case "retry":
		return r.retry(ctx)
	case "dismiss", "close":
		return r.dismiss(ctx)
	case "chat":
		return r.chat(ctx, rest)
	case "retract":
		msg, err := r.app.Chat.Retract()
		if err != nil {
			return err
		}
		r.printf("Dropped: %s\n", msg.Content)
		return nil
	case "resend":
		answer, err := r.app.Chat.Resend(ctx)
		if err != nil {
			return err
		}
		r.printf("assistant: %s\n", answer.Content)
		return nil
	case "transcript":
		r.transcript()
		return nil
	case "status":
		r.status()
		return nil
	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
}

// open loads a task and writes its code to the workspace file
func (r *repl) open(ctx context.Context, id int, mode domain.Mode) error {
	task, err := r.app.Open(ctx, id, mode)
	if err != nil {
		return err
	}
	r.printf("Task %d: %s [%s]\n", task.ID, task.Name, mode)
	return r.writeWorkspace()
}

func (r *repl) openCmd(ctx context.Context, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return fmt.Errorf("task id required")
	}
	id, err := parseTaskID(fields[0])
	if err != nil {
		return err
	}
	mode := domain.ModeRefactor
	if len(fields) > 1 {
		if mode, err = domain.ParseMode(fields[1]); err != nil {
			return err
		}
	}
	return r.open(ctx, id, mode)
}

func (r *repl) workspaceFile() string {
	return filepath.Join(r.workspace, fmt.Sprintf("task_%d.py", r.app.Session.Key().TaskID))
}

func (r *repl) writeWorkspace() error {
	if err := os.MkdirAll(r.workspace, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	path := r.workspaceFile()
	if err := os.WriteFile(path, []byte(r.app.Session.Code()), 0644); err != nil {
		return fmt.Errorf("write workspace file: %w", err)
	}
	r.printf("Edit %s, then use check, suggest or submit.\n", path)
	return nil
}

// pull copies the workspace file into the buffer when it changed
func (r *repl) pull() error {
	data, err := os.ReadFile(r.workspaceFile())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read workspace file: %w", err)
	}

	code := string(data)
	if code == r.app.Session.Code() {
		return nil
	}

	err = r.app.Session.SetCode(code)
	if errors.Is(err, challenge.ErrOutcomePending) {
		r.printf("An outcome is showing; file changes are ignored until it is closed.\n")
		return nil
	}
	return err
}

func (r *repl) sync() error {
	if err := r.pull(); err != nil {
		return err
	}
	r.printf("%d line(s) in buffer\n", len(r.app.Session.Lines()))
	return nil
}

func (r *repl) show() error {
	task, err := r.app.Session.Task()
	if err != nil {
		return err
	}
	r.printf("Task %d: %s (%s)\n", task.ID, task.Name, task.Topic)
	if task.Description != "" {
		r.printf("\n%s\n", task.Description)
	}
	r.printf("\n")
	for i, l := range r.app.Session.Lines() {
		r.printf("%4d | %s\n", i+1, l)
	}
	return nil
}

func (r *repl) check(ctx context.Context) error {
	if err := r.pull(); err != nil {
		return err
	}
	r.printf("Checking...\n")

	report, err := r.app.Session.Check(ctx)
	if err != nil {
		return err
	}

	if report.Execution.IsError {
		r.printf("Output (error):\n%s\n", indent(report.Execution.Output, "  "))
	} else {
		r.printf("Output:\n%s\n", indent(report.Execution.Output, "  "))
	}

	if report.ManualCheck.Clean() {
		r.printf("Style: no issues\n")
		return nil
	}
	r.printf("Style issues:\n")
	for _, issue := range report.ManualCheck {
		r.printf("  - %s\n", issue)
	}
	return nil
}

func (r *repl) printFeedback(fb domain.Feedback) {
	r.printf("%s\n", fb.Answer)
	for _, h := range fb.Hints {
		r.printf("  • %s\n", h)
	}
}

func (r *repl) suggest(ctx context.Context) error {
	if err := r.pull(); err != nil {
		return err
	}
	r.printf("Asking for feedback...\n")

	fb, err := r.app.Session.Suggest(ctx)
	if err != nil {
		return err
	}
	r.printFeedback(fb)
	return nil
}

func (r *repl) submit(ctx context.Context) error {
	if err := r.pull(); err != nil {
		return err
	}

	outcome, err := r.app.Session.Submit(ctx)
	if err != nil {
		return err
	}

	threshold := r.app.Session.Threshold()
	score, _, _ := r.app.Log.LatestScore()

	switch outcome {
	case challenge.Success:
		r.printf("✓ Passed with %d (needs more than %d). Type 'continue' for the next task.\n", score, threshold)
	case challenge.Failure:
		r.printf("✗ Score %d (needs more than %d). Type 'retry' for fresh feedback.\n", score, threshold)
	default:
		r.printf("No score yet; feedback was requested. Submit again once it arrives.\n")
	}
	return nil
}

func (r *repl) next(ctx context.Context) error {
	task, err := r.app.Continue(ctx)
	if err != nil {
		return err
	}
	r.printf("Task %d: %s [%s]\n", task.ID, task.Name, r.app.Session.Key().Mode)
	return r.writeWorkspace()
}

func (r *repl) awaitFeedback(ctx context.Context, call *challenge.Call[domain.Suggestion]) error {
	if call == nil {
		return nil
	}
	r.printf("Asking for feedback...\n")
	sug, err := call.Wait(ctx)
	if err != nil {
		return err
	}
	r.printFeedback(sug.Feedback())
	return nil
}

func (r *repl) retry(ctx context.Context) error {
	call, err := r.app.Session.TryAgain(ctx)
	if err != nil {
		return err
	}
	return r.awaitFeedback(ctx, call)
}

func (r *repl) dismiss(ctx context.Context) error {
	call, err := r.app.Session.Dismiss(ctx)
	if err != nil {
		return err
	}
	r.printf("Outcome closed.\n")
	return r.awaitFeedback(ctx, call)
}

func (r *repl) chat(ctx context.Context, message string) error {
	answer, err := r.app.Chat.Send(ctx, message)
	if err != nil {
		return err
	}
	r.printf("assistant: %s\n", answer.Content)
	return nil
}

func (r *repl) transcript() {
	for _, m := range r.app.Chat.Transcript() {
		r.printf("%s: %s\n", m.Role, m.Content)
	}
}

func (r *repl) status() {
	st := r.app.Session.Status()
	if st.Task == nil {
		r.printf("No task open.\n")
	} else {
		r.printf("Task:    %d %s [%s]\n", st.Task.ID, st.Task.Name, st.Key.Mode)
	}
	r.printf("Outcome: %s\n", st.Outcome)
	if st.HasScore {
		r.printf("Score:   %d %s\n", st.Score, renderScoreBar(st.Score, 20))
	} else {
		r.printf("Score:   none yet\n")
	}
	if st.Check.Pending || st.Suggest.Pending {
		r.printf("In flight: check=%t suggest=%t\n", st.Check.Pending, st.Suggest.Pending)
	}
}
