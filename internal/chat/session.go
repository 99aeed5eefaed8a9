// Package chat holds the conversational help panel: a transcript that starts
// with a greeting and alternates user and assistant turns, grounded on the
// suggestion history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrAwaitingReply = errors.New("previous message has no reply yet")
	ErrReplyInFlight = errors.New("reply in flight")
	ErrNothingToSend = errors.New("no unanswered message")
	ErrDiscarded     = errors.New("reply discarded: transcript was reset")
)

// Replier answers one user turn given the suggestion history
type Replier interface {
	Chat(ctx context.Context, input string, history []domain.Suggestion) (string, error)
}

// History supplies the suggestion log used to ground every turn
type History interface {
	All() ([]domain.Suggestion, error)
}

// Session is one chat transcript
type Session struct {
	replier  Replier
	history  History
	greeting string

	mu         sync.Mutex
	transcript []domain.ChatMessage
	inFlight   bool
	generation uint64
}

// NewSession creates a transcript seeded with greeting. An empty greeting
// falls back to domain.DefaultGreeting.
func NewSession(replier Replier, history History, greeting string) *Session {
	if greeting == "" {
		greeting = domain.DefaultGreeting
	}
	s := &Session{
		replier:  replier,
		history:  history,
		greeting: greeting,
	}
	s.Reset()
	return s
}

// Reset drops every turn except the greeting. A reply still in flight is
// discarded when it arrives.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.inFlight = false
	s.transcript = []domain.ChatMessage{{Role: domain.ChatRoleAssistant, Content: s.greeting}}
}

// Transcript returns a copy of the conversation so far
func (s *Session) Transcript() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Pending reports whether the last turn is an unanswered user message
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastIsUser()
}

// Send appends message as a user turn and asks for a reply. Blank messages
// and messages sent while the previous one is unanswered leave the
// transcript untouched. If the reply fails the user turn stays in place.
func (s *Session) Send(ctx context.Context, message string) (domain.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.lastIsUser() {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrAwaitingReply
	}
	s.transcript = append(s.transcript, domain.ChatMessage{Role: domain.ChatRoleUser, Content: message})
	s.inFlight = true
	gen := s.generation
	s.mu.Unlock()

	return s.reply(ctx, message, gen)
}

// Retract removes an unanswered user turn so the conversation can move on
func (s *Session) Retract() (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return domain.ChatMessage{}, ErrReplyInFlight
	}
	if !s.lastIsUser() {
		return domain.ChatMessage{}, ErrNothingToSend
	}

	last := s.transcript[len(s.transcript)-1]
	s.transcript = s.transcript[:len(s.transcript)-1]
	return last, nil
}

// Resend asks again for a reply to the unanswered user turn
func (s *Session) Resend(ctx context.Context) (domain.ChatMessage, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrReplyInFlight
	}
	if !s.lastIsUser() {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrNothingToSend
	}
	message := s.transcript[len(s.transcript)-1].Content
	s.inFlight = true
	gen := s.generation
	s.mu.Unlock()

	return s.reply(ctx, message, gen)
}

// reply must be called with inFlight set
func (s *Session) reply(ctx context.Context, message string, gen uint64) (domain.ChatMessage, error) {
	defer func() {
		s.mu.Lock()
		if s.generation == gen {
			s.inFlight = false
		}
		s.mu.Unlock()
	}()

	history, err := s.history.All()
	if err != nil {
		slog.Warn("chat history unavailable", "error", err)
		return domain.ChatMessage{}, fmt.Errorf("load suggestion history: %w", err)
	}

	content, err := s.replier.Chat(ctx, message, history)
	if err != nil {
		slog.Warn("chat reply failed", "error", err)
		return domain.ChatMessage{}, fmt.Errorf("chat reply: %w", err)
	}

	answer := domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: content}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		slog.Debug("chat reply dropped after reset")
		return domain.ChatMessage{}, ErrDiscarded
	}
	s.transcript = append(s.transcript, answer)
	return answer, nil
}

func (s *Session) lastIsUser() bool {
	return len(s.transcript) > 0 && s.transcript[len(s.transcript)-1].Role == domain.ChatRoleUser
}
