package domain

import (
	"fmt"
	"strings"
)

// Task is a single coding exercise as served by the backend.
// It is immutable once fetched for a given (ID, Mode) pair.
type Task struct {
	ID          int
	Name        string
	Description string
	Topic       string
	InitialCode string // the "messy" code a refactor mission starts from
}

// TaskSummary is the flat list entry returned by the task listing
type TaskSummary struct {
	ID    int    `json:"id"`
	Topic string `json:"topic"`
	Name  string `json:"name"`
}

// TaskRef identifies a task inside a topic group
type TaskRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TopicGroup is the derived, non-persistent view of tasks sharing a topic
type TopicGroup struct {
	Topic string    `json:"topic"`
	Tasks []TaskRef `json:"tasks"`
}

// Mode selects how the code buffer is seeded when a task is opened
type Mode string

const (
	ModeRefactor Mode = "refactor"
	ModeScratch  Mode = "scratch"
)

// ParseMode converts a mission string into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRefactor:
		return ModeRefactor, nil
	case ModeScratch:
		return ModeScratch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeRefactor || m == ModeScratch
}

// SeedCode returns the code a buffer starts with for this task under mode m
func (t *Task) SeedCode(m Mode) string {
	if m == ModeRefactor {
		return t.InitialCode
	}
	return ""
}
