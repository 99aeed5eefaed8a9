// Package catalog groups the flat task list into topics for browsing.
package catalog

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

// Lister fetches the flat task list
type Lister interface {
	ListTasks(ctx context.Context) ([]domain.TaskSummary, error)
}

// Group partitions tasks by topic in one pass. Topics appear in first-seen
// order and tasks keep their input order within a topic.
func Group(tasks []domain.TaskSummary) []domain.TopicGroup {
	groups := []domain.TopicGroup{}
	index := make(map[string]int)

	for _, t := range tasks {
		i, ok := index[t.Topic]
		if !ok {
			i = len(groups)
			index[t.Topic] = i
			groups = append(groups, domain.TopicGroup{Topic: t.Topic, Tasks: []domain.TaskRef{}})
		}
		groups[i].Tasks = append(groups[i].Tasks, domain.TaskRef{ID: t.ID, Name: t.Name})
	}

	return groups
}

// Service serves the grouped catalog
type Service struct {
	lister Lister
}

// NewService creates a catalog service over lister
func NewService(lister Lister) *Service {
	return &Service{lister: lister}
}

// Topics fetches the task list and groups it
func (s *Service) Topics(ctx context.Context) ([]domain.TopicGroup, error) {
	tasks, err := s.lister.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return Group(tasks), nil
}

// Find returns the group for topic, if any
func Find(groups []domain.TopicGroup, topic string) (domain.TopicGroup, bool) {
	for _, g := range groups {
		if g.Topic == topic {
			return g, true
		}
	}
	return domain.TopicGroup{}, false
}
