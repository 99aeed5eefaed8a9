package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/refacto/internal/catalog"
	"github.com/felixgeelhaar/refacto/internal/domain"
)

// cmdTopics lists tasks grouped by topic, or only the named topic
func cmdTopics(args []string) error {
	a, cleanup, err := bootstrap(slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	groups, err := a.Catalog.Topics(ctx)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		g, ok := catalog.Find(groups, strings.Join(args, " "))
		if !ok {
			return fmt.Errorf("no topic named %q", strings.Join(args, " "))
		}
		groups = []domain.TopicGroup{g}
	}

	if len(groups) == 0 {
		fmt.Println("No tasks available.")
		return nil
	}

	for _, g := range groups {
		topic := g.Topic
		if topic == "" {
			topic = "(untitled)"
		}
		fmt.Printf("%s\n", topic)
		for _, t := range g.Tasks {
			fmt.Printf("  %4d  %s\n", t.ID, t.Name)
		}
	}
	return nil
}

// cmdTask shows one task
func cmdTask(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("task id required (usage: refacto task <id>)")
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	a, cleanup, err := bootstrap(slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	task, err := a.Client.GetTask(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Task %d: %s\n", task.ID, task.Name)
	fmt.Printf("Topic: %s\n\n", task.Topic)
	if task.Description != "" {
		fmt.Println(task.Description)
		fmt.Println()
	}
	fmt.Println("Starting code:")
	fmt.Println(indent(task.InitialCode, "  "))
	return nil
}

func indent(text, prefix string) string {
	if text == "" {
		return prefix + "(empty)"
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func parseTaskID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
