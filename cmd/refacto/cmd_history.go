package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/felixgeelhaar/refacto/internal/domain"
)

type historyDump struct {
	Score       *int                `json:"score,omitempty"`
	Suggestions []domain.Suggestion `json:"suggestions"`
}

// cmdHistory prints the suggestion log and the current score
func cmdHistory(args []string) error {
	asJSON := len(args) > 0 && args[0] == "--json"

	a, cleanup, err := bootstrap(slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := a.Log.All()
	if err != nil {
		return err
	}
	score, ok, err := a.Log.LatestScore()
	if err != nil {
		return err
	}

	if asJSON {
		dump := historyDump{Suggestions: records}
		if ok {
			dump.Score = &score
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	}

	if len(records) == 0 {
		fmt.Println("No feedback recorded yet.")
		return nil
	}

	for i, r := range records {
		fmt.Printf("#%d  score %d  %s\n", i+1, r.Score, renderScoreBar(r.Score, 20))
		fmt.Printf("    %s\n", strings.ReplaceAll(r.Answer, "\n", "\n    "))
		for _, h := range r.Hints {
			fmt.Printf("    - %s\n", h)
		}
	}

	fmt.Printf("\nCurrent score: %d (pass above %d)\n", score, a.Session.Threshold())
	return nil
}

// renderScoreBar creates a visual bar for a 0-100 score
func renderScoreBar(score, width int) string {
	filled := score * width / 100
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
