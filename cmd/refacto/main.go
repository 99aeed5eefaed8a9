package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "topics":
		err = cmdTopics(os.Args[2:])
	case "task":
		err = cmdTask(os.Args[2:])
	case "challenge":
		err = cmdChallenge(os.Args[2:])
	case "history":
		err = cmdHistory(os.Args[2:])
	case "config":
		err = cmdConfig(os.Args[2:])
	case "doctor":
		err = cmdDoctor()
	case "mcp":
		err = cmdMCP(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("refacto %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error detected: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Refacto - Code Refactoring Challenges

Usage:
  refacto <command> [arguments]

Catalog Commands:
  topics [topic]               List tasks grouped by topic, or one topic
  task <id>                    Show a task and its starting code

Challenge Commands:
  challenge <id> [mission]     Start an interactive challenge (mission: refactor|scratch)
  history                      Show recorded AI feedback and the current score
  history --json               Same, as JSON

Setup Commands:
  config                       Show current configuration
  config init                  Write the default configuration file
  doctor                       Check backend reachability and local storage

Integration Commands:
  mcp [--http <addr>]          Start MCP server (stdio by default)

Other:
  help                         Show this help message
  version                      Show version information

Examples:
  refacto topics
  refacto challenge 3          # refactor task 3
  refacto challenge 3 scratch  # solve task 3 from an empty buffer`)
}
