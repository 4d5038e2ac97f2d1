// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - argument parsing and command dispatch for chatrig.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdModels
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	Model  string // --model override for new sessions
	Config string // --config path override
	Quiet  bool
}

const usageText = `chatrig - streaming chat with a local Ollama server

Usage:
  chatrig [chat]           Start an interactive chat session (default)
  chatrig models           List models available on the server
  chatrig version          Print version information
  chatrig help             Show this help

Flags:
  -m, --model NAME   Model for new sessions (overrides config)
  -c, --config PATH  Config file path (default ~/.chatrig/config.toml)
  -q, --quiet        Suppress the startup banner

Interactive commands (during chat):
  /new               Start a new session
  /sessions          List sessions grouped by recency
  /switch N          Switch to session N from the last listing
  /rename TITLE      Rename the active session
  /delete            Delete the active session
  /search QUERY      Search sessions by title or content
  /model [NAME]      Show or rebind the session's model
  /usage             Show context window utilization
  /export            Print the session as Markdown
  /quit              Exit
`

// Parse reads os.Args and returns the command plus parsed flags.
func Parse() (Command, *Args) {
	args := &Args{}
	cmd := CmdChat

	rest := os.Args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "-m" || arg == "--model":
			if i+1 < len(rest) {
				i++
				args.Model = rest[i]
			}
		case arg == "-c" || arg == "--config":
			if i+1 < len(rest) {
				i++
				args.Config = rest[i]
			}
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case strings.HasPrefix(arg, "-"):
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", arg)
			cmd = CmdHelp
		case arg == "chat":
			cmd = CmdChat
		case arg == "models":
			cmd = CmdModels
		case arg == "version":
			cmd = CmdVersion
		case arg == "help":
			cmd = CmdHelp
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", arg)
			cmd = CmdHelp
		}
	}

	return cmd, args
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("chatrig %s (%s, built %s)\n", Version, GitCommit, BuildDate)
}
