// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - interactive chat REPL for chatrig.
//
// This is the thin shell around the engine: it reads lines, relays them
// to the orchestrator, and prints the streamed reply. Session state,
// protocol handling, and usage accounting all live below it.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/chatrig/internal/chat"
	"github.com/jeranaias/chatrig/internal/config"
	"github.com/jeranaias/chatrig/internal/model"
	"github.com/jeranaias/chatrig/internal/ollama"
	"github.com/jeranaias/chatrig/internal/store"
	"github.com/jeranaias/chatrig/internal/usage"
	"github.com/jeranaias/chatrig/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	thinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
)

// =============================================================================
// CHAT COMMAND
// =============================================================================

// HandleChat runs the interactive REPL.
func HandleChat(args *Args) {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("config: "+err.Error()))
		os.Exit(1)
	}

	orch, cleanup, err := buildEngine(cfg, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()

	client := ollamaClient(cfg)
	if err := client.WaitReady(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Ollama is not reachable at "+cfg.Ollama.BaseURL))
		os.Exit(1)
	}

	if _, err := orch.RefreshModels(ctx); err != nil && !args.Quiet {
		fmt.Println(infoStyle.Render("warning: could not list models: " + err.Error()))
	}

	if !args.Quiet {
		fmt.Println(headerStyle.Render("chatrig " + Version))
		if sess := orch.Store().Active(); sess != nil {
			fmt.Println(infoStyle.Render("resuming: " + sess.Title))
		}
		fmt.Println(infoStyle.Render("type /help for commands"))
	}

	repl(ctx, orch)
}

// repl is the main input loop. Liner provides history and line editing.
func repl(ctx context.Context, orch *chat.Orchestrator) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "input_history")
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyFile == "" {
			return
		}
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	// Session numbering from the last /sessions or /search listing, so
	// /switch N has something to refer to.
	var listed []*model.ChatSession

	for {
		input, err := line.Prompt(promptStyle.Render("> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			return // EOF
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := handleCommand(ctx, orch, input, &listed); quit {
				return
			}
			continue
		}

		runTurn(ctx, orch, input)
	}
}

// runTurn sends one user message and prints the streamed reply.
func runTurn(ctx context.Context, orch *chat.Orchestrator, text string) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inThinking := false
	_, err := orch.SendTurn(turnCtx, text, func(update ollama.StreamUpdate) {
		if update.Thinking != "" {
			inThinking = true
			fmt.Print(thinkingStyle.Render(update.Thinking))
		}
		if update.Content != "" {
			if inThinking {
				fmt.Println()
				inThinking = false
			}
			fmt.Print(update.Content)
		}
	})
	fmt.Println()

	if err != nil {
		fmt.Println(errorStyle.Render("turn failed: " + err.Error()))
		return
	}

	if sess := orch.Store().Active(); sess != nil {
		fmt.Println(infoStyle.Render(orch.Tracker().Display(sess.ID)))
	}
}

// handleCommand dispatches a slash command. Returns true to exit.
func handleCommand(ctx context.Context, orch *chat.Orchestrator, input string, listed *[]*model.ChatSession) bool {
	parts := strings.SplitN(input, " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	st := orch.Store()

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		HandleHelp()

	case "/new":
		modelName := arg
		if modelName == "" {
			if sess := st.Active(); sess != nil {
				modelName = sess.Model
			}
		}
		if _, err := st.Create(modelName); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			break
		}
		fmt.Println(infoStyle.Render("started a new session"))

	case "/sessions":
		*listed = printSessionGroups(st)

	case "/switch":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(*listed) {
			fmt.Println(errorStyle.Render("usage: /switch N (run /sessions first)"))
			break
		}
		sess := (*listed)[n-1]
		st.SetActive(sess.ID)
		fmt.Println(infoStyle.Render("switched to: " + sess.Title))

	case "/rename":
		sess := st.Active()
		if sess == nil {
			fmt.Println(errorStyle.Render("no active session"))
			break
		}
		if err := st.Rename(sess.ID, arg); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
		}

	case "/delete":
		sess := st.Active()
		if sess == nil {
			fmt.Println(errorStyle.Render("no active session"))
			break
		}
		if err := orch.DeleteSession(sess.ID); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			break
		}
		fmt.Println(infoStyle.Render("deleted: " + sess.Title))

	case "/search":
		results := st.Search(arg)
		*listed = results
		for i, sess := range results {
			fmt.Printf("%2d. %s\n", i+1, util.TruncateWidth(sess.Title, 60))
		}
		if len(results) == 0 {
			fmt.Println(infoStyle.Render("no matches"))
		}

	case "/model":
		sess := st.Active()
		if sess == nil {
			fmt.Println(errorStyle.Render("no active session"))
			break
		}
		if arg == "" {
			fmt.Println(infoStyle.Render("model: " + sess.Model))
			break
		}
		if err := st.UpdateModel(sess.ID, arg); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			break
		}
		fmt.Println(infoStyle.Render("model set to " + arg))

	case "/usage":
		sess := st.Active()
		if sess == nil {
			fmt.Println(errorStyle.Render("no active session"))
			break
		}
		fmt.Println(infoStyle.Render(orch.Tracker().Display(sess.ID)))

	case "/export":
		sess := st.Active()
		if sess == nil {
			fmt.Println(errorStyle.Render("no active session"))
			break
		}
		fmt.Print(sess.ExportMarkdown())

	default:
		fmt.Println(errorStyle.Render("unknown command: " + cmd + " (try /help)"))
	}

	return false
}

// printSessionGroups lists sessions under Today/Yesterday/Older headers
// and returns them in the printed order for /switch numbering.
func printSessionGroups(st *store.Store) []*model.ChatSession {
	groups := st.GroupByRecency(time.Now())
	var listed []*model.ChatSession

	printGroup := func(header string, sessions []*model.ChatSession) {
		if len(sessions) == 0 {
			return
		}
		fmt.Println(headerStyle.Render(header))
		for _, sess := range sessions {
			listed = append(listed, sess)
			marker := "  "
			if active := st.Active(); active != nil && active.ID == sess.ID {
				marker = "* "
			}
			fmt.Printf("%2d. %s%s\n", len(listed), marker, util.TruncateWidth(sess.Title, 60))
		}
	}

	printGroup("Today", groups.Today)
	printGroup("Yesterday", groups.Yesterday)
	printGroup("Older", groups.Older)

	if len(listed) == 0 {
		fmt.Println(infoStyle.Render("no sessions yet"))
	}
	return listed
}

// =============================================================================
// MODELS COMMAND
// =============================================================================

// HandleModels lists the models available on the server.
func HandleModels(args *Args) {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("config: "+err.Error()))
		os.Exit(1)
	}

	orch, cleanup, err := buildEngine(cfg, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	models, err := orch.RefreshModels(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("could not list models: "+err.Error()))
		os.Exit(1)
	}

	for _, m := range models {
		flags := ""
		if m.Loaded {
			flags += " [loaded]"
		}
		if m.SupportsThinking {
			flags += " [thinking]"
		}
		fmt.Printf("%-40s ctx %d%s\n", m.Name, m.ContextWindow, flags)
	}
}

// =============================================================================
// ENGINE WIRING
// =============================================================================

func loadConfig(args *Args) (*config.Config, error) {
	if args.Config != "" {
		return config.LoadFile(args.Config)
	}
	return config.Load()
}

func ollamaClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:       cfg.Ollama.BaseURL,
		Timeout:       time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
		ReadyTimeout:  time.Duration(cfg.Ollama.ReadyTimeoutSeconds) * time.Second,
		ReadyInterval: time.Duration(cfg.Ollama.ReadyIntervalMs) * time.Millisecond,
		DefaultModel:  cfg.DefaultModel,
	})
}

// buildEngine wires persister, store, tracker, client, and orchestrator
// from config. The returned cleanup closes backend resources.
func buildEngine(cfg *config.Config, args *Args) (*chat.Orchestrator, func(), error) {
	if args.Model != "" {
		cfg.DefaultModel = args.Model
	}

	path, err := cfg.StoragePath()
	if err != nil {
		return nil, nil, err
	}

	var persister store.Persister
	cleanup := func() {}
	if cfg.Storage.Backend == "sqlite" {
		sq, err := store.NewSQLitePersister(path)
		if err != nil {
			return nil, nil, err
		}
		persister = sq
		cleanup = func() { sq.Close() }
	} else {
		persister = store.NewFilePersister(path)
	}

	st, err := store.New(persister)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	tracker := usage.NewTracker()
	// Seed the tracker from persisted usage so the status line is right
	// before the first turn of a resumed session.
	for _, sess := range st.Sessions() {
		if sess.Usage.Total > 0 {
			tracker.RecordTurn(sess.ID, sess.Usage.Used, 0, sess.Usage.Total)
		}
	}

	orch := chat.New(ollamaClient(cfg), st, tracker)
	orch.SetThinking(cfg.Chat.Think)
	return orch, cleanup, nil
}
