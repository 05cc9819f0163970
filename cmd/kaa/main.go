package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/voxinfinitus/kaa/internal/api"
	"github.com/voxinfinitus/kaa/internal/bot"
	"github.com/voxinfinitus/kaa/internal/config"
	"github.com/voxinfinitus/kaa/internal/lock"
	"github.com/voxinfinitus/kaa/internal/log"
	"github.com/voxinfinitus/kaa/internal/script"
	"github.com/voxinfinitus/kaa/internal/store"
	"github.com/voxinfinitus/kaa/internal/tui/watch"
	"github.com/voxinfinitus/kaa/internal/worker"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "config":
		return runConfigNoun(args)
	case "hooks":
		return runHooksNoun(args)
	case "watch":
		return runWatch(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println("Usage: kaa <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  start          Connect to IRC and run the bot")
	fmt.Println("  config check   Validate the configuration file")
	fmt.Println("  config show    Print the resolved configuration")
	fmt.Println("  hooks list     List hooks declared by handler scripts")
	fmt.Println("  watch          Live status TUI over the API")
	fmt.Println("  version        Print version information")
	fmt.Println()
	fmt.Println("Run 'kaa <command> --help' for command flags.")
}

// --- start ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("kaa starting", "version", version, "config", *configPath)

	pidLockPath := filepath.Join(filepath.Dir(cfg.State.Path), "kaa.lock")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var recorder worker.InvocationRecorder
	var invocations api.InvocationSource
	if cfg.State.Path != "" {
		db, err := store.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
			return 1
		}
		defer db.Close()
		logger.Info("database opened", "path", cfg.State.Path)

		st := store.New(db)
		recorder = st
		invocations = st
	}

	b := bot.New(cfg, recorder)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		if err := b.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("bot: %w", err)
		}
	}()

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
		}, b.Registry(), invocations, b.Hub())
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("kaa running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("kaa stopped")
	return 0
}

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kaa config <check|show> [flags]")
		return 1
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "show":
		return runConfigShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		return 1
	}
	fmt.Printf("OK: %s\n", *configPath)
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// The server password stays out of any output.
	cfg.Server.Password = ""
	cfg.API.Auth.APIKey = ""

	var data []byte
	if *jsonOut {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Println(strings.TrimSpace(string(data)))
	return 0
}

// --- hooks ---

func runHooksNoun(args []string) int {
	if len(args) < 1 || args[0] != "list" {
		fmt.Fprintln(os.Stderr, "Usage: kaa hooks list [flags]")
		return 1
	}
	return runHooksList(args[1:])
}

// runHooksList interprets the handler scripts offline and prints what they
// declare, without connecting to anything.
func runHooksList(args []string) int {
	fs := flag.NewFlagSet("hooks list", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	handlersDir := fs.String("handlers-dir", "", "Handlers directory (overrides config)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	dir := *handlersDir
	if dir == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		dir = cfg.Handlers.Dir
	}

	files, err := script.LoadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load handlers: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Printf("No handler scripts in %s\n", dir)
		return 0
	}

	for _, f := range files {
		fmt.Printf("%s\n", f.Path)
		for _, h := range f.Handlers {
			fmt.Printf("  %-8s %s\n", h.Kind, h.Hook)
		}
	}
	return 0
}

// --- watch ---

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8080", "Status API URL")
	apiKey := fs.String("api-key", os.Getenv("KAA_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or KAA_API_KEY env var.")
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// --- version ---

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	commit := readBuildSetting("vcs.revision")
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		commit = "unknown"
	}

	if *jsonOut {
		data, err := json.MarshalIndent(map[string]string{
			"version": version,
			"commit":  commit,
		}, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("kaa %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	return 0
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}
