// Bioclassd classifies short Instagram bios as Christian or not.
//
// It exposes a small JSON-over-HTTP API with a two-stage pipeline: a
// local keyword heuristic decides the obvious cases, and the remainder
// is batched into a single OpenAI call. The classification prompt is
// editable at runtime and persisted under the data directory.
// Configuration is loaded from an optional YAML file discovered
// automatically (see [config.DefaultSearchPaths]) with environment
// overrides for OPENAI_API_KEY, HOST, and PORT.
//
// Usage:
//
//	bioclassd serve              Start the API server
//	bioclassd check <bio>...     Classify bios from the command line (for testing)
//	bioclassd version            Print version and build information
//	bioclassd -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bioclass/internal/api"
	"bioclass/internal/buildinfo"
	"bioclass/internal/classifier"
	"bioclass/internal/config"
	"bioclass/internal/llm"
	"bioclass/internal/prompt"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the bioclassd command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of the HTTP server.
//   - stdout and stderr receive all program output. Structured logs go
//     to stdout; fatal error messages go to stderr.
//   - args is os.Args[1:] — the command-line arguments after the program
//     name. We parse these manually rather than using the flag package
//     to avoid global state that interferes with parallel tests.
//
// run returns nil on clean shutdown and a non-nil error for any failure.
// The caller (main) is responsible for printing the error and exiting.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "check":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: bioclassd check <bio>...")
		}
		return runCheck(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// bioclassd is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "bioclassd - Instagram bio classification service")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: bioclassd [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Start the API server")
	fmt.Fprintln(w, "  check <bio>...   Classify bios from the command line (for testing)")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// loadConfig locates and parses the YAML configuration file. Unlike most
// services, a missing config file is not an error here: everything the
// service needs can arrive through environment variables, so we fall
// back to built-in defaults. The returned path is empty in that case.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	if cfgPath == "" {
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// newLogger builds an slog.Logger writing to w with the given level and
// format ("json" or anything else for text).
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// buildService wires the prompt store, the OpenAI resolver, and the
// hybrid classifier from config. Shared by serve and check so the CLI
// one-shot exercises exactly the pipeline the server runs.
func buildService(cfg *config.Config, logger *slog.Logger) (*classifier.Service, *prompt.Store) {
	store := prompt.Open(cfg.DataDir, logger)

	resolver := llm.NewOpenAIClient(cfg.OpenAI, logger)
	if !cfg.OpenAI.Configured() {
		logger.Warn("OPENAI_API_KEY not set - uncertain bios will default to no")
	}

	svc := classifier.New(resolver, store, logger)
	if cfg.OpenAI.TimeoutSeconds > 0 {
		svc.Timeout = time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second
	}
	return svc, store
}

// runServe handles the "bioclassd serve" subcommand. It loads config,
// wires the classification pipeline, starts the HTTP server, and blocks
// until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	// Load a .env file if present, matching how deployments typically
	// supply OPENAI_API_KEY. Absence is fine.
	_ = godotenv.Load()

	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting bioclassd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that we know the desired level and
	// format. The initial Info-level text logger covers only the
	// startup banner.
	{
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"address", cfg.Listen.Address,
		"port", cfg.Listen.Port,
		"model", cfg.OpenAI.Model,
		"data_dir", cfg.DataDir,
	)

	svc, store := buildService(cfg, logger)
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, svc, store, logger)

	// Serve until the context is cancelled by SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("goodbye")
	return nil
}

// runCheck handles the "bioclassd check <bio>..." subcommand: a one-shot
// classification of the given bios, using the same config, prompt store,
// and fallback policy as the server.
func runCheck(ctx context.Context, stdout io.Writer, configPath string, bios []string) error {
	_ = godotenv.Load()

	// Logs go to stderr-style discard here; check output is the labels.
	logger := slog.New(slog.DiscardHandler)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	svc, _ := buildService(cfg, logger)

	results, err := svc.Classify(ctx, bios)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	for i, label := range results {
		fmt.Fprintf(stdout, "%s\t%s\n", label, bios[i])
	}
	return nil
}
