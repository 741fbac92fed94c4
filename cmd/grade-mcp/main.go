package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/grade-overlay-mcp/internal/config"
	"github.com/ironsheep/grade-overlay-mcp/internal/grading"
	"github.com/ironsheep/grade-overlay-mcp/internal/history"
	"github.com/ironsheep/grade-overlay-mcp/internal/server"
	"github.com/ironsheep/grade-overlay-mcp/internal/session"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("grade-overlay-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("grade-overlay-mcp - MCP server for grading handwritten submissions")
			fmt.Println()
			fmt.Println("Usage: grade-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  GEMINI_API_KEY             Grading API key (can also be set with grader_configure)")
			fmt.Println("  GEMINI_MODEL               Model name (default gemini-2.5-flash)")
			fmt.Println("  GRADE_MCP_LANGUAGE         Language of the feedback (default English)")
			fmt.Println("  GRADE_MCP_GRADING_TIMEOUT  Deadline of one grading call (default 2m)")
			fmt.Println("  GRADE_MCP_LOG_LEVEL        debug, info, warn or error (default info)")
			fmt.Println("  GRADE_MCP_HISTORY_PATH     History file (default grade-history.json)")
			fmt.Println("  DATABASE_URL               Store history in PostgreSQL instead")
			fmt.Println("  GRADE_MCP_HTTP_ADDR        Also serve the tools over HTTP, e.g. :8080")
			fmt.Println("  GRADE_MCP_UPLOAD_WIDTH     Max page width sent for grading (default 1024)")
			fmt.Println("  GRADE_MCP_UPLOAD_QUALITY   JPEG quality sent for grading (default 0.7)")
			fmt.Println("  GRADE_MCP_CONCURRENCY      Pages processed in parallel (default 4)")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg := config.Load()

	// stdout is for MCP protocol
	logger := zerolog.New(os.Stderr).With().Timestamp().Caller().Logger().Level(cfg.LogLevel)
	logger.Debug().Str("version", Version).Str("buildTime", BuildTime).Str("commit", GitCommit).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Fail to open the history store")
	}
	defer repo.Close()

	grader := grading.NewClient(cfg.Grading())
	if !grader.Configured() {
		logger.Warn().Msg("GEMINI_API_KEY is not set; use grader_configure before grading")
	}

	server.Version = Version
	srv := server.New(logger, session.New(logger, cfg.Session()), grader, repo)

	// With HTTP enabled the process outlives stdin and stops on a signal.
	httpErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		go func() { httpErr <- srv.ListenHTTP(ctx, cfg.HTTPAddr) }()
	}
	stdioErr := make(chan error, 1)
	go func() { stdioErr <- srv.Run(ctx) }()

	var (
		runErr   error
		httpDone = cfg.HTTPAddr == ""
	)
	select {
	case runErr = <-stdioErr:
		if runErr == nil && !httpDone {
			logger.Info().Msg("stdin closed, serving HTTP only")
			select {
			case runErr = <-httpErr:
				httpDone = true
			case <-ctx.Done():
			}
		}
	case runErr = <-httpErr:
		httpDone = true
	case <-ctx.Done():
	}
	stop()

	if !httpDone {
		select {
		case err := <-httpErr:
			if runErr == nil {
				runErr = err
			}
		case <-time.After(15 * time.Second):
		}
	}
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Server error")
		repo.Close()
		os.Exit(1)
	}
}

func openRepository(ctx context.Context, logger zerolog.Logger, cfg *config.Config) (history.Repository, error) {
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return history.OpenPostgres(ctx, logger, cfg.DatabaseURL)
	}
	return history.OpenFile(logger, cfg.HistoryPath)
}
