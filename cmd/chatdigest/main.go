package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MikeSquared-Agency/chatdigest/internal/api"
	"github.com/MikeSquared-Agency/chatdigest/internal/config"
	"github.com/MikeSquared-Agency/chatdigest/internal/convert"
	"github.com/MikeSquared-Agency/chatdigest/internal/digest"
	"github.com/MikeSquared-Agency/chatdigest/internal/hermes"
	"github.com/MikeSquared-Agency/chatdigest/internal/slack"
	"github.com/MikeSquared-Agency/chatdigest/internal/store"
)

func main() {
	if err := newApp(config.Load(), os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func outputDirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "output-dir",
		Aliases: []string{"o"},
		Value:   "output_md",
		EnvVars: []string{"CHATDIGEST_OUTPUT_DIR"},
		Usage:   "directory the daily Markdown files are written to",
	}
}

func newApp(cfg config.Config, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "chatdigest",
		Usage:     "convert a chat export archive into daily Markdown digests",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input-json",
				Aliases: []string{"i"},
				Value:   "conversations.json",
				EnvVars: []string{"CHATDIGEST_INPUT"},
				Usage:   "path to the exported conversations.json",
			},
			outputDirFlag(),
			&cli.StringFlag{Name: "since", Usage: "only include dates on or after `YYYY-MM-DD`"},
			&cli.StringFlag{Name: "until", Usage: "only include dates on or before `YYYY-MM-DD`"},
			&cli.BoolFlag{Name: "dry-run", Usage: "list the files that would be written without writing them"},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogging(cfg.LogLevel, stderr, false)
			return runConvert(c.Context, cfg, convert.Config{
				InputPath: c.String("input-json"),
				OutputDir: c.String("output-dir"),
				Since:     c.String("since"),
				Until:     c.String("until"),
				DryRun:    c.Bool("dry-run"),
			}, stdout, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve written digests over HTTP",
				Flags: []cli.Flag{outputDirFlag()},
				Action: func(c *cli.Context) error {
					logger := setupLogging(cfg.LogLevel, stderr, true)
					return runServe(c.Context, cfg, c.String("output-dir"), logger)
				},
			},
		},
	}
}

// runConvert wires the optional side outputs and executes one conversion run.
// Side outputs that fail to connect are logged and left out of the run.
func runConvert(ctx context.Context, cfg config.Config, runCfg convert.Config, stdout io.Writer, logger *slog.Logger) error {
	var opts []convert.Option

	if cfg.DatabaseURL != "" {
		db, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("database unavailable, digests will not be stored", "error", err)
		} else {
			defer db.Close()
			opts = append(opts, convert.WithSink(db))
		}
	}

	if cfg.NatsURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		hc, err := hermes.NewClient(connectCtx, cfg.NatsURL, cfg.NatsToken, logger)
		cancel()
		if err != nil {
			logger.Warn("NATS unavailable, events will not be published", "error", err)
		} else {
			defer hc.Close()
			opts = append(opts, convert.WithPublisher(hc))
		}
	}

	if cfg.SlackEnabled() {
		opts = append(opts, convert.WithNotifier(slack.NewPoster(cfg.SlackToken, cfg.SlackChannel, logger)))
	}

	_, err := convert.NewRunner(runCfg, stdout, logger, opts...).Run(ctx)
	return err
}

func runServe(ctx context.Context, cfg config.Config, outputDir string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source api.Source = digest.Dir{Path: outputDir}
	if cfg.DatabaseURL != "" {
		db, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		source = db
		logger.Info("serving digests from database")
	} else {
		logger.Info("serving digests from directory", "dir", outputDir)
	}

	srv := api.NewServer(cfg.Port, cfg.APIToken, source, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("chatdigest stopped")
	return nil
}

func openStore(ctx context.Context, url string) (*store.Store, error) {
	db, err := store.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func setupLogging(level string, w io.Writer, asJSON bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if asJSON {
		handler = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
