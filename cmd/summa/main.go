package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ekisa-team/summa/internal/backend"
	"github.com/ekisa-team/summa/internal/backend/llama"
	"github.com/ekisa-team/summa/internal/config"
	"github.com/ekisa-team/summa/internal/config/source"
	"github.com/ekisa-team/summa/internal/env"
	"github.com/ekisa-team/summa/internal/envvar"
	"github.com/ekisa-team/summa/internal/logger"
	"github.com/ekisa-team/summa/internal/metrics"
	"github.com/ekisa-team/summa/internal/model"
	"github.com/ekisa-team/summa/internal/service"
	"github.com/ekisa-team/summa/internal/xfs"
)

var version = "dev"

func main() {
	// Writes to a closed stdout must fail with EPIPE so the sink can halt
	// generation; by default the runtime kills the process instead.
	signal.Ignore(syscall.SIGPIPE)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Println("summa", version)
		return 0
	}

	environment := env.FromEnv()
	level := logger.LevelFromVerbosity(int(opts.verbose))
	slog.SetDefault(logger.New(environment, logger.WithLevel(level)))

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return 1
	}

	if cfg.Logging.ToFile || cfg.Logging.File != "" {
		slog.SetDefault(logger.New(environment,
			logger.WithLevel(level),
			logger.WithLogToFile(true),
			logger.WithLogFile(xfs.ExpandTilde(cfg.Logging.File)),
		))
	}

	slog.Debug("Config loaded", "environment", environment, "provider", cfg.Runtime.Provider)

	runtimes := backend.NewRegistry()
	if err := runtimes.Register(llama.NewRuntime(
		llama.WithBinary(llamaBinary(cfg)),
		llama.WithTimeout(cfg.Runtime.Timeout),
	)); err != nil {
		slog.Error("Failed to register runtime", "error", err)
		return 1
	}

	modelsDir := xfs.ExpandTilde(config.DefaultModelsPath())
	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	svcOpts := []service.Option{
		service.WithStdin(os.Stdin),
		service.WithStdout(stdout),
	}
	if level <= logger.LevelTrace {
		svcOpts = append(svcOpts, service.WithDiagnostics(os.Stderr))
	}
	if fetcher := newFetcher(cfg, modelsDir); fetcher != nil {
		svcOpts = append(svcOpts, service.WithFetcher(fetcher))
	}

	var runMetrics *metrics.Run
	if cfg.Metrics.File != "" {
		runMetrics = metrics.NewRun()
		svcOpts = append(svcOpts, service.WithMetrics(runMetrics))
	}

	path, origin := modelPath(opts, cfg)
	summarizer := service.NewSummarizer(runtimes, cfg.Locator(modelsDir), cfg, svcOpts...)

	_, err = summarizer.Run(ctx, service.Request{
		ModelPath:   path,
		ModelOrigin: origin,
		InputPath:   opts.inputPath,
	})

	if runMetrics != nil {
		if werr := runMetrics.WriteTo(xfs.ExpandTilde(cfg.Metrics.File)); werr != nil {
			slog.Warn("Failed to write metrics", "error", werr)
		}
	}

	if err != nil {
		var se *service.StageError
		if errors.As(err, &se) {
			slog.Error("Summarization failed", "stage", se.Stage.String(), "path", se.Path, "error", se.Err)
		} else {
			slog.Error("Summarization failed", "error", err)
		}
		return 1
	}

	return 0
}

// loadConfig reads the config file and applies flag overrides. A missing
// default file is fine; a missing file that was asked for is not.
func loadConfig(opts *options) (*config.Config, error) {
	path := opts.configPath
	required := path != "" || os.Getenv(envvar.SummaConfig) != ""
	if path == "" {
		path = config.DefaultConfigFile()
	}

	cfg, err := config.Load(xfs.ExpandTilde(path), required)
	if err != nil {
		return nil, err
	}

	if opts.contextSet {
		if _, err := backend.ContextSizeFromExponent(opts.contextExponent); err != nil {
			return nil, fmt.Errorf("-c: %w", err)
		}
		cfg.Runtime.ContextExponent = opts.contextExponent
	}
	if opts.metricsFile != "" {
		cfg.Metrics.File = opts.metricsFile
	}
	cfg.Model.SearchPaths = xfs.ExpandAll(cfg.Model.SearchPaths)

	return cfg, nil
}

// modelPath picks the explicit model path: flag, then SUMMA_MODEL_PATH,
// then the config file. An empty path enables discovery.
func modelPath(opts *options, cfg *config.Config) (string, model.Origin) {
	switch {
	case opts.modelPath != "":
		return xfs.ExpandTilde(opts.modelPath), model.OriginExplicit
	case os.Getenv(envvar.SummaModelPath) != "":
		return xfs.ExpandTilde(os.Getenv(envvar.SummaModelPath)), model.OriginEnvironment
	case cfg.Model.Path != "":
		return xfs.ExpandTilde(cfg.Model.Path), model.OriginConfig
	default:
		return "", ""
	}
}

func llamaBinary(cfg *config.Config) string {
	if bin := os.Getenv(envvar.SummaLlamaBin); bin != "" {
		return xfs.ExpandTilde(bin)
	}
	if cfg.Runtime.Binary != "" {
		return xfs.ExpandTilde(cfg.Runtime.Binary)
	}

	return llama.DefaultBinary
}

func newFetcher(cfg *config.Config, modelsDir string) service.Fetcher {
	if _, err := cfg.Model.GetSource(); err != nil {
		return nil
	}

	executor, err := backend.NewExecutor(source.DefaultBinary, source.DefaultTimeout)
	if err != nil {
		slog.Warn("Model download disabled", "error", err)
		return nil
	}

	return &service.DownloadFetcher{
		Downloader: source.NewHuggingFaceDownloader(executor),
		Model:      &cfg.Model,
		TargetDir:  modelsDir,
	}
}
