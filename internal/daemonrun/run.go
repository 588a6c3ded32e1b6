package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clipforge/internal/acquire"
	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/deps"
	"clipforge/internal/ledger"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/publish"
	"clipforge/internal/queue"
	"clipforge/internal/resolver"
	"clipforge/internal/storage"
	"clipforge/internal/transcode"
	"clipforge/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run wires up every pipeline component and blocks until the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", filepath.Join(cfg.Paths.LogDir, "clipforge.log")},
		ErrorOutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "clipforge.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	statuses := deps.CheckBinaries(deps.ForConfig(cfg))
	for _, status := range statuses {
		if !status.Available {
			logger.Warn("external binary unavailable",
				logging.String("name", status.Name),
				logging.String("command", status.Command),
				logging.String("detail", status.Detail),
			)
		}
	}
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return fmt.Errorf("required binaries unavailable: %s", strings.Join(missing, ", "))
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "clipforged.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	books, err := ledger.New(store.DB())
	if err != nil {
		logger.Error("open credit ledger", logging.Error(err))
		return err
	}

	objects, err := storage.NewLocal(cfg.Paths.LibraryDir)
	if err != nil {
		logger.Error("open media store", logging.Error(err))
		return err
	}
	signer, err := storage.NewSigner(cfg.Paths.SigningSecret, cfg.Paths.PublicBaseURL)
	if err != nil {
		logger.Error("init link signer", logging.Error(err))
		return err
	}
	publisher, err := publish.New(objects, signer, time.Duration(cfg.Pipeline.LinkTTLHours)*time.Hour)
	if err != nil {
		logger.Error("init publisher", logging.Error(err))
		return err
	}
	runner, err := transcode.New(cfg.Pipeline.FFmpegBinary)
	if err != nil {
		logger.Error("init transcoder", logging.Error(err))
		return err
	}

	manager, err := workflow.NewManager(cfg, workflow.Deps{
		Store:     store,
		Ledger:    books,
		Acquirer:  acquire.New(objects, time.Duration(cfg.Pipeline.DownloadTimeout)*time.Second, logger),
		Runner:    runner,
		Publisher: publisher,
		Resolver:  buildResolver(cfg, logger),
		Notifier:  notifications.NewService(cfg),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create workflow manager: %w", err)
	}

	d, err := daemon.New(cfg, store, books, objects, signer, manager, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("clipforge daemon shutting down")
	return nil
}

// buildResolver returns a text-to-footage resolver when both external
// services are configured, nil otherwise. A nil resolver leaves the rest of
// the pipeline fully functional; only generate-from-text reports a
// configuration error.
func buildResolver(cfg *config.Config, logger *slog.Logger) *resolver.Resolver {
	keywordsReady := strings.TrimSpace(cfg.Keywords.APIKey) != ""
	stockReady := strings.TrimSpace(cfg.Stock.APIKey) != ""
	if !keywordsReady || !stockReady {
		logger.Warn("text generation disabled",
			logging.Bool("keywords_key_present", keywordsReady),
			logging.Bool("stock_key_present", stockReady),
		)
		return nil
	}
	return resolver.New(
		resolver.NewKeywordsClient(cfg.Keywords),
		resolver.NewStockClient(cfg.Stock),
		logger,
	)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
