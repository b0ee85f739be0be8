// Command simplepaged runs the headless-browser control plane: a
// persistent browser context, the page manager, and the REST/WebSocket
// API surface over it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simplepage/internal/api"
	"simplepage/internal/config"
	"simplepage/internal/pagemanager"
	"simplepage/internal/replay"
)

func main() {
	replayConfigPath := flag.String("replay", "", "path to a YAML replay config; runs that trace once and exits instead of serving")
	flag.Parse()

	cfg := config.Load()

	lvl := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	browser := pagemanager.NewBrowserContext(pagemanager.BrowserConfig{
		Headless:        cfg.Headless,
		UserDataDir:     cfg.UserDataDir,
		MemoryLimit:     cfg.MemoryLimit,
		RecycleInterval: cfg.RecycleInterval,
		Logger:          logger,
	})
	if err := browser.Start(ctx); err != nil {
		logger.Error("browser start failed", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	mgr := pagemanager.New(cfg, browser, logger, nil)
	replayDriver := replay.New(mgr, logger)

	if *replayConfigPath != "" {
		runReplayAndExit(ctx, *replayConfigPath, replayDriver, logger)
		return
	}

	srv := api.New(cfg, mgr, replayDriver)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("simplepage listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
}

// runReplayAndExit loads a YAML replay config, runs the referenced trace
// once against the already-started browser (the same replay driver POST
// /api/replay dispatches to), prints the result as JSON, and exits.
func runReplayAndExit(ctx context.Context, configPath string, d *replay.Driver, logger *slog.Logger) {
	fileCfg, err := replay.LoadConfig(configPath)
	if err != nil {
		logger.Error("replay config load failed", "error", err)
		os.Exit(1)
	}
	actions, err := replay.LoadActions(fileCfg.ActionsFile)
	if err != nil {
		logger.Error("replay actions load failed", "error", err)
		os.Exit(1)
	}

	result, err := d.Run(ctx, actions, fileCfg.Options)
	if err != nil {
		logger.Error("replay run failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	if !result.Success {
		os.Exit(1)
	}
}
