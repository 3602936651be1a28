// Framecull Agent - local media culling agent
//
// Runs an HTTP API on localhost for the desktop frontend, keeps clip
// trims and LUT selections in SQLite, drives trim-constrained playback
// sessions and runs culled exports through ffmpeg.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framecull/framecull-agent/internal/api"
	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/compositor"
	"github.com/framecull/framecull-agent/internal/config"
	"github.com/framecull/framecull-agent/internal/db"
	"github.com/framecull/framecull-agent/internal/export"
	"github.com/framecull/framecull-agent/internal/logging"
	"github.com/framecull/framecull-agent/internal/lut"
	"github.com/framecull/framecull-agent/internal/media"
	"github.com/framecull/framecull-agent/internal/playback"
	"github.com/framecull/framecull-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.BundledLUTDir(), cfg.UserLUTDir(), cfg.TrashDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting framecull agent",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	token, err := ensureAuthToken(database)
	if err != nil {
		return fmt.Errorf("auth token: %w", err)
	}

	lutStore := lut.NewStore(database.Conn())
	catalog := lut.NewCatalog(lutStore, cfg.BundledLUTDir(), cfg.UserLUTDir(), logger)
	if err := catalog.Load(context.Background()); err != nil {
		return fmt.Errorf("load LUT catalog: %w", err)
	}

	repo := clip.NewRepository(database.Conn())
	service := clip.NewService(repo, catalog, logger)
	defer service.Close()

	opener := media.NewFFmpeg(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	pool := media.NewPool(opener, cfg.MaxDecodeHandles())

	comp := compositor.New(cfg.PreviewCacheSize(), logger)
	manager := playback.NewManager(pool, comp, cfg.GuardBandFrames(), logger)
	defer manager.CloseAll()

	// The tray is created after the runner but receives its progress
	// callbacks; the indirection keeps construction order simple.
	var tray *ui.Tray
	callbacks := export.Callbacks{
		OnProgress: func(p export.Progress) {
			if tray != nil {
				tray.UpdateProgress(p)
			}
		},
		OnStatus: func(msg string) {
			if tray != nil {
				tray.UpdateStatus(msg)
			}
		},
	}

	planner := export.NewPlanner(opener)
	encoder := export.NewFFmpegEncoder(cfg.FFmpegPath(), opener, cfg.PassthroughTimeout(), cfg.EncodeTimeout(), logger)
	exportStore := export.NewSQLiteStore(database)
	runner := export.NewRunner(repo, catalog, planner, encoder, comp, exportStore, cfg.TrashDir(), callbacks, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		ClipService: service,
		Catalog:     catalog,
		Playback:    manager,
		Exporter:    runner,
		ExportStore: exportStore,
		Tokens:      database,
		Logger:      logger,
		StartTime:   time.Now(),
		Version:     config.Version,
	})

	printBanner(apiServer.Addr(), token)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	if cfg.Headless() {
		logger.Info("running headless, no system tray")
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig.String())
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
		}
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Exporter: runner,
			Logger:   logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		if clips, err := repo.List(context.Background()); err == nil {
			go tray.UpdateClipsCount(len(clips))
		}

		go func() {
			select {
			case sig := <-sigCh:
				logger.Info("received signal", "signal", sig.String())
			case err := <-errCh:
				if err != nil {
					logger.Error("http server failed", "error", err)
				}
			case <-quitCh:
			}
			tray.Quit()
		}()

		// systray must own the main goroutine; Run blocks until Quit.
		tray.Run()
	}

	logger.Info("shutting down")
	if runner.IsRunning() {
		runner.Cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("agent stopped")
	return nil
}

// ensureAuthToken returns the persistent API bearer token, generating
// one on first run.
func ensureAuthToken(database *db.DB) (string, error) {
	ctx := context.Background()

	token, err := database.GetConfig(ctx, "auth_token")
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token = hex.EncodeToString(buf)

	if err := database.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}

func printBanner(addr, token string) {
	fmt.Println("===========================================")
	fmt.Println(" Framecull Agent", config.Version)
	fmt.Println("===========================================")
	fmt.Printf("  API:   http://%s\n", addr)
	fmt.Printf("  Token: %s\n", token)
	fmt.Println("===========================================")
}
