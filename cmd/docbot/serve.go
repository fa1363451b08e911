package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/docbot/server"
	"github.com/brunobiangulo/docbot/telegram"
)

const shutdownTimeout = 30 * time.Second

// errNothingToServe is returned when neither transport is configured.
var errNothingToServe = errors.New("nothing to serve: set TELEGRAM_BOT_TOKEN or DOCBOT_HTTP_ADDR")

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the HTTP API",
		Long: `Run the Telegram bot (when a bot token is configured) and the JSON HTTP
API (when --addr or http.addr is set) until interrupted.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "HTTP API listen address, e.g. :8080")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if cfg.Telegram.Token == "" && cfg.HTTP.Addr == "" {
		return errNothingToServe
	}

	assistant, err := newAssistant(cfg)
	if err != nil {
		return fmt.Errorf("creating assistant: %w", err)
	}
	defer assistant.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Telegram.Token != "" {
		bot, err := telegram.New(cfg.Telegram, assistant)
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(ctx) })
	}

	if cfg.HTTP.Addr != "" {
		srv := server.NewHTTPServer(assistant, cfg.HTTP)
		g.Go(func() error {
			slog.Info("server starting", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	slog.Info("docbot stopped")
	return err
}
