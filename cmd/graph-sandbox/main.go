package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexjbarnes/ampwidgets/internal/config"
	"github.com/alexjbarnes/ampwidgets/internal/logging"
	"github.com/alexjbarnes/ampwidgets/internal/sandbox"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

func main() {
	// Handle hash-password subcommand before config loading.
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		hashPassword()
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func hashPassword() {
	fmt.Fprint(os.Stderr, "Enter password: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		fmt.Fprintln(os.Stderr, "no input")
		os.Exit(1)
	}
	password := scanner.Text()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}

func run() error {
	cfg, err := config.LoadSandbox()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel, os.Stderr)

	users, err := cfg.ParseUsers()
	if err != nil {
		return fmt.Errorf("parsing users: %w", err)
	}

	var fixtures *sandbox.Fixtures
	if cfg.Fixtures != "" {
		fixtures, err = sandbox.LoadFixtures(cfg.Fixtures)
		if err != nil {
			return err
		}
	}

	sb, err := sandbox.New(sandbox.Config{
		ServerURL: cfg.ServerURL,
		ClientIDs: cfg.ClientIDs,
		Users:     users,
		TokenTTL:  cfg.TokenTTL,
		Fixtures:  fixtures,
	}, logger)
	if err != nil {
		return err
	}
	defer sb.Close()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           sb,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		logger.Info("graph sandbox starting",
			slog.String("version", Version),
			slog.String("listen", cfg.ListenAddr),
			slog.String("graph", cfg.ServerURL+"/v2.9/"),
			slog.String("dialog", cfg.ServerURL+"/v2.9/dialog/oauth"),
			slog.Int("users", len(users)),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	return g.Wait()
}
