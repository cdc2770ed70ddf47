package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/franksymon/Chatbot-api/internal/profile"
	"github.com/franksymon/Chatbot-api/plugin/ai"
	"github.com/franksymon/Chatbot-api/plugin/ai/engine"
	"github.com/franksymon/Chatbot-api/plugin/ai/prompt"
	"github.com/franksymon/Chatbot-api/plugin/ai/session"
	"github.com/franksymon/Chatbot-api/plugin/report"
	"github.com/franksymon/Chatbot-api/server"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Clinical assistant chat service",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
}

func run() error {
	p, err := profile.Load(configFile)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	level := slog.LevelInfo
	if p.Mode == "dev" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	gateway, err := ai.NewGatewayFromProfile(p)
	if err != nil {
		return fmt.Errorf("configure providers: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := session.NewStore()
	cleanup := session.NewCleanupJob(store, session.CleanupConfig{
		Retention:       p.SessionRetention,
		CleanupInterval: p.CleanupInterval,
	})
	cleanup.Start(ctx)
	defer cleanup.Stop()

	eng := engine.NewEngine(gateway, store, prompt.NewManager(), nil, engine.Config{
		MaxContextTokens:   p.MaxContextTokens,
		MaxConcurrentCalls: p.MaxConcurrentCalls,
	})

	// The report summary reuses whichever provider is configured,
	// preferring gemini to match the interactive default.
	var summaryModel ai.ChatModel
	for _, tag := range []string{"gemini", "openai"} {
		if model, err := gateway.Resolve(tag); err == nil {
			summaryModel = model
			break
		}
	}

	srv := server.NewServer(p, eng, report.NewGenerator(summaryModel))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	return srv.Shutdown(context.Background())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
