package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wearcast/wearcast/internal/agent"
	"github.com/wearcast/wearcast/internal/app"
	"github.com/wearcast/wearcast/internal/config"
)

var showReasoning bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&showReasoning, "reasoning", false, "print the model's reasoning block")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Keep stdout clean for the answer; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.RequestTimeoutSec)*time.Second)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	question := strings.TrimSpace(strings.Join(args, " "))
	resp, err := a.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("asking: %w", err)
	}

	reasoning, answer := agent.SplitReasoning(resp.Answer)
	if showReasoning && reasoning != "" {
		fmt.Println("Reasoning:")
		fmt.Println(reasoning)
		fmt.Println()
	}
	fmt.Println(answer)

	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, s := range resp.Sources {
			if s.Name != "" {
				fmt.Printf("  - %s (%s)\n", s.Name, s.URL)
			} else {
				fmt.Printf("  - %s\n", s.URL)
			}
		}
	}

	return nil
}
