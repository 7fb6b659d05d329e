package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/sieve/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provider and model management",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported providers and their default models",
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range llm.Providers() {
			fmt.Fprintf(os.Stdout, "%s:\n", p.Name)
			fmt.Fprintf(os.Stdout, "  default model: %s\n", p.DefaultModel)
			if p.NeedsKey() {
				status := "missing"
				if p.APIKey() != "" {
					status = "set"
				}
				fmt.Fprintf(os.Stdout, "  api key: %s (%s)\n", strings.Join(p.KeyEnv, " or "), status)
			}
			if p.BaseURLEnv != "" {
				fmt.Fprintf(os.Stdout, "  base url: %s\n", p.BaseURLEnv)
			}
			fmt.Fprintln(os.Stdout)
		}
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials with a one-token request",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Checking %s...\n", cfg.Provider)

		client, err := llm.NewClient(llm.Options{
			Provider:   cfg.Provider,
			Model:      cfg.Model,
			BaseURL:    cfg.LLM.BaseURL,
			MaxRetries: 1,
		}, newLogger(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err = client.Complete(ctx, llm.Request{
			System:    "Respond with exactly: ok",
			Prompt:    "ping",
			MaxTokens: 10,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			if llm.IsAuthError(err) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}

		fmt.Fprintf(os.Stdout, "OK: %s (%s) is configured and responding\n", cfg.Provider, client.Model())
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	modelsDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
}
