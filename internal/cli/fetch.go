package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/sieve/internal/capability"
	"github.com/dshills/sieve/internal/changeset"
	"github.com/dshills/sieve/internal/github"
)

var flagFetchRaw bool

// fetchedPR is the change set as printed by the fetch command.
type fetchedPR struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Files []string `json:"files"`
	Diff  string   `json:"diff"`
}

func writeFetched(w io.Writer, cs capability.ChangeSet) error {
	files := cs.Files
	if files == nil {
		files = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fetchedPR{URL: cs.Ref.URL(), Title: cs.Title, Body: cs.Body, Files: files, Diff: cs.Diff})
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <pr-url>",
	Short: "Fetch a pull request through the configured backend and print it",
	Long: "Fetch pull request metadata and diff with the same backend and redaction " +
		"the review command uses. Nothing is sent to a model and nothing is posted.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if flagBackend != "" {
			overrides["github.backend"] = flagBackend
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			return err
		}

		ref, err := changeset.Parse(args[0], cfg.GitHub.Host)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		log := newLogger(cfg)
		cs, err := newBackend(cfg, log).Fetch(context.Background(), ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, github.ErrAuth) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}

		if r := newRedactor(cfg, log); r != nil && !flagFetchRaw {
			cs.Title = r.Text(cs.Title)
			cs.Body = r.Text(cs.Body)
			cs.Diff = r.Text(cs.Diff)
		}

		if err := writeFetched(os.Stdout, cs); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&flagBackend, "backend", "", "GitHub backend (api, gh)")
	fetchCmd.Flags().BoolVar(&flagFetchRaw, "raw", false, "Print the diff without secret redaction")
}
