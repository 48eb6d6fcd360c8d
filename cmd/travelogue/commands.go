package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"travelogue/pkg/config"
	"travelogue/pkg/version"
)

const defaultConfigPath = "configs/travelogue.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "travelogue",
		Short:         "Generate and evaluate affective travelogues from recorded routes",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML configuration")

	root.AddCommand(
		newServeCmd(&configPath),
		newGenerateCmd(&configPath),
		newEvaluateCmd(&configPath),
		newVerdictCmd(&configPath),
		newInitConfigCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.serve(cmd.Context())
		},
	}
}

func newGenerateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <route-id>",
		Short: "Generate the travelogue for a route and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			res := a.generator.Generate(cmd.Context(), args[0])
			fmt.Fprintln(cmd.OutOrStdout(), res.Narrative())
			if !res.OK() {
				return fmt.Errorf("generation %s", res.Status)
			}
			return nil
		},
	}
}

func newEvaluateCmd(configPath *string) *cobra.Command {
	var journalPath string
	cmd := &cobra.Command{
		Use:   "evaluate <route-id>",
		Short: "Score a route's travelogue against a human journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := readJournal(cmd.InOrStdin(), journalPath)
			if err != nil {
				return err
			}
			a, cleanup, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ev, err := a.evaluator.Evaluate(cmd.Context(), args[0], journal)
			if err != nil {
				return err
			}
			return printJSON(cmd, ev)
		},
	}
	cmd.Flags().StringVarP(&journalPath, "journal", "j", "", "file holding the human journal, - for stdin")
	_ = cmd.MarkFlagRequired("journal")
	return cmd
}

func newVerdictCmd(configPath *string) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "verdict",
		Short: "Test whether stored F1 scores exceed the equivalence threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if threshold < 0 || threshold > 1 {
				return fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
			}
			a, cleanup, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := a.evaluator.Verdict(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "F1 threshold, 0 uses the configured value")
	return cmd
}

func newInitConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a default configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.GenerateDefault(*configPath); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file generated: %s\n", *configPath)
			return nil
		},
	}
}

func readJournal(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read journal: %w", err)
	}
	journal := strings.TrimSpace(string(data))
	if journal == "" {
		return "", errors.New("journal is empty")
	}
	return journal, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
