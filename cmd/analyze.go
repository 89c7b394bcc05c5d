package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	analyzeFile  string
	analyzeNoCRM bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one sales-call transcript",
	Long:  "Runs the full pipeline for a single transcript read from --file (or stdin) and prints the result as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		transcript, err := readTranscript()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, !analyzeNoCRM)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, transcript)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		for _, d := range result.Degradations() {
			zap.L().Warn("stage degraded",
				zap.String("stage", d.Stage),
				zap.String("error", d.Error),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// readTranscript loads the transcript from --file, or stdin when no file is given.
func readTranscript() (string, error) {
	if analyzeFile != "" {
		data, err := os.ReadFile(analyzeFile)
		if err != nil {
			return "", eris.Wrapf(err, "read transcript %s", analyzeFile)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", eris.Wrap(err, "read transcript from stdin")
	}
	return string(data), nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "transcript file (default: stdin)")
	analyzeCmd.Flags().BoolVar(&analyzeNoCRM, "no-crm", false, "skip the CRM sheet write")
	rootCmd.AddCommand(analyzeCmd)
}
