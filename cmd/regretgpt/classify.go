package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xaenox/regretgpt/internal/models"
)

func newClassifyCommand(app *appContext) *cobra.Command {
	var req models.ClassificationRequest
	var contextJSON string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one message and print the verdict as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Text = strings.TrimSpace(req.Text)
			if req.Text == "" {
				return errors.New("--text is required")
			}
			ctxMap, err := parseContext(contextJSON)
			if err != nil {
				return err
			}
			req.Context = ctxMap

			cfg, err := app.ensureConfig()
			if err != nil {
				return err
			}
			logger := app.ensureLogger()
			defer logger.Sync()

			result := newClassifier(cfg, logger).Classify(cmd.Context(), req)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&req.Text, "text", "", "Text the user is about to send")
	cmd.Flags().StringVar(&req.URL, "url", "", "Site the text was typed on")
	cmd.Flags().StringVar(&req.Timestamp, "time", "", "Client timestamp (ISO 8601)")
	cmd.Flags().StringVar(&contextJSON, "context-json", "", "Extra context as a JSON object")

	return cmd
}

func parseContext(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("--context-json must be a JSON object: %w", err)
	}
	return out, nil
}
