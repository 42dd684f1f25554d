package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

var (
	askTargets []string
	askTopK    int
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from Drive documents",
	Long: `Fetches the given files and folders, indexes their content and
answers the question from the most relevant passages. Folders are
traversed recursively.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVarP(&askTargets, "target", "t", nil, "Drive file or folder ID (repeatable)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if len(askTargets) == 0 {
		return errors.New("at least one --target is required")
	}

	app, err := buildApplication(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	answer, err := app.answers.Answer(cmd.Context(), domain.QueryRequest{
		Question:  args[0],
		TargetIDs: askTargets,
		TopK:      askTopK,
	})
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, answer)
	}
	return outputAnswerText(cmd, answer)
}

func outputAnswerJSON(cmd *cobra.Command, answer *domain.Answer) error {
	sources := make([]string, 0, len(answer.Cited))
	seen := make(map[string]struct{}, len(answer.Cited))
	for _, c := range answer.Cited {
		if _, ok := seen[c.SourceName]; ok {
			continue
		}
		seen[c.SourceName] = struct{}{}
		sources = append(sources, c.SourceName)
	}

	data, err := json.MarshalIndent(map[string]any{
		"answer":   answer.Text,
		"sources":  sources,
		"warnings": answer.Warnings,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, answer *domain.Answer) error {
	cmd.Println(answer.Text)

	if len(answer.Cited) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		seen := make(map[string]struct{}, len(answer.Cited))
		for _, c := range answer.Cited {
			if _, ok := seen[c.SourceName]; ok {
				continue
			}
			seen[c.SourceName] = struct{}{}
			cmd.Printf("  - %s\n", c.SourceName)
		}
	}

	if len(answer.Warnings) > 0 {
		cmd.Println()
		cmd.Println("Warnings:")
		for _, warning := range answer.Warnings {
			cmd.Printf("  - %s\n", warning)
		}
	}
	return nil
}
