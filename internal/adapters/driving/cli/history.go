package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworks/driveanswer/internal/adapters/driven/answerstore/sqlite"
	"github.com/quillworks/driveanswer/internal/adapters/driven/config/file"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently answered questions",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of entries")
	rootCmd.AddCommand(historyCmd)
}

// runHistory opens the answer store directly so the command works
// without Drive or AI credentials configured.
func runHistory(cmd *cobra.Command, _ []string) error {
	settings, err := file.Load(cfgPath)
	if err != nil {
		return err
	}
	if !settings.History.Enabled {
		return errors.New("history is disabled in configuration")
	}

	store, err := sqlite.NewStore(settings.History.DataDir)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}

	if len(records) == 0 {
		cmd.Println("No answers recorded yet.")
		return nil
	}

	for _, rec := range records {
		cmd.Printf("[%s] %s\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Question)
		cmd.Printf("    %s\n", rec.Answer)
		for _, src := range rec.Sources {
			cmd.Printf("    - %s\n", src)
		}
		cmd.Println()
	}
	return nil
}
