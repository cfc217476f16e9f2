package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/history"
)

var (
	historySession string
	historyLimit   int
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded questions and answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, database, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		turns, err := store.List(cmd.Context(), history.Filter{SessionID: historySession, Limit: historyLimit})
		if err != nil {
			return err
		}
		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(turns)
		}
		if len(turns) == 0 {
			fmt.Println("No conversations recorded.")
			return nil
		}
		for _, t := range turns {
			fmt.Printf("[%s] %s (%s)\n", t.AskedAt.Local().Format("2006-01-02 15:04"), t.SessionID, t.Policy)
			fmt.Printf("Q: %s\nA: %s\n", t.Query, t.Answer)
			for _, c := range t.Sources {
				fmt.Printf("   - %s (%s)\n", c.Title, c.Section)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySession, "session", "", "only show one session")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "most recent turns to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print turns as JSON")
	rootCmd.AddCommand(historyCmd)
}
