package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/retriever"
	"github.com/reiness/edos-jls-chatbot/internal/vectordb"
)

var (
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the SOP index without generating an answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager, emb, err := newManager(cfg)
		if err != nil {
			return err
		}
		if queryLimit < 1 {
			return fmt.Errorf("--limit must be at least 1")
		}

		query := strings.Join(args, " ")
		results, err := retriever.New(emb, manager).Retrieve(cmd.Context(), query, retriever.TopK{K: queryLimit})
		if err != nil {
			return err
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		fmt.Print(vectordb.FormatResults(results))
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 5, "number of passages to return")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd)
}
