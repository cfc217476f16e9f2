package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/db"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/embeddings"
	"github.com/reiness/edos-jls-chatbot/internal/history"
	"github.com/reiness/edos-jls-chatbot/internal/lifecycle"
	"github.com/reiness/edos-jls-chatbot/internal/retriever"
	"github.com/reiness/edos-jls-chatbot/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `sopbot init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	debugf("config: embedding=%s/%s generation=%s/%s\n",
		cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Generation.Provider, cfg.Generation.Model)
	return cfg, nil
}

// newManager builds the index lifecycle manager; only the embedding backend
// is needed, so commands that never generate work without an LLM key.
func newManager(cfg *config.Config) (*lifecycle.Manager, *embeddings.Provider, error) {
	emb, err := embeddings.FromConfig(cfg.Embedding)
	if err != nil {
		return nil, nil, err
	}
	return lifecycle.New(cfg.Paths, emb), emb, nil
}

// openHistory opens the conversation log at cfg.Paths.HistoryDB.
func openHistory(cfg *config.Config) (*history.Store, *db.DB, error) {
	database, err := db.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history database: %w", err)
	}
	return history.NewStore(database), database, nil
}

// addPolicyFlags registers the mutually exclusive --top-k and --threshold flags.
func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().Int("top-k", 0, "use the k most similar passages")
	cmd.Flags().Float64("threshold", 0, "use every passage scoring at or above this similarity (0-1)")
	cmd.MarkFlagsMutuallyExclusive("top-k", "threshold")
}

// policyFromFlags resolves --top-k/--threshold against the configured default.
func policyFromFlags(cmd *cobra.Command, cfg *config.Config) (retriever.Policy, error) {
	var topK *int
	var threshold *float64
	if cmd.Flags().Changed("top-k") {
		k, _ := cmd.Flags().GetInt("top-k")
		topK = &k
	}
	if cmd.Flags().Changed("threshold") {
		th, _ := cmd.Flags().GetFloat64("threshold")
		threshold = &th
	}
	return retriever.Resolve(topK, threshold, retriever.FromConfig(cfg.Retrieval))
}

// printIndexInfo summarizes the active index for humans.
func printIndexInfo(state lifecycle.State, info vectordb.Info) {
	fmt.Printf("Index %s: %d passages, dimension %d", state, info.Count, info.Dimension)
	if info.Embedder != "" {
		fmt.Printf(", embedder %s", info.Embedder)
	}
	if !info.BuiltAt.IsZero() {
		fmt.Printf(", built %s", info.BuiltAt.Local().Format(time.DateTime))
	}
	fmt.Println()
}

func printCitations(sources []domain.SourceCitation) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, c := range sources {
		fmt.Printf("  %d. %s", i+1, c.Title)
		if c.Section != "" {
			fmt.Printf(" (%s)", c.Section)
		}
		fmt.Printf(" [%.2f]\n", c.Score)
		if c.Link != "" {
			fmt.Printf("     %s\n", c.Link)
		}
		fmt.Printf("     %s\n", c.Snippet)
	}
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
