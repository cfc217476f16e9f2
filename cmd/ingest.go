package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/composer"
	"github.com/reiness/edos-jls-chatbot/internal/ingest"
	"github.com/reiness/edos-jls-chatbot/internal/progress"
)

var ingestBuild bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract, chunk and embed the source SOP documents",
	Long: `Reads the acquisition manifest (.metadata.json) in the source directory,
extracts text from every listed PDF, text and Markdown file, splits it into
overlapping passages, embeds them and writes the chunk and embedding files.
With --build the vector index is rebuilt afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager, emb, err := newManager(cfg)
		if err != nil {
			return err
		}

		pipeline := ingest.NewPipeline(emb, cfg,
			ingest.WithReporter(progress.NewReporter()),
			ingest.WithTokenCounter(composer.NewTiktokenCounter(cfg.Composer.TokenizerModel)),
			ingest.WithOutput(os.Stderr),
		)
		res, err := pipeline.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d document(s) into %d passages (dimension %d) in %s\n",
			res.Documents, res.Passages, res.Dimension, res.Duration.Round(time.Millisecond))
		for _, name := range res.Skipped {
			warnf("skipped %s", name)
		}

		if !ingestBuild {
			fmt.Println("Run `sopbot build` to refresh the index.")
			return nil
		}
		ix, err := manager.Build(cmd.Context())
		if err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		printIndexInfo(manager.State(), ix.Info())
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestBuild, "build", false, "rebuild the vector index after ingesting")
	rootCmd.AddCommand(ingestCmd)
}
