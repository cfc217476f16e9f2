package cmd

import (
	"github.com/spf13/cobra"
)

var buildForce bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or load the vector index from ingested passages",
	Long: `Loads the persisted vector index, building it from the chunk and
embedding files when none exists. --force always rebuilds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager, _, err := newManager(cfg)
		if err != nil {
			return err
		}
		ix, err := manager.BuildOrLoad(cmd.Context(), buildForce)
		if err != nil {
			return err
		}
		printIndexInfo(manager.State(), ix.Info())
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild even if an index exists")
	rootCmd.AddCommand(buildCmd)
}
