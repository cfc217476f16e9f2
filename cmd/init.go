package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize sopbot configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose embedding and generation backends and writes a .sopbot.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}
		if env := config.APIKeyEnvVar(cfg.Generation.Provider); env != "" && cfg.Generation.APIKey == "" {
			fmt.Printf("\nSet %s (or add it to .env) before asking questions.\n", env)
		}
		fmt.Println("Next: place your SOPs and .metadata.json in", cfg.Paths.SourceDir, "and run `sopbot ingest --build`.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
