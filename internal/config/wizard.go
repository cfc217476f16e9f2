package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// DefaultPath is where the wizard saves and commands look for configuration.
const DefaultPath = ".sopbot.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .sopbot.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to sopbot! Let's configure your SOP assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Generation provider.
	genPrompt := promptui.Select{
		Label: "Select answer generation provider",
		Items: []string{"google", "openai", "ollama"},
	}
	_, genStr, err := genPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Generation.Provider = ProviderType(genStr)
	cfg.Generation.Model = GetPreset(cfg.Generation.Provider).Model

	// 2. Embedding provider.
	embPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{
			"google - Gemini embeddings",
			"openai - text-embedding-3",
			"ollama - local embedding model",
			"hash   - offline, no API key (lower quality)",
		},
	}
	embIdx, _, err := embPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding selection: %w", err)
	}
	embProviders := []ProviderType{ProviderGoogle, ProviderOpenAI, ProviderOllama, ProviderHash}
	cfg.Embedding.Provider = embProviders[embIdx]
	if cfg.Embedding.Provider == ProviderHash {
		cfg.Embedding.Model = ""
		cfg.Embedding.Dimensions = 256
	} else {
		cfg.Embedding.Model = GetPreset(cfg.Embedding.Provider).EmbeddingModel
	}

	// 3. Source directory.
	sourcePrompt := promptui.Prompt{
		Label:   "Directory holding source documents and .metadata.json",
		Default: cfg.Paths.SourceDir,
	}
	if cfg.Paths.SourceDir, err = sourcePrompt.Run(); err != nil {
		return nil, fmt.Errorf("source dir: %w", err)
	}

	// 4. Retrieval threshold.
	thresholdPrompt := promptui.Prompt{
		Label:   "Similarity threshold for retrieved passages (0-1)",
		Default: strconv.FormatFloat(cfg.Retrieval.Threshold, 'f', -1, 64),
		Validate: func(s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 || v > 1 {
				return fmt.Errorf("enter a number between 0 and 1")
			}
			return nil
		},
	}
	thresholdStr, err := thresholdPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	cfg.Retrieval.Threshold, _ = strconv.ParseFloat(thresholdStr, 64)

	// 5. Extra exclude patterns.
	excludePrompt := promptui.Prompt{
		Label:   "Extra exclude patterns (comma-separated, leave blank for defaults)",
		Default: "",
	}
	excludeStr, err := excludePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	if excludeStr != "" {
		cfg.Source.Exclude = append(append([]string{}, DefaultExcludes...), splitAndTrim(excludeStr)...)
	}

	for _, p := range []ProviderType{cfg.Generation.Provider, cfg.Embedding.Provider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && apiKeyFromEnv(p) == "" {
			fmt.Printf("\nNote: Set %s in your environment or .env before running sopbot ingest.\n", envVar)
		}
	}

	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	if _, err := os.Stat(cfg.Paths.SourceDir); os.IsNotExist(err) {
		fmt.Printf("\nSource directory %s does not exist yet.\n", cfg.Paths.SourceDir)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
