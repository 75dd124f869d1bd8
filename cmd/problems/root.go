package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/config"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "problems",
	Short: "Find coding problems by skill and topic, then analyse the catalog",
	Long: `problems fetches a catalog of coding problems for a skill level and a set
of topic tags, pages through it, and requests the rendered analysis of a
catalog from the analysis service.

Examples:
  problems find --skill Beginner --tags Array,Stack
  problems page 5f1c2e 2
  problems analyze --last --out ./analysis`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional.
		_ = godotenv.Load()

		// Config errors are reported by the command that needs the config.
		if cfg, err := config.Load(); err == nil {
			slog.SetDefault(newLogger(cfg.Log.Level, cfg.Log.Format))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}
