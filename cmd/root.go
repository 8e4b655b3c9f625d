// Package cmd defines the choukan command line interface.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "choukan",
	Short: "Scheduled content digest service",
	Long: `choukan collects content from GitHub Trending, Hacker News, RSS tech
feeds, and Hugging Face daily papers, summarizes it, and publishes one
dated Markdown digest per job to a blob store.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// A .env file is a local development convenience; absence is fine.
		_ = godotenv.Load()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
}
