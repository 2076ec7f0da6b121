// Package main is the entry point for the kolon CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/kolon/pkg/config"
	"github.com/lemonberrylabs/kolon/pkg/kolon"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "kolon",
	Short:         "Kolon template lexer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("kolon version {{.Version}}\n")

	rootCmd.PersistentFlags().String("config", "", "YAML config file (env KOLON_CONFIG)")
	rootCmd.PersistentFlags().StringSliceP("include", "I", nil, "Include path, repeatable (env KOLON_PATH)")
	rootCmd.PersistentFlags().String("open-tag", "", "Open tag delimiter (default <:)")
	rootCmd.PersistentFlags().String("close-tag", "", "Close tag delimiter (default :>)")
	rootCmd.PersistentFlags().String("code-line", "", "Code line delimiter (default :)")

	rootCmd.AddCommand(tokenizeCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", diagnostic(err))
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies the persistent flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := envOrDefault("KOLON_CONFIG", "")
	if v, _ := cmd.Flags().GetString("config"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetStringSlice("include"); len(v) > 0 {
		cfg.IncludePaths = v
	}
	if v, _ := cmd.Flags().GetString("open-tag"); v != "" {
		cfg.Syntax.OpenTag = v
	}
	if v, _ := cmd.Flags().GetString("close-tag"); v != "" {
		cfg.Syntax.CloseTag = v
	}
	if v, _ := cmd.Flags().GetString("code-line"); v != "" {
		cfg.Syntax.CodeLineDelimiter = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSyntax(cfg *config.Config) *kolon.Kolon {
	return kolon.New(cfg.Syntax)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
