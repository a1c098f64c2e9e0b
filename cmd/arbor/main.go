package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "arbor",
		Short: "File-tree-driven web application server",
		Long: `Arbor serves a web application defined by a directory tree.

Directories become path segments, markdown files become rendered
documents, Lua files become executable handlers, [name] segments capture
path parameters, and _hook.lua / _error.lua attach middleware and error
handlers to whole subtrees.

Examples:
  arbor serve ./site
  arbor dev ./site --addr=:3000`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		devCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// loadSettings layers the optional arbor.yaml config file under flag
// values. Flags win.
func loadSettings(root string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("arbor")
	v.SetConfigType("yaml")
	v.AddConfigPath(root)
	v.AddConfigPath(".")
	v.SetEnvPrefix("ARBOR")
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("mount", "/")
	v.SetDefault("debounce", "100ms")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("arbor %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
