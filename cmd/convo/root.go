package main

import (
	"context"
	"fmt"
	"os"

	"github.com/appsail/convo"
	"github.com/appsail/convo/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "convo",
	Short: "convo runs webhook driven chat automations",
	Long: `convo serves the scripted, reminder and wallet conversation flows behind a
messaging gateway webhook, and inspects the conversations it stores.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv("CONVO_CONFIG"), "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

func openApp(ctx context.Context, cmd *cobra.Command, opts ...convo.Option) (*convo.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return convo.New(ctx, cfg, opts...)
}
