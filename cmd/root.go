package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shandysiswandi/gosampling/internal/app"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkglog"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gosampling",
	Short: "Index very large delimited files and draw reproducible samples",
	Long: `gosampling reassembles chunked uploads, validates and cleans delimited text,
builds a byte-offset index per file and draws seeded samples through it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default /config/config.yaml, ./config/config.yaml when LOCAL=true)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(reservoirCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration for offline commands and routes logs to stderr
// so stdout carries only JSON.
func loadConfig() (pkgconfig.Config, error) {
	cfg, err := pkgconfig.NewViper(app.ConfigPath(configPath))
	if err != nil {
		return nil, err
	}
	pkglog.InitLoggingTo(os.Stderr, cfg.GetString("log.level"))

	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
