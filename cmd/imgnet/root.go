package main

import (
	"os"

	"github.com/spf13/cobra"

	"imgnet/internal/config"
	"imgnet/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	outputDir  string
}

// appConfig is resolved once per invocation by PersistentPreRunE.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "imgnet",
	Short: "Fetch image URLs into a dataset bundle",
	Long: "imgnet fetches every image named in a table (or found in a folder),\n" +
		"records each outcome on its row and exports the images with their table.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Config file (YAML or JSON)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVarP(&rootFlags.outputDir, "output-dir", "o", "", "Directory exports are written to")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// setup loads the config (file, then env, then flags) and initializes
// logging on the command's error stream.
func setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if rootFlags.configPath != "" {
		c, err := config.LoadFromPath(rootFlags.configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	cfg.ApplyEnv(os.LookupEnv)
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Log.Format = rootFlags.logFormat
	}
	if rootFlags.outputDir != "" {
		cfg.Output.Dir = rootFlags.outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
	appConfig = cfg
	return nil
}
