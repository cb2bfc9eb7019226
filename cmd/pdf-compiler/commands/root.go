package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical/pdf-compiler/cmd/pdf-compiler/ui"
	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf-compiler",
	Short: "Compile LaTeX documents to PDF with a remote compilation service",
	Long: `pdf-compiler submits LaTeX source to a remote compilation service and
writes the resulting PDF. When compilation fails it prints the compiler log.
It can also expose the same pipeline as an HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load() // Ignore error if .env doesn't exist
		ui.Init(noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: $COMPILER_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("COMPILER_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Interactive commands pass quiet so
// that routine log lines do not interleave with the spinner.
func newLogger(cfg *config.Config, quiet bool) *observability.Logger {
	level := cfg.Observability.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		Output:      os.Stderr,
		ServiceName: cfg.Observability.ServiceName,
	})
}
