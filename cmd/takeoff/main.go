package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/config"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/inputs"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	formPath  string
	loginPath string
	withTrace bool
	force     bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "takeoff",
		Short: "Enter NetSuite proposals and projects from a filled-in form",
		Long: `takeoff drives a Chrome session through the NetSuite proposal form,
creates the matching project, then lays out the local job directory and
updates the quote log.

Example:
  takeoff form init job.yaml
  takeoff form check job.yaml
  takeoff run --form job.yaml`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./takeoff.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")

	rootCmd.AddCommand(newRunCmd(), newBindCmd(), newFormCmd())
	return rootCmd
}

// setup loads configuration and starts the global logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Logger.Level = "debug"
	}
	observability.InitializeLogger(cfg.Logger)
	return cfg, observability.GetLogger(), nil
}

// loadForm reads the form named by --form, or the configured default, and
// overlays it on the --login form when one is given.
func loadForm(cfg *config.Config) (*inputs.Form, error) {
	path := formPath
	if path == "" {
		path = cfg.Form.Path
	}
	form, err := inputs.Load(path)
	if err != nil {
		return nil, err
	}
	if loginPath == "" {
		return form, nil
	}
	login, err := inputs.Load(loginPath)
	if err != nil {
		return nil, fmt.Errorf("login form: %w", err)
	}
	return login.Merge(form), nil
}

func addFormFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&formPath, "form", "f", "", "Form file with the proposal details (default: form.path from config)")
	cmd.Flags().StringVar(&loginPath, "login", "", "Separate form file holding the login and security answers")
}
