package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/ui"
	"github.com/spf13/cobra"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/idodeploy/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "idodeploy",
	Short: "Build and deploy the IDO sale contract",
	Long: `idodeploy compiles, flattens and deploys the IDO sale contract.

  Deployment parameters, networks and compiler settings are read from
  ido.yaml in the working directory (or --config). Every ido.* key can be
  overridden with an IDO_* environment variable, e.g. IDO_NEW_OWNER.

Get started with: idodeploy config init`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(cmd.ErrOrStderr(), verbose)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(err.Error()))
		os.Exit(1)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadSettings reads the settings file named by --config, or ido.yaml.
func loadSettings() (*config.Settings, error) {
	s, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Debug("config loaded", slog.String("path", s.Path()), slog.String("dir", s.Dir()))
	return s, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default: ./"+config.DefaultConfigFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(
		deployCmd,
		buildCmd,
		compileCmd,
		flattenCmd,
		configCmd,
		keyCmd,
		deploymentsCmd,
		versionCmd,
	)
}
