// Package cli provides the command-line interface for scanprobe.
// It implements the Cobra-based command tree: the port scan itself (also
// reachable from the root command), the service catalog listing, stored
// scan history and version information.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/scanprobe/internal/config"
	"github.com/anstrom/scanprobe/internal/errors"
	"github.com/anstrom/scanprobe/internal/logging"
)

var (
	cfgFile string
	verbose bool

	// appConfig is loaded once per invocation by initConfig.
	appConfig *config.Config
	configErr error
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command. Given the four scan arguments it runs
// a scan directly, so "scanprobe <host> <start> <end> <timeout>" works.
var rootCmd = &cobra.Command{
	Use:   "scanprobe [host start-port end-port timeout]",
	Short: "Concurrent TCP port scanner",
	Long: `scanprobe probes a range of TCP ports on one host with full connect
attempts, names well-known services and captures their banners.

The host must answer on the reachability port (80 by default) before a
scan starts. Open ports are printed as they are found, followed by a
summary sorted by port.`,
	Example: `  scanprobe 192.168.1.10 1 1024 0.5
  scanprobe scan example.org 20 25 1 --verbose --output results.txt`,
	Version:       getVersion(),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			_ = cmd.Help()
			return errors.NewConfigError(errors.CodeValidation, usageLine)
		}
		return runScan(cmd, args)
	},
}

// Execute runs the root command and exits non-zero on any failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints the user-facing message for err. Errors outside the
// expected fatal set (storage, unknown) are also logged with their cause.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, userMessage(err))
	if !errors.IsFatal(err) {
		logging.Error("Command failed", "code", errors.GetCode(err), "error", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"print closed ports and per-port errors, log at debug level")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}

	addScanFlags(rootCmd.Flags())
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SCANPROBE_SCANNING_WORKER_POOL_SIZE overrides scanning.worker_pool_size.
	viper.SetEnvPrefix("SCANPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	appConfig, configErr = config.Load(viper.ConfigFileUsed())
	if configErr != nil {
		appConfig = config.Default()
	}

	initLogging(appConfig)
}

// initLogging initializes structured logging based on configuration.
func initLogging(cfg *config.Config) {
	logConfig := cfg.LoggingConfig()
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	logging.Debug("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scanprobe %s\n", getVersion())
	},
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
