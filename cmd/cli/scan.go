package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/scanprobe/internal/config"
	"github.com/anstrom/scanprobe/internal/db"
	"github.com/anstrom/scanprobe/internal/errors"
	"github.com/anstrom/scanprobe/internal/logging"
	"github.com/anstrom/scanprobe/internal/metrics"
	"github.com/anstrom/scanprobe/internal/report"
	"github.com/anstrom/scanprobe/internal/scanning"
)

const usageLine = "Usage: scanprobe <host> <start_port> <end_port> <timeout> [--verbose] [--output FILE]"

// scanFlags holds the flags shared by the root and scan commands.
type scanFlags struct {
	output        string
	jsonPath      string
	metricsFile   string
	workers       int
	bannerTimeout time.Duration
	noBanner      bool
	store         bool
}

var scanOpts scanFlags

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <host> <start-port> <end-port> <timeout>",
	Short: "Scan a range of TCP ports on one host",
	Long: `Scan every port from start-port to end-port (inclusive) on host with a
full TCP connect. The timeout is given in seconds and may be fractional.

Open ports are printed as they are found. Closed ports and per-port errors
are printed only with --verbose. The summary and the optional output file
list open ports in ascending order as "<port> (<service>): <banner>".`,
	Example: `  scanprobe scan 192.168.1.10 20 25 1
  scanprobe scan example.org 1 1024 0.5 --output results.txt
  scanprobe scan 10.0.0.5 1 65535 0.2 --workers 500 --no-banner --json scan.json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 4 {
			return errors.NewConfigError(errors.CodeValidation, usageLine)
		}
		return nil
	},
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd.Flags())
}

// addScanFlags registers the scan flags on fs. The root and scan commands
// share the same backing variables.
func addScanFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&scanOpts.output, "output", "o", "", "write open ports to FILE, one per line")
	fs.StringVar(&scanOpts.jsonPath, "json", "", "also export the full result as JSON to FILE")
	fs.StringVar(&scanOpts.metricsFile, "metrics-file", "", "write Prometheus metrics to FILE after the scan")
	fs.IntVarP(&scanOpts.workers, "workers", "w", 0, "number of concurrent workers (default 100)")
	fs.DurationVar(&scanOpts.bannerTimeout, "banner-timeout", 0, "banner read timeout (default 2s)")
	fs.BoolVar(&scanOpts.noBanner, "no-banner", false, "do not try to capture banners")
	fs.BoolVar(&scanOpts.store, "store", false, "store the result in the configured PostgreSQL database")
}

// bindScanFlags maps the running command's flags onto configuration keys so
// viper resolves flag, environment and file values in that order.
func bindScanFlags(fs *pflag.FlagSet) {
	bindings := map[string]string{
		"scanning.worker_pool_size": "workers",
		"scanning.banner_timeout":   "banner-timeout",
		"metrics.textfile_path":     "metrics-file",
	}
	for key, flag := range bindings {
		if f := fs.Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// applyOverrides copies flag and environment values over the loaded config.
func applyOverrides(cfg *config.Config, flags scanFlags) error {
	if viper.IsSet("scanning.worker_pool_size") {
		cfg.Scanning.WorkerPoolSize = viper.GetInt("scanning.worker_pool_size")
	}
	if viper.IsSet("scanning.banner_timeout") {
		cfg.Scanning.BannerTimeout = viper.GetDuration("scanning.banner_timeout")
	}
	if viper.IsSet("scanning.grab_banners") {
		cfg.Scanning.GrabBanners = viper.GetBool("scanning.grab_banners")
	}
	if viper.IsSet("metrics.textfile_path") {
		cfg.Metrics.TextfilePath = viper.GetString("metrics.textfile_path")
	}
	if flags.noBanner {
		cfg.Scanning.GrabBanners = false
	}
	return cfg.Validate()
}

func runScan(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}

	job, err := parseScanArgs(args)
	if err != nil {
		return err
	}
	job.Verbose = verbose
	job.OutputPath = scanOpts.output

	bindScanFlags(cmd.Flags())
	if err := applyOverrides(appConfig, scanOpts); err != nil {
		return err
	}

	return executeScan(cmd.Context(), cmd.OutOrStdout(), appConfig, scanOpts, job)
}

// parseScanArgs turns the positional arguments into a scan job. Range
// checks are left to ScanJob.Validate.
func parseScanArgs(args []string) (*scanning.ScanJob, error) {
	if len(args) != 4 {
		return nil, errors.NewConfigError(errors.CodeValidation, usageLine)
	}

	if strings.TrimSpace(args[0]) == "" {
		return nil, errors.ErrInvalidTarget(args[0])
	}

	start, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("Invalid start port %q: must be an integer", args[1]), "start_port", args[1])
	}
	end, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("Invalid end port %q: must be an integer", args[2]), "end_port", args[2])
	}

	seconds, err := strconv.ParseFloat(args[3], 64)
	// A timeout must fit in a time.Duration; this also rejects +Inf.
	nanos := seconds * float64(time.Second)
	if err != nil || seconds <= 0 || math.IsNaN(seconds) || nanos >= math.MaxInt64 {
		return nil, errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("Invalid timeout %q: must be a positive number of seconds", args[3]), "timeout", args[3])
	}

	return scanning.NewScanJob(args[0], start, end, time.Duration(nanos)), nil
}

// executeScan runs job with cfg and reports to out. Only validation,
// reachability and report file failures are returned; metrics and storage
// problems are logged.
func executeScan(ctx context.Context, out io.Writer, cfg *config.Config, flags scanFlags, job *scanning.ScanJob) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := cfg.ScanOptions()
	opts.Output = out

	var prom *metrics.PrometheusMetrics
	if cfg.Metrics.TextfilePath != "" {
		prom = metrics.NewPrometheusMetrics()
		opts.Recorder = prom
		defer writeMetrics(prom, cfg.Metrics.TextfilePath)
	}

	if flags.store {
		database, err := db.ConnectAndMigrate(ctx, &cfg.Database)
		if err != nil {
			logging.ErrorDatabase("Result store unavailable, continuing without it", err)
		} else {
			defer func() { _ = database.Close() }()
			opts.Store = db.NewStore(database)
		}
	}

	result, err := scanning.NewScanner(opts).Run(ctx, job)
	if err != nil {
		return err
	}

	rep := report.New(out)
	rep.Summary(result)

	if job.OutputPath != "" {
		if err := rep.WriteFile(job.OutputPath, result); err != nil {
			return err
		}
	}
	if flags.jsonPath != "" {
		if err := rep.WriteJSON(flags.jsonPath, result); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(prom *metrics.PrometheusMetrics, path string) {
	if err := prom.WriteTextfile(path); err != nil {
		logging.Warn("Failed to write metrics textfile", "path", path, "error", err)
	}
}

// userMessage renders err for the terminal.
func userMessage(err error) string {
	var scanErr *errors.ScanError
	var cfgErr *errors.ConfigError

	code := errors.GetCode(err)
	switch {
	case code == errors.CodeHostUnreachable && stderrors.As(err, &scanErr):
		return fmt.Sprintf("Host %s is unreachable. Exiting.", scanErr.Target)
	case code == errors.CodeFileWrite && stderrors.As(err, &scanErr):
		return fmt.Sprintf("Error writing results to %v: %v", scanErr.Context["path"], scanErr.Cause)
	case code == errors.CodeTargetInvalid && stderrors.As(err, &scanErr):
		return fmt.Sprintf("Invalid host %q.", scanErr.Target)
	case stderrors.As(err, &cfgErr):
		if cfgErr.Cause != nil && cfgErr.Code == errors.CodeConfiguration {
			return fmt.Sprintf("%s: %v", cfgErr.Message, cfgErr.Cause)
		}
		return cfgErr.Message
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
