package cli

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanprobe/internal/config"
	"github.com/anstrom/scanprobe/internal/db"
	"github.com/anstrom/scanprobe/internal/errors"
	"github.com/anstrom/scanprobe/internal/logging"
)

func TestParseScanArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantTimeout time.Duration
		wantMessage string
	}{
		{"valid", []string{"localhost", "20", "25", "1"}, false, time.Second, ""},
		{"fractional timeout", []string{"localhost", "1", "1024", "0.25"}, false, 250 * time.Millisecond, ""},
		{"too few arguments", []string{"localhost", "20", "25"}, true, 0, "Usage: scanprobe"},
		{"too many arguments", []string{"localhost", "20", "25", "1", "x"}, true, 0, "Usage: scanprobe"},
		{"non-numeric start", []string{"localhost", "abc", "25", "1"}, true, 0, "Invalid start port"},
		{"non-numeric end", []string{"localhost", "20", "2x", "1"}, true, 0, "Invalid end port"},
		{"non-numeric timeout", []string{"localhost", "20", "25", "fast"}, true, 0, "Invalid timeout"},
		{"zero timeout", []string{"localhost", "20", "25", "0"}, true, 0, "Invalid timeout"},
		{"negative timeout", []string{"localhost", "20", "25", "-1"}, true, 0, "Invalid timeout"},
		{"infinite timeout", []string{"localhost", "20", "25", "Inf"}, true, 0, "Invalid timeout"},
		{"largest timeout", []string{"localhost", "20", "25", "9e9"}, false, time.Duration(9e18), ""},
		{"timeout beyond duration range", []string{"localhost", "20", "25", "1e10"}, true, 0, "Invalid timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := parseScanArgs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeValidation))
				assert.Contains(t, userMessage(err), tt.wantMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.args[0], job.Host)
			assert.Equal(t, tt.wantTimeout, job.Timeout)
		})
	}
}

func TestParseScanArgsEmptyHost(t *testing.T) {
	_, err := parseScanArgs([]string{"  ", "20", "25", "1"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
	assert.Equal(t, `Invalid host "  ".`, userMessage(err))
}

func TestRootCommandWithoutArguments(t *testing.T) {
	var out, errOut bytes.Buffer
	rootCmd.SetArgs([]string{})
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.True(t, strings.HasPrefix(userMessage(err), "Usage: scanprobe"))
	assert.Contains(t, out.String(), "scanprobe probes a range of TCP ports")
}

func TestReportError(t *testing.T) {
	original := logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	var logs bytes.Buffer
	logging.SetDefault(logging.NewWithWriter(logging.Config{Level: logging.LevelDebug}, &logs))

	t.Run("expected failure prints only the message", func(t *testing.T) {
		logs.Reset()
		var out bytes.Buffer
		reportError(&out, errors.ErrHostUnreachable("10.0.0.1"))

		assert.Equal(t, "Host 10.0.0.1 is unreachable. Exiting.\n", out.String())
		assert.Empty(t, logs.String())
	})

	t.Run("unexpected failure is logged with its code", func(t *testing.T) {
		logs.Reset()
		var out bytes.Buffer
		reportError(&out, errors.ErrDatabaseConnection(assert.AnError))

		assert.Contains(t, out.String(), "Failed to connect to database")
		assert.Contains(t, logs.String(), "Command failed")
		assert.Contains(t, logs.String(), "code=DATABASE_CONNECTION")
	})
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Host 10.0.0.1 is unreachable. Exiting.",
		userMessage(errors.ErrHostUnreachable("10.0.0.1")))

	assert.Equal(t, "Error writing results to /ro/out.txt: permission denied",
		userMessage(errors.ErrFileWrite("/ro/out.txt", os.ErrPermission)))

	assert.Equal(t, "Error: "+assert.AnError.Error(), userMessage(assert.AnError))

	assert.Equal(t, "Invalid timeout", userMessage(errors.NewConfigError(errors.CodeValidation, "Invalid timeout")))
}

// loopbackTarget serves as both the reachability port and an open port
// that answers with a fixed banner.
func loopbackTarget(t *testing.T, banner string) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 64)
				_ = c.SetReadDeadline(time.Now().Add(time.Second))
				if n, _ := c.Read(buf); n > 0 && banner != "" {
					_, _ = c.Write([]byte(banner))
				}
			}(conn)
		}
	}()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func testConfig(reachPort uint16) *config.Config {
	cfg := config.Default()
	cfg.Scanning.ReachabilityPort = int(reachPort)
	cfg.Scanning.BannerTimeout = 500 * time.Millisecond
	cfg.Scanning.WorkerPoolSize = 10
	return cfg
}

func TestExecuteScan(t *testing.T) {
	t.Run("open port with output and json files", func(t *testing.T) {
		port := loopbackTarget(t, "SSH-2.0-test\r\n")
		dir := t.TempDir()
		outPath := filepath.Join(dir, "results.txt")
		jsonPath := filepath.Join(dir, "results.json")
		metricsPath := filepath.Join(dir, "scanprobe.prom")

		cfg := testConfig(port)
		cfg.Metrics.TextfilePath = metricsPath

		job, err := parseScanArgs([]string{"127.0.0.1", itoa(port), itoa(port), "1"})
		require.NoError(t, err)
		job.OutputPath = outPath

		var out bytes.Buffer
		err = executeScan(context.Background(), &out, cfg, scanFlags{jsonPath: jsonPath}, job)
		require.NoError(t, err)

		output := out.String()
		assert.Contains(t, output, "Scanning 127.0.0.1 from port")
		assert.Contains(t, output, "is open. Banner: SSH-2.0-test")
		assert.Contains(t, output, "Scan complete.\nOpen ports:")
		assert.Contains(t, output, "Results saved to "+outPath)
		assert.Less(t, strings.Index(output, "Scan complete."), strings.Index(output, "Results saved to"))

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, itoa(port)+" (Unknown): SSH-2.0-test\n", string(data))

		assert.FileExists(t, jsonPath)

		prom, err := os.ReadFile(metricsPath)
		require.NoError(t, err)
		assert.Contains(t, string(prom), `scanprobe_scan_total{status="completed"} 1`)
	})

	t.Run("unreachable host", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := uint16(ln.Addr().(*net.TCPAddr).Port)
		require.NoError(t, ln.Close())

		job, err := parseScanArgs([]string{"127.0.0.1", "20", "25", "1"})
		require.NoError(t, err)

		var out bytes.Buffer
		err = executeScan(context.Background(), &out, testConfig(port), scanFlags{}, job)
		require.Error(t, err)
		assert.Equal(t, "Host 127.0.0.1 is unreachable. Exiting.", userMessage(err))
		assert.Empty(t, out.String())
	})

	t.Run("invalid range", func(t *testing.T) {
		port := loopbackTarget(t, "")
		job, err := parseScanArgs([]string{"127.0.0.1", "100", "50", "1"})
		require.NoError(t, err)

		var out bytes.Buffer
		err = executeScan(context.Background(), &out, testConfig(port), scanFlags{}, job)
		require.Error(t, err)
		assert.Contains(t, userMessage(err), "Invalid port range")
		assert.Empty(t, out.String())
	})

	t.Run("no open ports", func(t *testing.T) {
		reach := loopbackTarget(t, "")
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		closed := uint16(ln.Addr().(*net.TCPAddr).Port)
		require.NoError(t, ln.Close())

		job, err := parseScanArgs([]string{"127.0.0.1", itoa(closed), itoa(closed), "0.5"})
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, executeScan(context.Background(), &out, testConfig(reach), scanFlags{}, job))
		assert.Contains(t, out.String(), "Scan complete.\nNo open ports found.\n")
	})

	t.Run("output write failure is fatal after summary", func(t *testing.T) {
		port := loopbackTarget(t, "")
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))

		job, err := parseScanArgs([]string{"127.0.0.1", itoa(port), itoa(port), "1"})
		require.NoError(t, err)
		job.OutputPath = filepath.Join(blocker, "results.txt")

		var out bytes.Buffer
		err = executeScan(context.Background(), &out, testConfig(port), scanFlags{}, job)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeFileWrite))
		assert.Contains(t, out.String(), "Scan complete.")
	})
}

func TestApplyOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("no-banner flag", func(t *testing.T) {
		viper.Reset()
		cfg := config.Default()
		require.NoError(t, applyOverrides(cfg, scanFlags{noBanner: true}))
		assert.False(t, cfg.Scanning.GrabBanners)
	})

	t.Run("viper values", func(t *testing.T) {
		viper.Reset()
		viper.Set("scanning.worker_pool_size", 12)
		viper.Set("scanning.banner_timeout", "750ms")
		viper.Set("metrics.textfile_path", "/tmp/x.prom")

		cfg := config.Default()
		require.NoError(t, applyOverrides(cfg, scanFlags{}))
		assert.Equal(t, 12, cfg.Scanning.WorkerPoolSize)
		assert.Equal(t, 750*time.Millisecond, cfg.Scanning.BannerTimeout)
		assert.Equal(t, "/tmp/x.prom", cfg.Metrics.TextfilePath)
	})

	t.Run("invalid worker count", func(t *testing.T) {
		viper.Reset()
		viper.Set("scanning.worker_pool_size", 0)

		err := applyOverrides(config.Default(), scanFlags{})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))
	})
}

func TestServicesCommand(t *testing.T) {
	var out bytes.Buffer
	servicesCmd.SetOut(&out)
	servicesCmd.Run(servicesCmd, nil)

	output := out.String()
	for _, want := range []string{"21", "FTP", "3389", "RDP", "8080", "HTTP-Alt"} {
		assert.Contains(t, output, want)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersion("dev", "none", "unknown") })

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "scanprobe 1.2.3 (commit: abc123, built: 2026-01-01)\n", out.String())
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2026-01-01)", rootCmd.Version)
}

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return &db.DB{DB: sqlx.NewDb(mockDB, "postgres")}, mock
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("no stored scans", func(t *testing.T) {
		database, mock := newMockDB(t)
		mock.ExpectQuery("FROM scan_runs").WithArgs(defaultHistoryLimit).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		var out bytes.Buffer
		require.NoError(t, runHistory(ctx, &out, database, historyFlags{limit: defaultHistoryLimit}))
		assert.Equal(t, "No stored scans found.\n", out.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recent scans show full IDs", func(t *testing.T) {
		database, mock := newMockDB(t)
		id := uuid.New()
		now := time.Now()
		mock.ExpectQuery("FROM scan_runs").WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "host", "start_port", "end_port", "probed", "open_count",
				"closed_count", "errored_count", "started_at", "completed_at", "duration_ms",
			}).AddRow(id.String(), "10.0.0.5", 20, 25, 6, 1, 5, 0, now, now, 120))

		var out bytes.Buffer
		require.NoError(t, runHistory(ctx, &out, database, historyFlags{limit: 5}))
		assert.Contains(t, out.String(), id.String())
		assert.Contains(t, out.String(), "20-25")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ports of one scan", func(t *testing.T) {
		database, mock := newMockDB(t)
		id := uuid.New()
		mock.ExpectQuery("FROM port_results WHERE scan_id").WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"scan_id", "port", "service", "banner"}).
				AddRow(id.String(), 22, "SSH", "SSH-2.0-OpenSSH_9.6"))

		var out bytes.Buffer
		require.NoError(t, runHistory(ctx, &out, database, historyFlags{scanID: id.String()}))
		assert.Contains(t, out.String(), "SSH-2.0-OpenSSH_9.6")
		assert.Contains(t, out.String(), "22")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scan without stored ports", func(t *testing.T) {
		database, mock := newMockDB(t)
		id := uuid.New()
		mock.ExpectQuery("FROM port_results WHERE scan_id").WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"scan_id", "port", "service", "banner"}))

		var out bytes.Buffer
		require.NoError(t, runHistory(ctx, &out, database, historyFlags{scanID: id.String()}))
		assert.Equal(t, "No open ports stored for scan "+id.String()+".\n", out.String())
	})

	t.Run("malformed scan ID", func(t *testing.T) {
		database, mock := newMockDB(t)

		err := runHistory(ctx, &bytes.Buffer{}, database, historyFlags{scanID: "not-a-uuid"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("migration status", func(t *testing.T) {
		database, mock := newMockDB(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "applied_at", "checksum"}).
				AddRow(1, "001_initial_schema", time.Now(), "abc"))

		var out bytes.Buffer
		require.NoError(t, runHistory(ctx, &out, database, historyFlags{migrations: true}))
		assert.Contains(t, out.String(), "001_initial_schema")
		assert.Contains(t, out.String(), "true")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func itoa(port uint16) string {
	return strconv.Itoa(int(port))
}
