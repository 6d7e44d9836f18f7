package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/scanprobe/internal/db"
	"github.com/anstrom/scanprobe/internal/errors"
)

const defaultHistoryLimit = 20

type historyFlags struct {
	limit      int
	scanID     string
	migrations bool
}

var historyOpts historyFlags

// historyCmd lists scans saved with --store.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List scans stored in the database",
	Long: `List the most recent scans saved with --store, newest first.
With --scan, list the open ports of one stored scan instead. With
--migrations, show which schema migrations have been applied.
Requires the database section of the configuration.`,
	Example: `  scanprobe history --limit 5
  scanprobe history --scan 3f2c8a1e-5b7d-4c2a-9e0f-1a2b3c4d5e6f
  scanprobe history --migrations`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configErr != nil {
			return configErr
		}

		database, err := db.Connect(cmd.Context(), &appConfig.Database)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		return runHistory(cmd.Context(), cmd.OutOrStdout(), database, historyOpts)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyOpts.limit, "limit", defaultHistoryLimit, "maximum number of scans to list")
	historyCmd.Flags().StringVar(&historyOpts.scanID, "scan", "", "list the open ports of the stored scan with this ID")
	historyCmd.Flags().BoolVar(&historyOpts.migrations, "migrations", false, "show schema migration status")
	historyCmd.MarkFlagsMutuallyExclusive("scan", "migrations")
}

// runHistory renders the view selected by flags from database.
func runHistory(ctx context.Context, out io.Writer, database *db.DB, flags historyFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case flags.migrations:
		return listMigrations(ctx, out, database)
	case flags.scanID != "":
		id, err := uuid.Parse(flags.scanID)
		if err != nil {
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("Invalid scan ID %q", flags.scanID), "scan", flags.scanID)
		}
		return listScanPorts(ctx, out, db.NewStore(database), id)
	default:
		return listScans(ctx, out, db.NewStore(database), flags.limit)
	}
}

func listScans(ctx context.Context, out io.Writer, store *db.Store, limit int) error {
	runs, err := store.RecentScans(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No stored scans found.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Host", "Range", "Open", "Closed", "Errors", "Started", "Duration")
	for _, run := range runs {
		_ = table.Append([]string{
			run.ID.String(),
			run.Host,
			fmt.Sprintf("%d-%d", run.StartPort, run.EndPort),
			strconv.Itoa(run.OpenCount),
			strconv.Itoa(run.ClosedCount),
			strconv.Itoa(run.Errored),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%dms", run.DurationMS),
		})
	}
	return table.Render()
}

func listScanPorts(ctx context.Context, out io.Writer, store *db.Store, id uuid.UUID) error {
	ports, err := store.PortsForScan(ctx, id)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintf(out, "No open ports stored for scan %s.\n", id)
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Port", "Service", "Banner")
	for _, p := range ports {
		_ = table.Append([]string{strconv.Itoa(p.Port), p.Service, p.Banner})
	}
	return table.Render()
}

func listMigrations(ctx context.Context, out io.Writer, database *db.DB) error {
	statuses, err := db.NewMigrator(database.DB).Status(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("Migration", "Applied", "Applied At")
	for _, st := range statuses {
		appliedAt := "-"
		if st.Applied {
			appliedAt = st.AppliedAt.Format("2006-01-02 15:04:05")
		}
		_ = table.Append([]string{st.Name, strconv.FormatBool(st.Applied), appliedAt})
	}
	return table.Render()
}
