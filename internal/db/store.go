package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/scanprobe/internal/logging"
	"github.com/anstrom/scanprobe/internal/scanning"
)

// ScanRun is one row of scan_runs.
type ScanRun struct {
	ID          uuid.UUID `db:"id"`
	Host        string    `db:"host"`
	StartPort   int       `db:"start_port"`
	EndPort     int       `db:"end_port"`
	Probed      int       `db:"probed"`
	OpenCount   int       `db:"open_count"`
	ClosedCount int       `db:"closed_count"`
	Errored     int       `db:"errored_count"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt time.Time `db:"completed_at"`
	DurationMS  int64     `db:"duration_ms"`
}

// PortRecord is one row of port_results.
type PortRecord struct {
	ScanID  uuid.UUID `db:"scan_id"`
	Port    int       `db:"port"`
	Service string    `db:"service"`
	Banner  string    `db:"banner"`
}

// Store saves and lists scans. It implements scanning.ResultStore.
type Store struct {
	db *DB
}

var _ scanning.ResultStore = (*Store)(nil)

// NewStore creates a store backed by db.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func newScanRun(result *scanning.ScanResult) *ScanRun {
	return &ScanRun{
		ID:          result.JobID,
		Host:        result.Host,
		StartPort:   result.StartPort,
		EndPort:     result.EndPort,
		Probed:      result.Probed,
		OpenCount:   result.Open(),
		ClosedCount: result.Closed,
		Errored:     result.Errored,
		StartedAt:   result.StartTime,
		CompletedAt: result.EndTime,
		DurationMS:  result.Duration.Milliseconds(),
	}
}

// SaveScan stores a finished scan and its open ports in one transaction.
func (s *Store) SaveScan(ctx context.Context, result *scanning.ScanResult) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	runQuery := `
		INSERT INTO scan_runs (
			id, host, start_port, end_port, probed, open_count,
			closed_count, errored_count, started_at, completed_at, duration_ms
		)
		VALUES (
			:id, :host, :start_port, :end_port, :probed, :open_count,
			:closed_count, :errored_count, :started_at, :completed_at, :duration_ms
		)`
	if _, err := tx.NamedExecContext(ctx, runQuery, newScanRun(result)); err != nil {
		return sanitizeDBError("insert scan run", err)
	}

	portQuery := `
		INSERT INTO port_results (scan_id, port, service, banner)
		VALUES (:scan_id, :port, :service, :banner)`
	for _, p := range result.Ports {
		record := &PortRecord{
			ScanID:  result.JobID,
			Port:    int(p.Port),
			Service: p.Service,
			Banner:  p.Banner,
		}
		if _, err := tx.NamedExecContext(ctx, portQuery, record); err != nil {
			return sanitizeDBError("insert port result", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit transaction", err)
	}

	logging.InfoDatabase("Stored scan results",
		"scan_id", result.JobID.String(),
		"open_ports", result.Open())
	return nil
}

// RecentScans returns the latest scans, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]*ScanRun, error) {
	var runs []*ScanRun
	query := `
		SELECT id, host, start_port, end_port, probed, open_count,
		       closed_count, errored_count, started_at, completed_at, duration_ms
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, sanitizeDBError("list scan runs", err)
	}
	return runs, nil
}

// PortsForScan returns the open ports of a stored scan in ascending order.
func (s *Store) PortsForScan(ctx context.Context, scanID uuid.UUID) ([]*PortRecord, error) {
	var ports []*PortRecord
	query := `SELECT scan_id, port, service, banner FROM port_results WHERE scan_id = $1 ORDER BY port`

	if err := s.db.SelectContext(ctx, &ports, query, scanID); err != nil {
		return nil, sanitizeDBError("list port results", err)
	}
	return ports, nil
}
