package scanning

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/anstrom/scanprobe/internal/errors"
)

const (
	// MinPort and MaxPort bound every requested port range.
	MinPort = 1
	MaxPort = 65535

	invalidRangeMessage = "Invalid port range. Please ensure start port is less than or " +
		"equal to end port, and both are within 1-65535."
)

var validate = validator.New()

// ScanJob describes a single scan. It is built once from user input and only
// read afterwards, so workers share it without locking.
type ScanJob struct {
	// ID identifies the scan in logs and in the result store
	ID uuid.UUID
	// Host is the target hostname or IP address
	Host string `validate:"required"`
	// StartPort and EndPort form the inclusive port range
	StartPort int `validate:"min=1,max=65535"`
	EndPort   int `validate:"min=1,max=65535,gtefield=StartPort"`
	// Timeout bounds each connection attempt
	Timeout time.Duration `validate:"gt=0"`
	// Verbose prints closed ports and per-port errors
	Verbose bool
	// OutputPath is where the report file is written, if set
	OutputPath string
}

// NewScanJob creates a scan job with a fresh ID.
func NewScanJob(host string, startPort, endPort int, timeout time.Duration) *ScanJob {
	return &ScanJob{
		ID:        uuid.New(),
		Host:      host,
		StartPort: startPort,
		EndPort:   endPort,
		Timeout:   timeout,
	}
}

// Validate checks the job before any network activity takes place.
func (j *ScanJob) Validate() error {
	if j.StartPort > j.EndPort || j.StartPort < MinPort || j.EndPort > MaxPort {
		return &errors.ConfigError{
			Code:    errors.CodeValidation,
			Message: invalidRangeMessage,
			Field:   "port_range",
			Value:   fmt.Sprintf("%d-%d", j.StartPort, j.EndPort),
		}
	}

	if err := validate.Struct(j); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &errors.ConfigError{
				Code:    errors.CodeValidation,
				Message: fmt.Sprintf("Invalid value for %s (%s)", fe.Field(), fe.Tag()),
				Field:   strings.ToLower(fe.Field()),
				Value:   fe.Value(),
				Cause:   err,
			}
		}
		return errors.WrapConfigError(errors.CodeValidation, "Invalid scan job", err)
	}
	return nil
}

// PortCount returns the number of ports in the job's range.
func (j *ScanJob) PortCount() int {
	return j.EndPort - j.StartPort + 1
}

// PortState classifies the outcome of a single connection attempt.
type PortState string

const (
	StateOpen    PortState = "open"
	StateClosed  PortState = "closed"
	StateErrored PortState = "error"
)

// PortResult is recorded once for every open port.
type PortResult struct {
	Port    uint16 `json:"port" db:"port"`
	Service string `json:"service" db:"service"`
	Banner  string `json:"banner" db:"banner"`
}

// String renders the result in report format.
func (r PortResult) String() string {
	return fmt.Sprintf("%d (%s): %s", r.Port, r.Service, r.Banner)
}

// Outcome is what a Prober reports for one port.
type Outcome struct {
	Port     uint16
	State    PortState
	Service  string
	Banner   BannerResult
	Err      error
	Duration time.Duration
}

// Result converts an open outcome into a PortResult.
func (o Outcome) Result() PortResult {
	return PortResult{
		Port:    o.Port,
		Service: o.Service,
		Banner:  o.Banner.Text(),
	}
}

// ScanResult contains the complete results of a port scan.
type ScanResult struct {
	// JobID is the ID of the ScanJob that produced the result
	JobID uuid.UUID `json:"job_id"`
	// Host is the scanned target
	Host string `json:"host"`
	// StartPort and EndPort echo the scanned range
	StartPort int `json:"start_port"`
	EndPort   int `json:"end_port"`
	// Ports lists open ports in ascending order
	Ports []PortResult `json:"ports"`
	// Probed, Closed and Errored count per-port outcomes
	Probed  int `json:"probed"`
	Closed  int `json:"closed"`
	Errored int `json:"errored"`
	// StartTime is when the scan started
	StartTime time.Time `json:"start_time"`
	// EndTime is when the scan completed
	EndTime time.Time `json:"end_time"`
	// Duration is how long the scan took
	Duration time.Duration `json:"duration"`
}

// NewScanResult creates a new scan result for job with the current time as start time.
func NewScanResult(job *ScanJob) *ScanResult {
	return &ScanResult{
		JobID:     job.ID,
		Host:      job.Host,
		StartPort: job.StartPort,
		EndPort:   job.EndPort,
		StartTime: time.Now(),
		Ports:     make([]PortResult, 0),
	}
}

// Complete marks the scan as complete and calculates duration.
func (r *ScanResult) Complete() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Open returns the number of open ports.
func (r *ScanResult) Open() int {
	return len(r.Ports)
}
