package scanning

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/scanprobe/internal/errors"
)

func TestScanJobValidate(t *testing.T) {
	tests := []struct {
		name      string
		job       *ScanJob
		wantErr   bool
		wantField string
	}{
		{"valid range", NewScanJob("localhost", 20, 25, time.Second), false, ""},
		{"single port", NewScanJob("localhost", 80, 80, time.Second), false, ""},
		{"full range", NewScanJob("localhost", 1, 65535, time.Second), false, ""},
		{"start after end", NewScanJob("localhost", 100, 50, time.Second), true, "port_range"},
		{"start below one", NewScanJob("localhost", 0, 50, time.Second), true, "port_range"},
		{"end above max", NewScanJob("localhost", 1, 65536, time.Second), true, "port_range"},
		{"empty host", NewScanJob("", 1, 10, time.Second), true, "host"},
		{"zero timeout", NewScanJob("localhost", 1, 10, 0), true, "timeout"},
		{"negative timeout", NewScanJob("localhost", 1, 10, -time.Second), true, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidation))

			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestScanJobInvalidRangeMessage(t *testing.T) {
	err := NewScanJob("localhost", 100, 50, time.Second).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid port range")
	assert.Contains(t, err.Error(), "1-65535")
}

func TestNewScanJob(t *testing.T) {
	a := NewScanJob("example.org", 20, 25, 1500*time.Millisecond)
	b := NewScanJob("example.org", 20, 25, 1500*time.Millisecond)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 6, a.PortCount())
}

func TestScanResultLifecycle(t *testing.T) {
	job := NewScanJob("example.org", 1, 10, time.Second)
	result := NewScanResult(job)

	assert.Equal(t, job.ID, result.JobID)
	assert.Equal(t, "example.org", result.Host)
	assert.NotNil(t, result.Ports)
	assert.Equal(t, 0, result.Open())

	time.Sleep(time.Millisecond)
	result.Complete()
	assert.False(t, result.EndTime.Before(result.StartTime))
	assert.Positive(t, result.Duration)
}
