package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown,
		CodeValidation,
		CodeConfiguration,
		CodeTimeout,
		CodePermission,
		CodeNetworkUnreachable,
		CodeHostUnreachable,
		CodePortClosed,
		CodeScanFailed,
		CodeTargetInvalid,
		CodeDatabaseConnection,
		CodeDatabaseQuery,
		CodeFileWrite,
		CodeFilePermission,
		CodeDirectoryCreate,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("Error code %v should not be empty", code)
		}
	}
}

func TestScanError(t *testing.T) {
	t.Run("basic error creation", func(t *testing.T) {
		err := NewScanErrorWithTarget(CodeScanFailed, "scan failed", "10.0.0.1")
		if err.Code != CodeScanFailed {
			t.Errorf("Expected code %s, got %s", CodeScanFailed, err.Code)
		}
		if err.Message != "scan failed" {
			t.Errorf("Expected message 'scan failed', got '%s'", err.Message)
		}
		if err.Context == nil {
			t.Error("Context should be initialized")
		}
	})

	t.Run("error with target", func(t *testing.T) {
		err := NewScanErrorWithTarget(CodeHostUnreachable, "host down", "192.168.1.1")
		expected := "[HOST_UNREACHABLE] host down (target: 192.168.1.1)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("error without target", func(t *testing.T) {
		err := WrapScanError(CodeValidation, "validation failed", nil)
		expected := "[VALIDATION] validation failed"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("wrapped error", func(t *testing.T) {
		cause := fmt.Errorf("network error")
		err := WrapScanError(CodeNetworkUnreachable, "network issue", cause)
		if err.Unwrap() != cause {
			t.Error("Unwrap should return the original cause")
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is should find the cause")
		}
	})

	t.Run("with context", func(t *testing.T) {
		err := &ScanError{Code: CodeScanFailed, Message: "x"}
		err.WithContext("port", 22)
		if err.Context["port"] != 22 {
			t.Errorf("Expected context port 22, got %v", err.Context["port"])
		}
	})
}

func TestDatabaseError(t *testing.T) {
	t.Run("database error with operation", func(t *testing.T) {
		err := NewDatabaseError(CodeDatabaseQuery, "insert failed")
		err.Operation = "save scan"
		expected := "[DATABASE_QUERY] insert failed (operation: save scan)"
		if err.Error() != expected {
			t.Errorf("Expected '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("wrapped cause", func(t *testing.T) {
		cause := fmt.Errorf("syntax error")
		err := WrapDatabaseError(CodeDatabaseQuery, "query failed", cause)
		if !errors.Is(err, cause) {
			t.Error("errors.Is should find the cause")
		}
	})
}

func TestConfigError(t *testing.T) {
	t.Run("config field error", func(t *testing.T) {
		err := ErrConfigInvalid("start_port", 0)
		expected := "[VALIDATION] Invalid configuration value (field: start_port)"
		if err.Error() != expected {
			t.Errorf("Expected '%s', got '%s'", expected, err.Error())
		}
		if err.Value != 0 {
			t.Errorf("Expected value 0, got %v", err.Value)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		err := ErrConfigMissing("host")
		if err.Code != CodeConfiguration {
			t.Errorf("Expected code %s, got %s", CodeConfiguration, err.Code)
		}
	})

	t.Run("wrapped config error", func(t *testing.T) {
		cause := fmt.Errorf("bad yaml")
		err := WrapConfigError(CodeConfiguration, "parse failed", cause)
		if err.Unwrap() != cause {
			t.Error("Unwrap should return the cause")
		}
	})
}

func TestUtilityFunctions(t *testing.T) {
	t.Run("GetCode", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want ErrorCode
		}{
			{"scan error", WrapScanError(CodeScanFailed, "x", nil), CodeScanFailed},
			{"database error", NewDatabaseError(CodeDatabaseQuery, "x"), CodeDatabaseQuery},
			{"config error", NewConfigError(CodeConfiguration, "x"), CodeConfiguration},
			{"wrapped by fmt", fmt.Errorf("outer: %w", ErrHostUnreachable("h")), CodeHostUnreachable},
			{"plain error", fmt.Errorf("plain"), CodeUnknown},
			{"nil error", nil, CodeUnknown},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := GetCode(tt.err); got != tt.want {
					t.Errorf("GetCode() = %s, want %s", got, tt.want)
				}
			})
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		if !IsCode(ErrHostUnreachable("h"), CodeHostUnreachable) {
			t.Error("Expected IsCode to match HOST_UNREACHABLE")
		}
		if IsCode(nil, CodeUnknown) {
			t.Error("nil error should never match a code")
		}
	})

	t.Run("IsFatal", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want bool
		}{
			{"validation", ErrConfigInvalid("port", 0), true},
			{"unreachable", ErrHostUnreachable("h"), true},
			{"file write", ErrFileWrite("out.txt", fmt.Errorf("disk full")), true},
			{"invalid target", ErrInvalidTarget(""), true},
			{"timeout", WrapScanError(CodeTimeout, "x", nil), false},
			{"database", ErrDatabaseConnection(fmt.Errorf("refused")), false},
			{"plain", fmt.Errorf("x"), false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := IsFatal(tt.err); got != tt.want {
					t.Errorf("IsFatal() = %v, want %v", got, tt.want)
				}
			})
		}
	})
}

func TestCommonErrorCreationFunctions(t *testing.T) {
	t.Run("ErrInvalidTarget", func(t *testing.T) {
		err := ErrInvalidTarget("bad host")
		if err.Code != CodeTargetInvalid || err.Target != "bad host" {
			t.Errorf("Unexpected error: %+v", err)
		}
	})

	t.Run("ErrFileWrite", func(t *testing.T) {
		cause := fmt.Errorf("permission denied")
		err := ErrFileWrite("/root/out.txt", cause)
		if err.Context["path"] != "/root/out.txt" {
			t.Errorf("Expected path in context, got %v", err.Context["path"])
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is should find the cause")
		}
	})

	t.Run("ErrDatabaseConnection", func(t *testing.T) {
		err := ErrDatabaseConnection(fmt.Errorf("refused"))
		if err.Code != CodeDatabaseConnection {
			t.Errorf("Expected code %s, got %s", CodeDatabaseConnection, err.Code)
		}
	})
}
