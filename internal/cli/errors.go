package cli

import (
	"context"
	"errors"
	"os"

	"github.com/aidanlsb/tracemacro/internal/index"
	"github.com/aidanlsb/tracemacro/internal/macro"
	"github.com/aidanlsb/tracemacro/internal/registry"
	"github.com/aidanlsb/tracemacro/internal/uid"
	"github.com/aidanlsb/tracemacro/internal/usagefile"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Configuration errors
	ErrConfigInvalid = "CONFIG_INVALID"

	// Usage file errors
	ErrUsageFileNotFound  = "USAGE_FILE_NOT_FOUND"
	ErrUsageFileInvalid   = "USAGE_FILE_INVALID"
	ErrUnsupportedVersion = "UNSUPPORTED_VERSION"
	ErrDuplicateMacro     = "DUPLICATE_MACRO"
	ErrMacroNotFound      = "MACRO_NOT_FOUND"
	ErrUnknownEncoder     = "UNKNOWN_ENCODER"
	ErrTableConflict      = "TABLE_CONFLICT"

	// Decode errors
	ErrMalformedUniqueID    = "MALFORMED_UNIQUE_ID"
	ErrInvalidEncoderScheme = "INVALID_ENCODER_SCHEME"

	// Ingest errors
	ErrRecordsInvalid  = "RECORDS_INVALID"
	ErrUnitsDegraded   = "UNITS_DEGRADED"
	ErrStrictWarnings  = "STRICT_WARNINGS"
	ErrIngestCancelled = "INGEST_CANCELLED"

	// Index errors
	ErrDatabaseError = "DATABASE_ERROR"
	ErrIndexLocked   = "INDEX_LOCKED"
	ErrIndexEmpty    = "INDEX_EMPTY"
	ErrNotFound      = "NOT_FOUND"

	// File errors
	ErrFileExists     = "FILE_EXISTS"
	ErrFileReadError  = "FILE_READ_ERROR"
	ErrFileWriteError = "FILE_WRITE_ERROR"

	// Input errors
	ErrInvalidInput = "INVALID_INPUT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// errorCode maps a domain error to its stable code, falling back to fallback.
func errorCode(err error, fallback string) string {
	var malformed *uid.MalformedUniqueIDError
	var invalidScheme *uid.InvalidEncoderSchemeError
	switch {
	case errors.As(err, &malformed):
		return ErrMalformedUniqueID
	case errors.As(err, &invalidScheme):
		return ErrInvalidEncoderScheme
	case errors.Is(err, registry.ErrDuplicateMacro):
		return ErrDuplicateMacro
	case errors.Is(err, registry.ErrUnsupportedVersion):
		return ErrUnsupportedVersion
	case errors.Is(err, registry.ErrMacroNotFound):
		return ErrMacroNotFound
	case errors.Is(err, macro.ErrUnknownEncoder):
		return ErrUnknownEncoder
	case errors.Is(err, usagefile.ErrTableConflict):
		return ErrTableConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrIngestCancelled
	case errors.Is(err, index.ErrIndexLocked):
		return ErrIndexLocked
	case errors.Is(err, index.ErrNoRuns):
		return ErrIndexEmpty
	case errors.Is(err, os.ErrNotExist):
		return ErrUsageFileNotFound
	default:
		return fallback
	}
}
