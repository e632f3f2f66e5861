package core

// error_messages.go maps request errors to user-facing guidance with a code
// that can be quoted to support.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Encoding error (not UTF-8)
//	FILE004 - No file in the form
//	FILE005 - Form could not be parsed
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL004 - Required column missing from the header
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - No hospital rows
//	IMP002 - Too many hospital rows
//	IMP003 - Import slots exhausted
//
// # History Errors (HIST001-HIST099)
//
//	HIST001 - History database not configured
//	HIST002 - Batch id not recorded
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Sentinel errors are matched with errors.Is first. Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Upload a smaller CSV file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Attach a CSV file under the \"file\" field",
			Code:    "FILE004",
		},
	},
	{
		pattern: "invalid form",
		msg: UserMessage{
			Message: "The upload form could not be read",
			Action:  "Send the file as multipart/form-data",
			Code:    "FILE005",
		},
	},

	// Validation errors
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "Include name and address columns in the header row",
			Code:    "VAL004",
		},
	},

	// Import errors
	{
		pattern: "no hospital rows",
		msg: UserMessage{
			Message: "The CSV has a header but no hospital rows",
			Action:  "Add at least one hospital row",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP003",
		},
	},

	// History errors
	{
		pattern: "history is not enabled",
		msg: UserMessage{
			Message: "Import history is not available on this server",
			Action:  "Configure DATABASE_URL to record import batches",
			Code:    "HIST001",
		},
	},
	{
		pattern: "batch not found",
		msg: UserMessage{
			Message: "No import batch with that id was recorded",
			Action:  "Check the batch_id from the import response",
			Code:    "HIST002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// sentinelMessages are matched with errors.Is before any text pattern.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{
		err: ErrTooManyRows,
		msg: UserMessage{
			Message: "The CSV has too many hospital rows",
			Action:  "Split the file into smaller batches",
			Code:    "IMP002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
// Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
