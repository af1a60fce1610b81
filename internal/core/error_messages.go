// Package core provides the normalization engine for flatsheet.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Every failure raised by the ingestion or export pipeline is mapped to exactly
// one message here before it reaches the session state or an HTTP response.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Unsupported type: only JSON or TXT files are accepted
//	          Action: Upload a .json or .txt file
//	          Patterns: "unsupported file type"
//
//	FILE002 - File too large: file exceeds the configured size limit
//	          Action: Split the file into smaller documents
//	          Patterns: "file too large"
//
//	FILE003 - No file: no file was selected
//	          Action: Choose or drop a file to upload
//	          Patterns: "no file provided"
//
// # Parse Errors (PARSE001-PARSE099)
//
//	PARSE002 - Delimited text could not be parsed
//	           Action: Check that every row has the same columns as the header
//	           Patterns: "parse failure (delimited)"
//
//	PARSE001 - File could not be parsed as JSON
//	           Action: Make sure the file is valid JSON or delimited text
//	           Patterns: "parse failure (json)"
//
// # Structure Errors (STR001-STR099)
//
//	STR002 - Nesting too deep
//	         Action: Reduce the nesting depth of the document
//	         Patterns: "nesting depth exceeded"
//
//	STR001 - Unsupported structure: document is not an array or object
//	         Action: Upload an array of objects or a single object
//	         Patterns: "unsupported structure"
//
// # Data Errors (DATA001-DATA099)
//
//	DATA002 - Export requested without a dataset
//	          Action: Upload a file before downloading
//	          Patterns: "no data to export"
//
//	DATA001 - Empty dataset: the document holds no records
//	          Action: Upload a file that contains at least one record
//	          Patterns: "empty dataset"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export library missing
//	         Action: Reload the page or contact support
//	         Patterns: "export library missing"
//
//	EXP002 - Export failed
//	         Action: Please try again
//	         Patterns: "export failure"
//
// # Session Errors (SES001-SES099, PAGE001, UPL00x)
//
//	PAGE001 - Page out of range
//	SES001  - Session not found
//	UPL002  - Too many uploads in progress
//	UPL004  - Request cancelled
//	UPL005  - Request timed out
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are listed
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE003)
	// =========================================================================
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Unsupported file type. Please upload a JSON or TXT file",
			Action:  "Upload a .json or .txt file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller documents",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose or drop a file to upload",
			Code:    "FILE003",
		},
	},

	// =========================================================================
	// Parse Errors (PARSE001-PARSE002)
	// =========================================================================
	{
		pattern: "parse failure (delimited)",
		msg: UserMessage{
			Message: "Failed to parse the TXT file as CSV. It may not be delimited text",
			Action:  "Check that every row has the same columns as the header",
			Code:    "PARSE002",
		},
	},
	{
		pattern: "parse failure (json)",
		msg: UserMessage{
			Message: "Failed to parse the file. Make sure it is valid JSON or CSV",
			Action:  "Make sure the file is valid JSON or delimited text",
			Code:    "PARSE001",
		},
	},

	// =========================================================================
	// Structure Errors (STR001-STR002)
	// =========================================================================
	{
		pattern: "nesting depth exceeded",
		msg: UserMessage{
			Message: "The document is nested too deeply to flatten",
			Action:  "Reduce the nesting depth of the document",
			Code:    "STR002",
		},
	},
	{
		pattern: "unsupported structure",
		msg: UserMessage{
			Message: "Unsupported file structure. Please upload an array of objects or a single object",
			Action:  "Upload an array of objects or a single object",
			Code:    "STR001",
		},
	},

	// =========================================================================
	// Data Errors (DATA001-DATA002)
	// =========================================================================
	{
		pattern: "no data to export",
		msg: UserMessage{
			Message: "There is no data to export",
			Action:  "Upload a file before downloading",
			Code:    "DATA002",
		},
	},
	{
		pattern: "empty dataset",
		msg: UserMessage{
			Message: "There is no data to process",
			Action:  "Upload a file that contains at least one record",
			Code:    "DATA001",
		},
	},

	// =========================================================================
	// Export Errors (EXP001-EXP002)
	// =========================================================================
	{
		pattern: "export library missing",
		msg: UserMessage{
			Message: "The export library is not loaded",
			Action:  "Reload the page or contact support",
			Code:    "EXP001",
		},
	},
	{
		pattern: "export failure",
		msg: UserMessage{
			Message: "Failed to convert the data. Please try again",
			Action:  "Please try again",
			Code:    "EXP002",
		},
	},

	// =========================================================================
	// Session Errors (PAGE001, SES001, UPL002-UPL005)
	// =========================================================================
	{
		pattern: "page out of range",
		msg: UserMessage{
			Message: "That page does not exist",
			Action:  "Choose a page between the first and last page",
			Code:    "PAGE001",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Your session has expired",
			Action:  "Upload the file again",
			Code:    "SES001",
		},
	},
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(ErrEmptyDataset)
//	// msg.Code == "DATA001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
