// Package core provides the business logic for test-evidence reports.
//
// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Users quote the code; support staff look it up here.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate record            Patterns: "duplicate key", "unique constraint"
//	DB002 - Missing parent record       Patterns: "foreign key"
//	DB003 - Connection refused          Patterns: "connection refused"
//	DB004 - Connection reset            Patterns: "connection reset"
//	DB005 - Database busy               Patterns: "database is locked", "deadlock"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Missing columns            Patterns: "missing required column"
//	VAL002 - Missing cell value         Patterns: "missing required value"
//	VAL003 - Missing report title       Patterns: "report title is required"
//	VAL004 - Unknown status             Patterns: "invalid status"
//	VAL005 - Malformed request body     Patterns: "invalid request body"
//	VAL006 - Blank test case field      Patterns: "required field is empty"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large            Patterns: "file too large"
//	FILE002 - Unreadable spreadsheet    Patterns: "malformed file"
//	FILE003 - Unsupported file type     Patterns: "unsupported file type"
//	FILE004 - No file                   Patterns: "no file provided"
//	FILE005 - Empty file                Patterns: "empty file"
//
// # Evidence Errors (EVD001-EVD099)
//
//	EVD001 - Evidence type not allowed  Patterns: "evidence file type not allowed"
//
// # Access Errors (AUTH001-AUTH099)
//
//	AUTH001 - Not found                 Patterns: "access denied", "not found"
//	AUTH002 - Authentication required   Patterns: "missing bearer token", "invalid token"
//
// Denied and missing resources share AUTH001 so a response never reveals
// that another user's report exists.
//
// # Operation Errors (OPS001-OPS099)
//
//	OPS001 - System busy                Patterns: "too many concurrent operations"
//	OPS002 - Request cancelled          Patterns: "context canceled"
//	OPS003 - Request timed out          Patterns: "context deadline exceeded", "timeout"
//	OPS004 - Rate limited               Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the application logs for the
// technical error.
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.
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

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgDuplicate = UserMessage{
		Message: "A record with this identifier already exists",
		Action:  "Retry the operation; if it persists, contact support",
		Code:    "DB001",
	}
	msgParentMissing = UserMessage{
		Message: "The parent record no longer exists",
		Action:  "Reload the report and try again",
		Code:    "DB002",
	}
	msgBusy = UserMessage{
		Message: "The database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB005",
	}
	msgNotFound = UserMessage{
		Message: "The requested item was not found",
		Action:  "Check the link or reload the report list",
		Code:    "AUTH001",
	}
	msgUnauthenticated = UserMessage{
		Message: "Authentication required",
		Action:  "Sign in again to get a fresh token",
		Code:    "AUTH002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or fewer reports, or try again later",
		Code:    "OPS003",
	}
)

var errorPatterns = []errorPattern{
	// Database
	{pattern: "duplicate key", msg: msgDuplicate},
	{pattern: "unique constraint", msg: msgDuplicate},
	{pattern: "foreign key", msg: msgParentMissing},
	{pattern: "connection refused", msg: UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB003",
	}},
	{pattern: "connection reset", msg: UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB004",
	}},
	{pattern: "database is locked", msg: msgBusy},
	{pattern: "deadlock", msg: msgBusy},

	// Validation
	{pattern: "missing required column", msg: UserMessage{
		Message: "The spreadsheet is missing required columns",
		Action:  "Add the columns ID, Case Title, Steps and Expected Result (Portuguese names are accepted)",
		Code:    "VAL001",
	}},
	{pattern: "missing required value", msg: UserMessage{
		Message: "A row is missing a required value",
		Action:  "Fill in every required cell and import again",
		Code:    "VAL002",
	}},
	{pattern: "report title is required", msg: UserMessage{
		Message: "A report needs a title",
		Action:  "Enter a title for the report",
		Code:    "VAL003",
	}},
	{pattern: "invalid status", msg: UserMessage{
		Message: "Unknown test status",
		Action:  "Use PASS, FAIL, BLOCKED or PENDING",
		Code:    "VAL004",
	}},
	{pattern: "invalid request body", msg: UserMessage{
		Message: "The request could not be read",
		Action:  "Check the submitted fields and try again",
		Code:    "VAL005",
	}},
	{pattern: "required field is empty", msg: UserMessage{
		Message: "A test case needs a title and an expected result",
		Action:  "Fill in Case Title and Expected Result",
		Code:    "VAL006",
	}},

	// Files
	{pattern: "file too large", msg: UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Upload a smaller file",
		Code:    "FILE001",
	}},
	{pattern: "malformed file", msg: UserMessage{
		Message: "The spreadsheet could not be read",
		Action:  "Save the file again as .xlsx or UTF-8 .csv",
		Code:    "FILE002",
	}},
	{pattern: "unsupported file type", msg: UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload an .xlsx or .csv file",
		Code:    "FILE003",
	}},
	{pattern: "no file provided", msg: UserMessage{
		Message: "No file was selected",
		Action:  "Please select a file to upload",
		Code:    "FILE004",
	}},
	{pattern: "empty file", msg: UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with a header row",
		Code:    "FILE005",
	}},

	// Evidence
	{pattern: "evidence file type not allowed", msg: UserMessage{
		Message: "This evidence file type is not allowed",
		Action:  "Upload an image, video, document or archive",
		Code:    "EVD001",
	}},

	// Access
	{pattern: "access denied", msg: msgNotFound},
	{pattern: "not found", msg: msgNotFound},
	{pattern: "missing bearer token", msg: msgUnauthenticated},
	{pattern: "invalid token", msg: msgUnauthenticated},

	// Operations
	{pattern: "too many concurrent operations", msg: UserMessage{
		Message: "System is busy processing other imports and exports",
		Action:  "Please wait a moment and try again",
		Code:    "OPS001",
	}},
	{pattern: "context canceled", msg: UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "OPS002",
	}},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "rate limit", msg: UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "OPS004",
	}},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
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
//	msg := MapError(fmt.Errorf("import: %w", ErrEmptyFile))
//	// msg.Code == "FILE005"
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
//
// Example output: "The uploaded file is empty (Code: FILE005). Please upload a file with a header row"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError pairs a technical error (kept for logging) with its user message.
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
