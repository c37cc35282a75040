package models

import "fmt"

// ErrorKind classifies an Error.
type ErrorKind string

const (
	// KindValidation errors are caller-correctable input problems.
	KindValidation ErrorKind = "validation"
	// KindState errors are protocol violations by the executor or the ingestion path.
	KindState ErrorKind = "state"
	// KindNotFound errors reference an unknown result or workspace.
	KindNotFound ErrorKind = "not_found"
)

// Error represents a structured domain error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code so a detailed copy still satisfies errors.Is
// against its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e carrying a more specific message.
func (e *Error) With(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// OnField returns a copy of e pointing at field.
func (e *Error) OnField(field string) *Error {
	c := *e
	c.Field = field
	return &c
}

func newError(kind ErrorKind, code, field, message string) *Error {
	return &Error{Kind: kind, Code: code, Field: field, Message: message}
}

// Validation errors.
var (
	ErrMissingTarget            = newError(KindValidation, "MissingTarget", "target", "target is required")
	ErrInvalidTarget            = newError(KindValidation, "InvalidTarget", "target", "target must be a single token and must not start with '-'")
	ErrInvalidMode              = newError(KindValidation, "InvalidMode", "mode", "unknown scan mode")
	ErrMissingPort              = newError(KindValidation, "MissingPort", "port", "port is required in port mode")
	ErrInvalidPort              = newError(KindValidation, "InvalidPort", "port", "port must be an integer between 1 and 65535")
	ErrInvalidWorkspace         = newError(KindValidation, "InvalidWorkspace", "workspace", "workspace must be a single token and must not start with '-'")
	ErrUnsafeCustomConfig       = newError(KindValidation, "UnsafeCustomConfig", "customConfig", "custom config contains shell metacharacters")
	ErrMissingField             = newError(KindValidation, "MissingField", "", "required field is missing")
	ErrInvalidField             = newError(KindValidation, "InvalidField", "", "field has an invalid value")
	ErrInvalidSeverity          = newError(KindValidation, "InvalidSeverity", "severity", "unknown severity")
	ErrMissingEndTime           = newError(KindValidation, "MissingEndTime", "endTime", "end time is required for a terminal status")
	ErrDuplicateVulnerabilityID = newError(KindValidation, "DuplicateVulnerabilityId", "vulnerabilities", "vulnerability id is not unique within the result")
)

// State errors.
var (
	ErrIllegalTransition = newError(KindState, "IllegalTransition", "status", "illegal status transition")
	ErrInvalidTimeRange  = newError(KindState, "InvalidTimeRange", "endTime", "start time is after end time")
	ErrDuplicateResultID = newError(KindState, "DuplicateResultId", "id", "a different result with this id already exists")
	ErrIllegalUpdate     = newError(KindState, "IllegalUpdate", "", "update must keep the result's workspace and target")
	ErrWorkspaceExists   = newError(KindState, "WorkspaceExists", "name", "workspace already exists")
)

// Lookup errors.
var (
	ErrResultNotFound    = newError(KindNotFound, "ResultNotFound", "id", "scan result not found")
	ErrWorkspaceNotFound = newError(KindNotFound, "WorkspaceNotFound", "name", "workspace not found")
)
