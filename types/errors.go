package types

import "fmt"

// Tool error codes. Adapters branch on these rather than matching messages.
const (
	// CodeRBWViolation: a write targeted a row not read earlier this tick.
	CodeRBWViolation = "RBW_VIOLATION"
	// CodeReadAlreadyCalled: read_scoped invoked twice in one tick.
	CodeReadAlreadyCalled = "STORAGE_READ_ALREADY_CALLED"
	// CodeWriteAlreadyCalled: write_scoped invoked twice in one tick.
	CodeWriteAlreadyCalled = "STORAGE_WRITE_ALREADY_CALLED"
	// CodeWriteBeforeRead: write_scoped invoked before read_scoped.
	CodeWriteBeforeRead = "STORAGE_WRITE_BEFORE_READ"
	// CodeInvalidScope: scope identifiers disagree with the tick context, or
	// an op references an unknown scope.
	CodeInvalidScope = "INVALID_SCOPE"
	// CodeUnknownTool: the dispatcher could not match the tool name.
	CodeUnknownTool = "UNKNOWN_TOOL"
	// CodeUnknownClog: a peer-call address names an unregistered clog.
	CodeUnknownClog = "UNKNOWN_CLOG"
	// CodeUnknownEndpoint: a peer-call address names a missing endpoint.
	CodeUnknownEndpoint = "UNKNOWN_ENDPOINT"
	// CodeInternal: a storage or dispatch failure not caused by the caller.
	CodeInternal = "INTERNAL"
)

// ToolError is a coded tool-surface failure. It is returned as a value in
// Result.Error so handler code can branch rather than exception-propagate.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface for logging paths.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewToolError creates a coded error with a formatted message.
func NewToolError(code, format string, args ...any) *ToolError {
	return &ToolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail key/value and returns the error.
func (e *ToolError) WithDetail(key string, value any) *ToolError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Result is the uniform tool-call result. OK is false exactly when Error is
// set; Data holds the tool-specific output (ReadScopedOutput, EmitOutput...).
type Result struct {
	OK    bool       `json:"ok"`
	Error *ToolError `json:"error,omitempty"`
	Data  any        `json:"data,omitempty"`
}

// OKResult wraps a tool output in a successful Result.
func OKResult(data any) Result {
	return Result{OK: true, Data: data}
}

// ErrResult wraps a coded error in a failed Result.
func ErrResult(err *ToolError) Result {
	return Result{OK: false, Error: err}
}
