package thread

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
)

var (
	// ErrNoSuchThread is returned when an id does not name a live thread.
	ErrNoSuchThread = errors.New("thread: no such thread")

	// ErrThreadInError is returned when sending to a thread that stopped
	// after an unhandled script failure.
	ErrThreadInError = errors.New("thread: target thread is in error state")

	// ErrTargetThreadDied is returned to every sender still waiting on a
	// thread when it exits.
	ErrTargetThreadDied = errors.New("thread: target thread died")

	// ErrNotJoinable is returned by Join for threads not created joinable,
	// or already joined.
	ErrNotJoinable = errors.New("thread: thread is not joinable")

	// ErrCanceled is the cause attached to a script context by Cancel.
	ErrCanceled = errors.New("thread: script canceled")
)

// Result codes.
const (
	CodeOK    = 0
	CodeError = 1
)

// Result is what running a script produced. Its fields are plain text so it
// can cross any boundary.
type Result struct {
	Code      int    `json:"code"`
	Value     string `json:"value"`
	ErrorCode string `json:"errorCode,omitempty"`
	ErrorInfo string `json:"errorInfo,omitempty"`
}

// Err returns the failure carried by r, or nil.
func (r Result) Err() error {
	if r.Code == CodeOK {
		return nil
	}
	return &ScriptError{Message: r.Value, Code: r.ErrorCode, Info: r.ErrorInfo}
}

// ScriptError is a failed script. Scripts may return one to set the error
// code and info text explicitly.
type ScriptError struct {
	Message string
	Code    string
	Info    string
}

func (e *ScriptError) Error() string { return e.Message }

// PanicError is a panic recovered while running a script.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// resultOf converts a script's return values into a Result.
func resultOf(v string, err error) Result {
	if err == nil {
		return Result{Code: CodeOK, Value: v}
	}
	var se *ScriptError
	if errors.As(err, &se) {
		return Result{Code: CodeError, Value: se.Message, ErrorCode: se.Code, ErrorInfo: se.Info}
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return Result{Code: CodeError, Value: pe.Error(), ErrorCode: "PANIC", ErrorInfo: string(pe.Stack)}
	}
	code := "NONE"
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) {
		code = "CANCELED"
	}
	return Result{Code: CodeError, Value: err.Error(), ErrorCode: code, ErrorInfo: err.Error()}
}

// ErrorHandler receives script failures nobody else consumed.
type ErrorHandler func(id ID, r Result)

var errorHandler atomic.Pointer[ErrorHandler]

// SetErrorHandler installs the process-wide error handler and returns the
// previous one. A nil fn restores the default, which logs the failure.
func SetErrorHandler(fn ErrorHandler) ErrorHandler {
	var prev *ErrorHandler
	if fn == nil {
		prev = errorHandler.Swap(nil)
	} else {
		prev = errorHandler.Swap(&fn)
	}
	if prev == nil {
		return nil
	}
	return *prev
}

// ReportError hands r to the process error handler.
func ReportError(id ID, r Result) { reportError(id, r) }

func reportError(id ID, r Result) {
	if h := errorHandler.Load(); h != nil {
		(*h)(id, r)
		return
	}
	log.Printf("thread[%s]: %s\n%s", id, r.Value, r.ErrorInfo)
}
