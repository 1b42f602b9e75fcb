package badcurl

import (
	"errors"
	"fmt"

	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// Kind discriminates Error values.
type Kind int

const (
	// KindInvalidInput is a local validation failure. The engine was not called.
	KindInvalidInput Kind = iota + 1
	// KindNative is a failure reported by the engine.
	KindNative
	// KindCallbackPanic means a registered callback panicked.
	KindCallbackPanic
	// KindInitialization means process-wide engine setup failed. It is fatal.
	KindInitialization
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindNative:
		return "native error"
	case KindCallbackPanic:
		return "callback panic"
	case KindInitialization:
		return "initialization error"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput   = errors.New("badcurl: invalid input")
	ErrNative         = errors.New("badcurl: native error")
	ErrCallbackPanic  = errors.New("badcurl: callback panic")
	ErrInitialization = errors.New("badcurl: initialization failed")
	// ErrPoisoned matches CallbackPanic errors returned by a handle that was
	// not reset after a panic.
	ErrPoisoned = errors.New("badcurl: handle poisoned")
)

// Messages used by Error.
const (
	msgHandlePoisoned = "handle poisoned by an earlier callback panic; call Reset"
	msgCallbackPanic  = "callback panicked"
)

// Error is the error type returned by every fallible badcurl operation.
type Error struct {
	Kind Kind

	// Code and Message are the engine status and its engine-provided text.
	// Set for KindNative and KindInitialization.
	Code    native.Code
	Message string
	// Detail is the engine's description of this particular failure, if any.
	Detail string

	// Option names the option an InvalidInput or option-setting NativeError
	// refers to. Zero otherwise.
	Option native.Option
	// Callback names the callback kind that panicked.
	Callback string
	// Payload is the recovered panic value, Stack the goroutine stack at the
	// time of the panic.
	Payload any
	Stack   []byte
	// Poisoned is set when the error is a replay on a poisoned handle.
	Poisoned bool

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidInput:
		if e.Option != 0 {
			return fmt.Sprintf("badcurl: invalid input for %s: %s", e.Option, e.Message)
		}
		return "badcurl: invalid input: " + e.Message
	case KindNative:
		s := fmt.Sprintf("badcurl: [%d] %s", int(e.Code), e.Message)
		if e.Option != 0 {
			s = fmt.Sprintf("badcurl: setting %s: [%d] %s", e.Option, int(e.Code), e.Message)
		}
		if e.Detail != "" && e.Detail != e.Message {
			s += ": " + e.Detail
		}
		if e.Err != nil {
			s += ": " + e.Err.Error()
		}
		return s
	case KindCallbackPanic:
		msg := msgCallbackPanic
		if e.Poisoned {
			msg = msgHandlePoisoned
		}
		if e.Callback != "" {
			return fmt.Sprintf("badcurl: %s (%s callback: %v)", msg, e.Callback, e.Payload)
		}
		return fmt.Sprintf("badcurl: %s (%v)", msg, e.Payload)
	case KindInitialization:
		return fmt.Sprintf("badcurl: initialization failed: [%d] %s", int(e.Code), e.Message)
	default:
		return "badcurl: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrNative:
		return e.Kind == KindNative
	case ErrCallbackPanic:
		return e.Kind == KindCallbackPanic
	case ErrInitialization:
		return e.Kind == KindInitialization
	case ErrPoisoned:
		return e.Kind == KindCallbackPanic && e.Poisoned
	}
	return false
}

// Category is the advisory grouping of a native code. Zero for other kinds.
func (e *Error) Category() Category {
	if e.Kind != KindNative {
		return 0
	}
	return CategoryOf(e.Code)
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(opt native.Option, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Option: opt, Message: fmt.Sprintf(format, args...)}
}

// FromCode translates an engine status code into a KindNative error using the
// engine's own text for code. It returns nil for native.OK.
func FromCode(engine native.Engine, code native.Code, detail string) error {
	if code == native.OK {
		return nil
	}
	return &Error{
		Kind:    KindNative,
		Code:    code,
		Message: engine.Strerror(code),
		Detail:  detail,
	}
}

// CallbackPanic builds a KindCallbackPanic error.
func CallbackPanic(callback string, payload any, stack []byte, poisoned bool) *Error {
	return &Error{
		Kind:     KindCallbackPanic,
		Callback: callback,
		Payload:  payload,
		Stack:    stack,
		Poisoned: poisoned,
	}
}

// CodeOf returns the native code carried by err, or native.OK.
func CodeOf(err error) native.Code {
	var e *Error
	if errors.As(err, &e) && (e.Kind == KindNative || e.Kind == KindInitialization) {
		return e.Code
	}
	return native.OK
}

// CategoryOfError returns the category of a KindNative err, or 0.
func CategoryOfError(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category()
	}
	return 0
}
