package easy

import (
	"fmt"
	"io"
	"math"
	"runtime/debug"
	"unsafe"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// CallbackKind names a callback slot. A handle holds at most one callback of
// each kind.
type CallbackKind int

const (
	CallbackWrite CallbackKind = iota
	CallbackRead
	CallbackHeader
	CallbackProgress
	CallbackDebug

	numCallbacks
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackWrite:
		return "write"
	case CallbackRead:
		return "read"
	case CallbackHeader:
		return "header"
	case CallbackProgress:
		return "progress"
	case CallbackDebug:
		return "debug"
	default:
		return fmt.Sprintf("CallbackKind(%d)", int(k))
	}
}

// WriteFunc receives response body data. It returns the number of bytes it
// consumed; consuming less than len(data), or returning an error, aborts the
// transfer with a write error. The signature matches io.Writer.Write.
type WriteFunc func(data []byte) (int, error)

// ReadFunc fills buf with request body data, with io.Reader semantics. io.EOF
// ends the body; any other error aborts the transfer.
type ReadFunc func(buf []byte) (int, error)

// HeaderFunc receives one response header line at a time, including the status
// line, the trailing CRLF and the blank line closing the header block.
// Returning false aborts the transfer.
//
// Wire order is not kept: header names arrive in canonical form
// ("Content-Type"), sorted by name, with repeated fields in the order they
// were received.
type HeaderFunc func(line []byte) bool

// ProgressFunc reports transfer progress. Returning false aborts the transfer.
type ProgressFunc func(dltotal, dlnow, ultotal, ulnow int64) bool

// DebugFunc receives engine diagnostics when the handle is verbose.
type DebugFunc func(kind native.InfoType, data []byte)

// callbackOptions are the function and data options of each slot.
var callbackOptions = [numCallbacks]struct{ fn, data native.Option }{
	CallbackWrite:    {native.OptWriteFunction, native.OptWriteData},
	CallbackRead:     {native.OptReadFunction, native.OptReadData},
	CallbackHeader:   {native.OptHeaderFunction, native.OptHeaderData},
	CallbackProgress: {native.OptXferInfoFunction, native.OptXferInfoData},
	CallbackDebug:    {native.OptDebugFunction, native.OptDebugData},
}

// trampolines are the fixed-signature functions handed to the engine.
var trampolines = [numCallbacks]any{
	CallbackWrite:    native.DataFunc(writeTrampoline),
	CallbackRead:     native.DataFunc(readTrampoline),
	CallbackHeader:   native.DataFunc(headerTrampoline),
	CallbackProgress: native.XferInfoFunc(progressTrampoline),
	CallbackDebug:    native.DebugFunc(debugTrampoline),
}

// panicked is a panic recovered inside a trampoline.
type panicked struct {
	callback CallbackKind
	payload  any
	stack    []byte
}

func (p *panicked) err(poisoned bool) *badcurl.Error {
	return badcurl.CallbackPanic(p.callback.String(), p.payload, p.stack, poisoned)
}

// shared is the part of a handle that trampolines reach. It never points back
// at the Easy, so an unreachable Easy can still be collected while the engine
// holds tokens into it.
type shared struct {
	slots [numCallbacks]*slot

	// panic is the first panic of the current perform. Once set, every
	// trampoline returns its abort sentinel without calling user code.
	panic *panicked
	// cause is the last error a callback returned, kept to explain the
	// resulting engine failure.
	cause error
}

// slot holds one registered closure. Its address is the token the engine
// passes back to the trampoline, so it must stay allocated for as long as the
// registration is live on the engine handle.
type slot struct {
	kind CallbackKind
	sh   *shared
	fn   any
}

func (s *slot) token() native.Token { return native.Token(unsafe.Pointer(s)) }

func slotOf(token native.Token) *slot { return (*slot)(unsafe.Pointer(token)) }

// invoke runs call unless an earlier callback already panicked, and turns a
// panic into abort.
func (s *slot) invoke(abort uintptr, call func() uintptr) (ret uintptr) {
	if s.sh.panic != nil {
		return abort
	}
	defer func() {
		if r := recover(); r != nil {
			s.sh.panic = &panicked{callback: s.kind, payload: r, stack: debug.Stack()}
			ret = abort
		}
	}()
	return call()
}

// view reconstructs the engine buffer as a slice. ok is false when the engine
// passed an unusable buffer.
func view(buf *byte, size uintptr) (data []byte, ok bool) {
	if size == 0 {
		return []byte{}, true
	}
	if buf == nil || size > math.MaxInt {
		return nil, false
	}
	return unsafe.Slice(buf, int(size)), true
}

func writeTrampoline(buf *byte, size uintptr, token native.Token) uintptr {
	s := slotOf(token)
	return s.invoke(native.WritefuncError, func() uintptr {
		data, ok := view(buf, size)
		if !ok {
			return native.WritefuncError
		}
		n, err := s.fn.(WriteFunc)(data)
		if err != nil {
			s.sh.cause = err
			return native.WritefuncError
		}
		if n < 0 || n > len(data) {
			return native.WritefuncError
		}
		if n < len(data) {
			s.sh.cause = io.ErrShortWrite
		}
		return uintptr(n)
	})
}

// maxEmptyReads bounds how often a ReadFunc may return (0, nil) in a row.
const maxEmptyReads = 100

func readTrampoline(buf *byte, size uintptr, token native.Token) uintptr {
	s := slotOf(token)
	return s.invoke(native.ReadfuncAbort, func() uintptr {
		data, ok := view(buf, size)
		if !ok {
			return native.ReadfuncAbort
		}
		if len(data) == 0 {
			return 0
		}
		for range maxEmptyReads {
			n, err := s.fn.(ReadFunc)(data)
			if n < 0 || n > len(data) {
				s.sh.cause = fmt.Errorf("read callback returned %d for a %d byte buffer", n, len(data))
				return native.ReadfuncAbort
			}
			switch {
			case n > 0:
				return uintptr(n)
			case err == io.EOF:
				return 0
			case err != nil:
				s.sh.cause = err
				return native.ReadfuncAbort
			}
		}
		s.sh.cause = io.ErrNoProgress
		return native.ReadfuncAbort
	})
}

func headerTrampoline(buf *byte, size uintptr, token native.Token) uintptr {
	s := slotOf(token)
	return s.invoke(native.WritefuncError, func() uintptr {
		data, ok := view(buf, size)
		if !ok || !s.fn.(HeaderFunc)(data) {
			return native.WritefuncError
		}
		return size
	})
}

func progressTrampoline(token native.Token, dltotal, dlnow, ultotal, ulnow int64) int {
	s := slotOf(token)
	return int(s.invoke(1, func() uintptr {
		if s.fn.(ProgressFunc)(dltotal, dlnow, ultotal, ulnow) {
			return 0
		}
		return 1
	}))
}

func debugTrampoline(kind native.InfoType, buf *byte, size uintptr, token native.Token) int {
	s := slotOf(token)
	return int(s.invoke(1, func() uintptr {
		data, ok := view(buf, size)
		if !ok {
			return 1
		}
		s.fn.(DebugFunc)(kind, data)
		return 0
	}))
}

func keep(f any, isNil bool) (any, bool) {
	if isNil {
		return nil, true
	}
	return f, true
}

// closure converts fn to the typed closure of kind. nil unregisters.
func closure(kind CallbackKind, fn any) (any, bool) {
	if fn == nil {
		return nil, true
	}
	switch kind {
	case CallbackWrite:
		switch f := fn.(type) {
		case WriteFunc:
			return keep(f, f == nil)
		case func([]byte) (int, error):
			return keep(WriteFunc(f), f == nil)
		case io.Writer:
			return WriteFunc(f.Write), true
		}
	case CallbackRead:
		switch f := fn.(type) {
		case ReadFunc:
			return keep(f, f == nil)
		case func([]byte) (int, error):
			return keep(ReadFunc(f), f == nil)
		case io.Reader:
			return ReadFunc(f.Read), true
		}
	case CallbackHeader:
		switch f := fn.(type) {
		case HeaderFunc:
			return keep(f, f == nil)
		case func([]byte) bool:
			return keep(HeaderFunc(f), f == nil)
		}
	case CallbackProgress:
		switch f := fn.(type) {
		case ProgressFunc:
			return keep(f, f == nil)
		case func(int64, int64, int64, int64) bool:
			return keep(ProgressFunc(f), f == nil)
		}
	case CallbackDebug:
		switch f := fn.(type) {
		case DebugFunc:
			return keep(f, f == nil)
		case func(native.InfoType, []byte):
			return keep(DebugFunc(f), f == nil)
		}
	}
	return nil, false
}

// RegisterCallback installs fn as the callback of kind, replacing any earlier
// one. fn must be the matching *Func type (or its underlying func type); the
// write slot also accepts an io.Writer and the read slot an io.Reader. A nil fn
// unregisters the slot.
func (e *Easy) RegisterCallback(kind CallbackKind, fn any) error {
	if err := e.usable(); err != nil {
		return err
	}
	if kind < 0 || kind >= numCallbacks {
		return badcurl.InvalidInput(0, "unknown callback kind %d", int(kind))
	}
	f, ok := closure(kind, fn)
	if !ok {
		return badcurl.InvalidInput(callbackOptions[kind].fn, "%T is not a %s callback", fn, kind)
	}

	if f == nil {
		if e.sh.slots[kind] == nil {
			return nil
		}
		if err := e.unregister(kind); err != nil {
			return err
		}
		e.sh.slots[kind] = nil
		return nil
	}

	s := &slot{kind: kind, sh: e.sh, fn: f}
	if err := e.register(s); err != nil {
		return err
	}
	// The old slot is dropped only after the engine points at the new one.
	e.sh.slots[kind] = s
	if kind == CallbackProgress {
		return e.SetOption(native.OptNoProgress, false)
	}
	return nil
}

// register points the engine at s. The token is set before the function so
// the engine never sees the trampoline paired with a stale token.
func (e *Easy) register(s *slot) error {
	opts := callbackOptions[s.kind]
	if code := e.engine.SetoptToken(e.handle(), opts.data, s.token()); code != native.OK {
		return e.optionError(opts.data, code)
	}
	if code := e.engine.SetoptFunc(e.handle(), opts.fn, trampolines[s.kind]); code != native.OK {
		return e.optionError(opts.fn, code)
	}
	return nil
}

func (e *Easy) unregister(kind CallbackKind) error {
	opts := callbackOptions[kind]
	if code := e.engine.SetoptFunc(e.handle(), opts.fn, nil); code != native.OK {
		return e.optionError(opts.fn, code)
	}
	if code := e.engine.SetoptToken(e.handle(), opts.data, nil); code != native.OK {
		return e.optionError(opts.data, code)
	}
	return nil
}

// WriteFunction registers the response body callback.
func (e *Easy) WriteFunction(fn WriteFunc) error {
	return e.RegisterCallback(CallbackWrite, fn)
}

// BodyWriter streams the response body into w. A nil w unregisters the write
// callback.
func (e *Easy) BodyWriter(w io.Writer) error {
	if w == nil {
		return e.RegisterCallback(CallbackWrite, nil)
	}
	return e.RegisterCallback(CallbackWrite, WriteFunc(w.Write))
}

// ReadFunction registers the request body callback.
func (e *Easy) ReadFunction(fn ReadFunc) error {
	return e.RegisterCallback(CallbackRead, fn)
}

// BodyReader uploads the request body from r. A nil r unregisters the read
// callback.
func (e *Easy) BodyReader(r io.Reader) error {
	if r == nil {
		return e.RegisterCallback(CallbackRead, nil)
	}
	return e.RegisterCallback(CallbackRead, ReadFunc(r.Read))
}

// HeaderFunction registers the response header callback.
func (e *Easy) HeaderFunction(fn HeaderFunc) error {
	return e.RegisterCallback(CallbackHeader, fn)
}

// ProgressFunction registers the progress callback and enables progress
// reporting.
func (e *Easy) ProgressFunction(fn ProgressFunc) error {
	return e.RegisterCallback(CallbackProgress, fn)
}

// DebugFunction registers the diagnostics callback. The engine only calls it
// for verbose handles.
func (e *Easy) DebugFunction(fn DebugFunc) error {
	return e.RegisterCallback(CallbackDebug, fn)
}
