package native

import (
	"errors"
	"io"
)

// DataFunc is the calling convention shared by the write, read and header
// callbacks: a buffer, its length, and the token registered with the matching
// *DATA option. Write and header callbacks return the number of bytes consumed;
// read callbacks return the number of bytes stored or ReadfuncAbort.
type DataFunc func(buf *byte, size uintptr, token Token) uintptr

// XferInfoFunc is the progress callback. A non-zero return aborts the transfer.
type XferInfoFunc func(token Token, dltotal, dlnow, ultotal, ulnow int64) int

// DebugFunc receives engine diagnostics. A non-zero return aborts the transfer.
type DebugFunc func(kind InfoType, buf *byte, size uintptr, token Token) int

// InfoType classifies debug callback data.
type InfoType int

const (
	InfoText InfoType = iota
	InfoHeaderIn
	InfoHeaderOut
	InfoDataIn
	InfoDataOut
)

func (t InfoType) String() string {
	switch t {
	case InfoText:
		return "text"
	case InfoHeaderIn:
		return "header-in"
	case InfoHeaderOut:
		return "header-out"
	case InfoDataIn:
		return "data-in"
	case InfoDataOut:
		return "data-out"
	default:
		return "unknown"
	}
}

// Callback sentinels.
const (
	WritefuncPause uintptr = 0x10000001
	WritefuncError uintptr = 0xFFFFFFFF
	ReadfuncAbort  uintptr = 0x10000000
	ReadfuncPause  uintptr = 0x10000001
)

// MaxWriteSize is the largest chunk handed to a write callback in one call.
const MaxWriteSize = 16 * 1024

// ErrReadAborted is returned by CallbackReader when the read callback aborts.
var ErrReadAborted = errors.New("native: read aborted by callback")

// ErrReadOverflow is returned by CallbackReader when the read callback claims to
// have produced more bytes than the buffer holds.
var ErrReadOverflow = errors.New("native: read callback returned more than requested")

// Callbacks holds the registered callbacks of one handle and delivers data to
// them with the engine's conventions. Engines embed it in their handle state.
type Callbacks struct {
	write      DataFunc
	writeData  Token
	read       DataFunc
	readData   Token
	header     DataFunc
	headerData Token
	xferInfo   XferInfoFunc
	xferData   Token
	debug      DebugFunc
	debugData  Token
}

// SetFunc stores fn for a function option. fn may be the named callback type,
// the equivalent unnamed func type, or nil to unregister.
func (c *Callbacks) SetFunc(opt Option, fn any) Code {
	switch opt {
	case OptWriteFunction, OptReadFunction, OptHeaderFunction:
		var f DataFunc
		switch v := fn.(type) {
		case nil:
		case DataFunc:
			f = v
		case func(*byte, uintptr, Token) uintptr:
			f = v
		default:
			return BadFunctionArgument
		}
		switch opt {
		case OptWriteFunction:
			c.write = f
		case OptReadFunction:
			c.read = f
		default:
			c.header = f
		}
	case OptXferInfoFunction:
		switch v := fn.(type) {
		case nil:
			c.xferInfo = nil
		case XferInfoFunc:
			c.xferInfo = v
		case func(Token, int64, int64, int64, int64) int:
			c.xferInfo = v
		default:
			return BadFunctionArgument
		}
	case OptDebugFunction:
		switch v := fn.(type) {
		case nil:
			c.debug = nil
		case DebugFunc:
			c.debug = v
		case func(InfoType, *byte, uintptr, Token) int:
			c.debug = v
		default:
			return BadFunctionArgument
		}
	default:
		return UnknownOption
	}
	return OK
}

// SetToken stores the user-data token for a *DATA option.
func (c *Callbacks) SetToken(opt Option, t Token) Code {
	switch opt {
	case OptWriteData:
		c.writeData = t
	case OptReadData:
		c.readData = t
	case OptHeaderData:
		c.headerData = t
	case OptXferInfoData:
		c.xferData = t
	case OptDebugData:
		c.debugData = t
	default:
		return UnknownOption
	}
	return OK
}

// HasRead reports whether a read callback is registered.
func (c *Callbacks) HasRead() bool { return c.read != nil }

// HasXferInfo reports whether a progress callback is registered.
func (c *Callbacks) HasXferInfo() bool { return c.xferInfo != nil }

// HasDebug reports whether a debug callback is registered.
func (c *Callbacks) HasDebug() bool { return c.debug != nil }

// Write hands p to the write callback in chunks of at most MaxWriteSize bytes.
// A callback consuming less than a whole chunk stops delivery with WriteError.
// Without a write callback the data is discarded.
func (c *Callbacks) Write(p []byte) Code {
	return deliver(c.write, c.writeData, p)
}

// Header hands one header line (including its CRLF) to the header callback.
func (c *Callbacks) Header(line []byte) Code {
	return deliver(c.header, c.headerData, line)
}

func deliver(fn DataFunc, token Token, p []byte) Code {
	for len(p) > 0 {
		n := min(len(p), MaxWriteSize)
		if fn != nil {
			if got := fn(&p[0], uintptr(n), token); got != uintptr(n) {
				return WriteError
			}
		}
		p = p[n:]
	}
	return OK
}

// XferInfo reports progress. A non-zero callback return yields AbortedByCallback.
func (c *Callbacks) XferInfo(dltotal, dlnow, ultotal, ulnow int64) Code {
	if c.xferInfo == nil {
		return OK
	}
	if c.xferInfo(c.xferData, dltotal, dlnow, ultotal, ulnow) != 0 {
		return AbortedByCallback
	}
	return OK
}

// Debug hands diagnostic data to the debug callback. A non-zero callback return
// yields AbortedByCallback.
func (c *Callbacks) Debug(kind InfoType, p []byte) Code {
	if c.debug == nil || len(p) == 0 {
		return OK
	}
	if c.debug(kind, &p[0], uintptr(len(p)), c.debugData) != 0 {
		return AbortedByCallback
	}
	return OK
}

// Reader adapts the read callback to an io.Reader for request bodies.
func (c *Callbacks) Reader() *CallbackReader {
	return &CallbackReader{cb: c}
}

// CallbackReader pulls request body bytes from a read callback.
type CallbackReader struct {
	cb   *Callbacks
	n    int64
	code Code
}

func (r *CallbackReader) Read(p []byte) (int, error) {
	if r.code != OK {
		return 0, ErrReadAborted
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.cb.read == nil {
		return 0, io.EOF
	}
	got := r.cb.read(&p[0], uintptr(len(p)), r.cb.readData)
	switch {
	case got == ReadfuncAbort || got == ReadfuncPause:
		r.code = AbortedByCallback
		return 0, ErrReadAborted
	case got > uintptr(len(p)):
		r.code = ReadError
		return 0, ErrReadOverflow
	case got == 0:
		return 0, io.EOF
	}
	r.n += int64(got)
	return int(got), nil
}

// Code reports why the reader stopped early, or OK.
func (r *CallbackReader) Code() Code { return r.code }

// BytesRead reports how many bytes the callback produced.
func (r *CallbackReader) BytesRead() int64 { return r.n }
