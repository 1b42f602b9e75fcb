// Package nativetest provides an in-memory native.Engine for tests. It records
// every option call, counts global initialization and serves a scripted
// response through the registered callbacks with the same conventions as the
// production engine.
package nativetest

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// Response is what Perform delivers.
type Response struct {
	Status  int
	Headers []string
	Body    []byte
	// ChunkSize splits Body into several write deliveries. Zero delivers the
	// body through a single Callbacks.Write (which still caps chunks at
	// native.MaxWriteSize).
	ChunkSize int
	// Code, when non-zero, is returned by Perform after the body is delivered.
	Code native.Code
	// FailBefore, when non-zero, is returned by Perform before anything is
	// delivered.
	FailBefore native.Code
}

// Call is one recorded option call.
type Call struct {
	Handle native.Handle
	Option native.Option
	Value  any
}

// Engine is a scriptable native.Engine. The zero value is not usable; call New.
type Engine struct {
	mu sync.Mutex

	initCalls atomic.Int64
	// InitCode is returned by GlobalInit.
	InitCode native.Code

	// Response is served by every Perform.
	Response Response

	// FailOptions makes the named options fail with the given code.
	FailOptions map[native.Option]native.Code

	next    native.Handle
	handles map[native.Handle]*handle
	calls   []Call
	freed   []native.Handle
}

type handle struct {
	opts     map[native.Option]any
	cb       native.Callbacks
	performs int
	uploaded []byte
	code     int64
	detail   string
	writes   int
}

// New returns an engine serving a 200 response with an empty body.
func New() *Engine {
	return &Engine{
		Response:    Response{Status: 200},
		FailOptions: make(map[native.Option]native.Code),
		handles:     make(map[native.Handle]*handle),
	}
}

// InitCalls reports how many times GlobalInit ran.
func (e *Engine) InitCalls() int64 { return e.initCalls.Load() }

func (e *Engine) GlobalInit(int64) native.Code {
	e.initCalls.Add(1)
	return e.InitCode
}

func (e *Engine) EasyInit() native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.handles[e.next] = &handle{opts: make(map[native.Option]any)}
	return e.next
}

func (e *Engine) EasyCleanup(h native.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handles, h)
	e.freed = append(e.freed, h)
}

func (e *Engine) EasyReset(h native.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.handles[h]; ok {
		st.opts = make(map[native.Option]any)
		st.cb = native.Callbacks{}
	}
}

func (e *Engine) setopt(h native.Handle, opt native.Option, kind native.ValueKind, v any) (*handle, native.Code) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Handle: h, Option: opt, Value: v})
	st, ok := e.handles[h]
	if !ok {
		return nil, native.BadFunctionArgument
	}
	if !opt.Known() {
		return nil, native.UnknownOption
	}
	if opt.Kind() != kind {
		return nil, native.BadFunctionArgument
	}
	if code, ok := e.FailOptions[opt]; ok {
		return nil, code
	}
	return st, native.OK
}

func (e *Engine) SetoptLong(h native.Handle, opt native.Option, v int64) native.Code {
	kind := native.KindLong
	if opt.Kind() == native.KindOffT {
		kind = native.KindOffT
	}
	st, code := e.setopt(h, opt, kind, v)
	if code == native.OK {
		st.opts[opt] = v
	}
	return code
}

func (e *Engine) SetoptString(h native.Handle, opt native.Option, v string) native.Code {
	st, code := e.setopt(h, opt, native.KindString, v)
	if code != native.OK {
		return code
	}
	if v == "" {
		delete(st.opts, opt)
	} else {
		st.opts[opt] = v
	}
	return code
}

func (e *Engine) SetoptSlist(h native.Handle, opt native.Option, v []string) native.Code {
	st, code := e.setopt(h, opt, native.KindSlist, v)
	if code != native.OK {
		return code
	}
	if v == nil {
		delete(st.opts, opt)
	} else {
		st.opts[opt] = append([]string(nil), v...)
	}
	return code
}

func (e *Engine) SetoptFunc(h native.Handle, opt native.Option, fn any) native.Code {
	st, code := e.setopt(h, opt, native.KindFunc, fn)
	if code != native.OK {
		return code
	}
	return st.cb.SetFunc(opt, fn)
}

func (e *Engine) SetoptToken(h native.Handle, opt native.Option, t native.Token) native.Code {
	st, code := e.setopt(h, opt, native.KindToken, t)
	if code != native.OK {
		return code
	}
	return st.cb.SetToken(opt, t)
}

func (e *Engine) handle(h native.Handle) *handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[h]
}

// Perform serves Response through the registered callbacks.
func (e *Engine) Perform(h native.Handle) native.Code {
	st := e.handle(h)
	if st == nil {
		return native.BadFunctionArgument
	}
	st.performs++
	st.detail = ""
	st.code = 0
	st.writes = 0
	resp := e.Response

	code := e.serve(st, resp)
	if code != native.OK && st.detail == "" {
		st.detail = native.Strerror(code)
	}
	return code
}

func (e *Engine) serve(st *handle, resp Response) native.Code {
	url, _ := st.opts[native.OptURL].(string)
	if url == "" {
		return native.URLMalformat
	}
	if verbose, _ := st.opts[native.OptVerbose].(int64); verbose == 1 {
		if code := st.cb.Debug(native.InfoText, []byte("Trying "+url+"\n")); code != native.OK {
			return code
		}
	}
	if resp.FailBefore != native.OK {
		return resp.FailBefore
	}

	if upload, _ := st.opts[native.OptUpload].(int64); upload == 1 {
		r := st.cb.Reader()
		body, err := io.ReadAll(r)
		st.uploaded = body
		if err != nil {
			if r.Code() != native.OK {
				return r.Code()
			}
			return native.ReadError
		}
	} else if fields, ok := st.opts[native.OptPostFields].(string); ok {
		st.uploaded = []byte(fields)
	}

	st.code = int64(resp.Status)
	status := fmt.Sprintf("HTTP/1.1 %d %s\r\n", resp.Status, statusText(resp.Status))
	if code := st.cb.Header([]byte(status)); code != native.OK {
		return code
	}
	for _, line := range resp.Headers {
		if code := st.cb.Header([]byte(line + "\r\n")); code != native.OK {
			return code
		}
	}
	if code := st.cb.Header([]byte("\r\n")); code != native.OK {
		return code
	}

	if fail, _ := st.opts[native.OptFailOnError].(int64); fail == 1 && resp.Status >= 400 {
		return native.HTTPReturnedError
	}

	progress := st.cb.HasXferInfo()
	if noProgress, ok := st.opts[native.OptNoProgress].(int64); ok && noProgress == 1 {
		progress = false
	}
	total := int64(len(resp.Body))
	if progress {
		if code := st.cb.XferInfo(total, 0, 0, 0); code != native.OK {
			return code
		}
	}

	chunk := resp.ChunkSize
	if chunk <= 0 {
		chunk = len(resp.Body)
	}
	var sent int64
	for body := resp.Body; len(body) > 0; {
		n := min(chunk, len(body))
		st.writes++
		if code := st.cb.Write(body[:n]); code != native.OK {
			return code
		}
		body = body[n:]
		sent += int64(n)
		if progress {
			if code := st.cb.XferInfo(total, sent, 0, 0); code != native.OK {
				return code
			}
		}
	}
	return resp.Code
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return "Status"
	}
}

func (e *Engine) Getinfo(h native.Handle, info native.Info) (any, native.Code) {
	st := e.handle(h)
	if st == nil {
		return nil, native.BadFunctionArgument
	}
	switch info {
	case native.InfoResponseCode:
		return st.code, native.OK
	case native.InfoEffectiveURL:
		url, _ := st.opts[native.OptURL].(string)
		return url, native.OK
	case native.InfoSizeUpload:
		return int64(len(st.uploaded)), native.OK
	case native.InfoTLSFingerprint:
		return e.fingerprint(st), native.OK
	}
	return nil, native.UnknownOption
}

func (e *Engine) fingerprint(st *handle) string {
	hello, _ := st.opts[native.OptSSLClientHello].(string)
	order, _ := st.opts[native.OptTLSExtensionOrder].(string)
	return hello + "|" + order
}

func (e *Engine) ErrorDetail(h native.Handle) string {
	if st := e.handle(h); st != nil {
		return st.detail
	}
	return ""
}

func (e *Engine) Strerror(c native.Code) string { return native.Strerror(c) }

func (e *Engine) Version() native.VersionInfo {
	return native.VersionInfo{Version: "nativetest/0", Protocols: []string{"http", "https"}}
}

// Calls returns every option call made so far, in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// ResetCalls forgets recorded option calls.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

// Option returns the value currently set for opt on h.
func (e *Engine) Option(h native.Handle, opt native.Option) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.handles[h]
	if !ok {
		return nil, false
	}
	v, ok := st.opts[opt]
	return v, ok
}

// Options dumps the options set on h as "NAME=value" lines, sorted.
func (e *Engine) Options(h native.Handle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.handles[h]
	if !ok {
		return ""
	}
	lines := make([]string, 0, len(st.opts))
	for opt, v := range st.opts {
		if opt.Kind() == native.KindFunc || opt.Kind() == native.KindToken {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s=%v", opt, v))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// Performs reports how many times Perform ran on h.
func (e *Engine) Performs(h native.Handle) int {
	if st := e.handle(h); st != nil {
		return st.performs
	}
	return 0
}

// Writes reports how many body chunks the last Perform on h attempted to write.
func (e *Engine) Writes(h native.Handle) int {
	if st := e.handle(h); st != nil {
		return st.writes
	}
	return 0
}

// Uploaded returns the request body the last Perform on h read.
func (e *Engine) Uploaded(h native.Handle) []byte {
	if st := e.handle(h); st != nil {
		return bytes.Clone(st.uploaded)
	}
	return nil
}

// Live reports whether h is allocated.
func (e *Engine) Live(h native.Handle) bool { return e.handle(h) != nil }

// Freed returns the handles released so far, in order.
func (e *Engine) Freed() []native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]native.Handle(nil), e.freed...)
}
