// Package easy is the transfer handle: one engine handle, its options, its
// callbacks and its impersonation profile.
//
// An Easy is not safe for concurrent use. It may be moved between goroutines
// but must only be used by one at a time; run parallel transfers on separate
// handles (see the pool and multi packages).
//
// Every method returns *badcurl.Error values. A panic inside a callback never
// unwinds through the engine: it is recovered at the boundary, the transfer is
// aborted and Perform returns a badcurl.KindCallbackPanic error. The handle is
// then poisoned and refuses further work until Reset, ResetAll or Close.
package easy

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/instrumentation"
	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

// Errors
const (
	ErrHandleClosed   = "handle is closed"
	ErrNoHandle       = "engine could not allocate a transfer handle"
	ErrCleanupPanic   = "engine panicked releasing the transfer handle"
	ErrUnknownProfile = "unknown impersonation profile"
)

// HandleOption configures an Easy at construction.
type HandleOption func(*Easy)

// WithLogger sets the logger used for the handle's diagnostics. The default is
// klog.Background().
func WithLogger(l logr.Logger) HandleOption {
	return func(e *Easy) {
		e.log = l
	}
}

// WithContext sets the parent context of the handle's transfer spans.
func WithContext(ctx context.Context) HandleOption {
	return func(e *Easy) {
		e.ctx = ctx
	}
}

// nativeRef owns the engine handle. It is shared between the Easy and its GC
// cleanup and releases the handle at most once.
type nativeRef struct {
	engine   native.Engine
	h        native.Handle
	released atomic.Bool
}

func (r *nativeRef) release() (err error) {
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = &badcurl.Error{
				Kind:    badcurl.KindNative,
				Code:    native.BadFunctionArgument,
				Message: ErrCleanupPanic,
				Payload: p,
			}
		}
	}()
	r.engine.EasyCleanup(r.h)
	return nil
}

// collect is the GC cleanup for handles that were never closed.
func (r *nativeRef) collect() {
	if err := r.release(); err != nil {
		klog.Errorf("badcurl: releasing unreachable handle %d: %v", r.h, err)
		return
	}
	klog.V(4).Infof("badcurl: released unreachable handle %d", r.h)
}

// Easy is a transfer handle.
type Easy struct {
	engine  native.Engine
	ref     *nativeRef
	cleanup runtime.Cleanup
	closed  bool

	sh       *shared
	settings settings
	profile  profiles.ID

	poison  *panicked
	lastErr error

	log logr.Logger
	ctx context.Context
}

// New allocates a transfer handle, initializing the process engine first if
// needed. It panics only if engine initialization failed, which is fatal.
func New(opts ...HandleOption) *Easy {
	engine := badcurl.Engine()
	h := engine.EasyInit()
	if h == 0 {
		panic(&badcurl.Error{Kind: badcurl.KindInitialization, Code: native.FailedInit, Message: ErrNoHandle})
	}

	e := &Easy{
		engine:   engine,
		ref:      &nativeRef{engine: engine, h: h},
		sh:       &shared{},
		settings: newSettings(),
		log:      klog.Background(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cleanup = runtime.AddCleanup(e, (*nativeRef).collect, e.ref)
	e.log.V(4).Info("allocated transfer handle", "handle", uint64(h))
	return e
}

func (e *Easy) handle() native.Handle { return e.ref.h }

// usable reports why the handle cannot take new work, if it cannot.
func (e *Easy) usable() error {
	if e.closed {
		return badcurl.InvalidInput(0, ErrHandleClosed)
	}
	if e.poison != nil {
		return e.poison.err(true)
	}
	return nil
}

func (e *Easy) optionError(opt native.Option, code native.Code) *badcurl.Error {
	return &badcurl.Error{
		Kind:    badcurl.KindNative,
		Code:    code,
		Message: e.engine.Strerror(code),
		Detail:  e.engine.ErrorDetail(e.handle()),
		Option:  opt,
	}
}

// Perform runs one blocking transfer with the current configuration. It may be
// called repeatedly; each call is a new request.
//
// A callback panic takes precedence over whatever the engine reported. After
// one, the handle is poisoned and Perform fails immediately with an error that
// matches badcurl.ErrPoisoned and carries the original payload.
func (e *Easy) Perform() error {
	if err := e.usable(); err != nil {
		e.lastErr = err
		return err
	}

	url := e.settings.str(native.OptURL)
	tt := instrumentation.StartTransfer(e.ctx, url, e.profileName())
	e.sh.panic, e.sh.cause = nil, nil
	e.log.V(2).Info("performing transfer", "url", url, "profile", e.profileName())

	code := e.engine.Perform(e.handle())

	var err error
	var category string
	if p := e.sh.panic; p != nil {
		e.sh.panic = nil
		e.poison = p
		err = p.err(false)
		instrumentation.RecordCallbackPanic(tt.Context(), p.callback.String())
		e.log.Error(err, "callback panicked, handle poisoned until reset", "callback", p.callback.String())
	} else if code != native.OK {
		err = &badcurl.Error{
			Kind:    badcurl.KindNative,
			Code:    code,
			Message: e.engine.Strerror(code),
			Detail:  e.engine.ErrorDetail(e.handle()),
			Err:     e.sh.cause,
		}
		category = badcurl.CategoryOf(code).String()
		e.log.V(2).Info("transfer failed", "code", int(code), "category", category, "error", err.Error())
	}
	e.sh.cause = nil

	status, _ := e.ResponseCode()
	tt.End(status, int(code), category, err)
	e.lastErr = err
	return err
}

// Reset prepares the handle for an unrelated request. It clears a poisoned
// state and the per-request settings (method, body, upload, extra headers,
// cookies), keeping the handle's target, timeouts, TLS and HTTP/2 shape,
// profile and callbacks.
func (e *Easy) Reset() error {
	if e.closed {
		return badcurl.InvalidInput(0, ErrHandleClosed)
	}
	e.clearFailure()
	e.engine.EasyReset(e.handle())
	e.settings.dropTransferScoped()
	return e.replay()
}

// ResetAll returns the handle to its freshly allocated state: every option,
// callback and the impersonation profile are cleared.
func (e *Easy) ResetAll() error {
	if e.closed {
		return badcurl.InvalidInput(0, ErrHandleClosed)
	}
	e.clearFailure()
	e.engine.EasyReset(e.handle())
	e.settings = newSettings()
	e.sh.slots = [numCallbacks]*slot{}
	e.profile = 0
	return nil
}

func (e *Easy) clearFailure() {
	if e.poison != nil {
		e.log.V(2).Info("clearing poisoned handle", "callback", e.poison.callback.String())
	}
	e.poison = nil
	e.lastErr = nil
	e.sh.panic, e.sh.cause = nil, nil
}

// replay re-applies the remembered settings and callbacks after an engine
// reset.
func (e *Easy) replay() error {
	for _, v := range e.settings.values() {
		if code := v.Apply(e.engine, e.handle()); code != native.OK {
			return e.optionError(v.Option(), code)
		}
	}
	for _, s := range e.sh.slots {
		if s == nil {
			continue
		}
		if err := e.register(s); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the engine handle. It is idempotent and never panics; using
// the handle afterwards returns an error.
func (e *Easy) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.cleanup.Stop()
	err := e.ref.release()
	e.sh.slots = [numCallbacks]*slot{}
	if err != nil {
		e.log.Error(err, "releasing transfer handle")
	}
	return err
}

// Poisoned reports whether a callback panic is waiting for Reset.
func (e *Easy) Poisoned() bool { return e.poison != nil }

// LastError is the error returned by the last Perform, or nil.
func (e *Easy) LastError() error { return e.lastErr }

// Profile reports the impersonation profile applied to the handle.
func (e *Easy) Profile() (profiles.ID, bool) { return e.profile, e.profile != 0 }

func (e *Easy) profileName() string {
	if e.profile == 0 {
		return ""
	}
	return e.profile.String()
}
