package badcurl

import (
	"errors"
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/tlsclient"
)

// ErrAlreadyInitialized is returned by SetEngine once the process engine has
// been initialized.
var ErrAlreadyInitialized = errors.New("badcurl: engine already initialized")

// initializer runs an engine's GlobalInit exactly once. It has no teardown:
// global cleanup is unsafe while any goroutine may still hold a handle.
type initializer struct {
	engine native.Engine
	once   sync.Once
	err    error

	// started is set, under processMu, once a caller has been handed the
	// initializer. The engine can no longer be replaced from then on.
	started bool
}

func newInitializer(engine native.Engine) *initializer {
	return &initializer{engine: engine}
}

// ensure blocks until GlobalInit has run and returns its outcome. Every caller
// observes the same result.
func (i *initializer) ensure() error {
	i.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				i.err = &Error{
					Kind:    KindInitialization,
					Code:    native.FailedInit,
					Message: fmt.Sprintf("engine panicked during global init: %v", r),
				}
			}
		}()
		if code := i.engine.GlobalInit(native.GlobalDefault); code != native.OK {
			i.err = &Error{Kind: KindInitialization, Code: code, Message: i.engine.Strerror(code)}
			klog.Errorf("badcurl: global init failed: %v", i.err)
			return
		}
		klog.V(2).Infof("badcurl: engine initialized (%s)", i.engine.Version().Version)
	})
	return i.err
}

var (
	processMu sync.Mutex
	process   = newInitializer(tlsclient.New())
)

func current() *initializer {
	processMu.Lock()
	defer processMu.Unlock()
	process.started = true
	return process
}

// SetEngine replaces the process engine. It must be called before the first
// Init (or the first handle). Once Init has been entered, even while it is
// still running, it returns ErrAlreadyInitialized.
func SetEngine(engine native.Engine) error {
	if engine == nil {
		return errors.New("badcurl: nil engine")
	}
	processMu.Lock()
	defer processMu.Unlock()
	if process.started {
		return ErrAlreadyInitialized
	}
	process = newInitializer(engine)
	return nil
}

// Init initializes the process engine. It is idempotent and safe for concurrent
// use; exactly one caller runs the engine's global setup and all callers wait
// for it. A non-nil result is a KindInitialization *Error and is fatal: callers
// should abort rather than continue without the engine.
//
// Handles call Init lazily, so calling it explicitly is only needed to surface
// the failure early, e.g. at the top of main before other goroutines start.
func Init() error {
	return current().ensure()
}

// Engine initializes and returns the process engine. It panics with the
// initialization error if setup failed.
func Engine() native.Engine {
	pi := current()
	if err := pi.ensure(); err != nil {
		panic(err)
	}
	return pi.engine
}
