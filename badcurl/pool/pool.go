// Package pool keeps idle transfer handles for reuse across goroutines.
//
// A handle taken from the pool belongs to the caller until it is put back.
// Handles are reset on return, so per-request settings never leak between
// users, while the impersonation profile and connection-level options stay.
// New handles are impersonated with a profile chosen by the pool's rotation
// mode.
package pool

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl/easy"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

// RotationMode determines how profiles are chosen for new handles.
type RotationMode int

const (
	// RotationOff impersonates the first configured profile.
	RotationOff RotationMode = iota
	// RotationRandom picks a random profile for each new handle.
	RotationRandom
	// RotationSequential cycles through the profiles in order.
	RotationSequential
)

// DefaultIdleTTL is how long an idle handle is kept before it is closed.
const DefaultIdleTTL = 5 * time.Minute

// ErrClosed is returned by Get once the pool is closed.
var ErrClosed = errors.New("pool: closed")

// DefaultProfiles are rotated between when Options.Profiles is empty.
var DefaultProfiles = []profiles.ID{
	profiles.Chrome133,
	profiles.Chrome131,
	profiles.Chrome124,
	profiles.Firefox133,
	profiles.Safari16_0,
}

// Options configures a Pool.
type Options struct {
	// MaxIdle bounds the number of idle handles kept. Extra handles are closed
	// when put back.
	MaxIdle int
	// IdleTTL closes handles that sat idle for longer.
	IdleTTL time.Duration
	// CleanupInterval is how often expired handles are looked for.
	CleanupInterval time.Duration

	Rotation RotationMode
	// Profiles to impersonate. Nil disables impersonation when Rotation is
	// RotationOff and uses DefaultProfiles otherwise.
	Profiles          []profiles.ID
	AdjustHTTPVersion bool

	// Configure, if set, runs on every new handle after impersonation.
	Configure     func(*easy.Easy) error
	HandleOptions []easy.HandleOption
}

// DefaultOptions returns a pool configuration rotating randomly between
// DefaultProfiles.
func DefaultOptions() *Options {
	return &Options{
		MaxIdle:           8,
		IdleTTL:           DefaultIdleTTL,
		CleanupInterval:   time.Minute,
		Rotation:          RotationRandom,
		Profiles:          DefaultProfiles,
		AdjustHTTPVersion: true,
	}
}

type idleHandle struct {
	h        *easy.Easy
	lastUsed time.Time
}

// Pool is safe for concurrent use.
type Pool struct {
	opts Options

	mu      sync.Mutex
	idle    []idleHandle
	created int
	seq     int
	closed  bool

	stop chan struct{}
	done chan struct{}
}

// New returns a pool configured by opts (DefaultOptions when nil) and starts
// its cleanup goroutine. Call Close to stop it.
func New(opts *Options) *Pool {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultIdleTTL
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Minute
	}
	if len(o.Profiles) == 0 && o.Rotation != RotationOff {
		o.Profiles = DefaultProfiles
	}
	p := &Pool{
		opts: o,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.cleanupLoop()
	return p
}

// selectProfile picks the profile for a new handle. p.mu must be held.
func (p *Pool) selectProfile() (profiles.ID, bool) {
	list := p.opts.Profiles
	if len(list) == 0 {
		return 0, false
	}
	switch p.opts.Rotation {
	case RotationRandom:
		return list[rand.Intn(len(list))], true
	case RotationSequential:
		id := list[p.seq%len(list)]
		p.seq++
		return id, true
	default:
		return list[0], true
	}
}

// Get returns an idle handle, or a new one when none is idle.
func (p *Pool) Get() (*easy.Easy, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		h := p.idle[n-1].h
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return h, nil
	}
	id, impersonate := p.selectProfile()
	p.created++
	p.mu.Unlock()

	h := easy.New(p.opts.HandleOptions...)
	if impersonate {
		if err := h.Impersonate(id, p.opts.AdjustHTTPVersion); err != nil {
			_ = h.Close()
			return nil, err
		}
		klog.V(2).Infof("pool: new handle impersonating %s", id)
	}
	if p.opts.Configure != nil {
		if err := p.opts.Configure(h); err != nil {
			_ = h.Close()
			return nil, err
		}
	}
	return h, nil
}

// Put returns h to the pool. The handle is reset first; a handle that cannot
// be reset, or that does not fit, is closed.
func (p *Pool) Put(h *easy.Easy) {
	if h == nil {
		return
	}
	if err := h.Reset(); err != nil {
		klog.Warningf("pool: dropping handle that failed to reset: %v", err)
		_ = h.Close()
		return
	}

	p.mu.Lock()
	if p.closed || len(p.idle) >= max(p.opts.MaxIdle, 0) {
		p.mu.Unlock()
		_ = h.Close()
		return
	}
	p.idle = append(p.idle, idleHandle{h: h, lastUsed: time.Now()})
	p.mu.Unlock()
}

// Do runs fn with a pooled handle and puts the handle back afterwards.
func (p *Pool) Do(fn func(*easy.Easy) error) error {
	h, err := p.Get()
	if err != nil {
		return err
	}
	defer p.Put(h)
	return fn(h)
}

func (p *Pool) cleanupLoop() {
	defer close(p.done)
	ticker := time.NewTicker(p.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanup(time.Now())
		case <-p.stop:
			return
		}
	}
}

// cleanup closes handles idle since before now minus the TTL.
func (p *Pool) cleanup(now time.Time) {
	p.mu.Lock()
	var expired []*easy.Easy
	kept := p.idle[:0]
	for _, ih := range p.idle {
		if now.Sub(ih.lastUsed) > p.opts.IdleTTL {
			expired = append(expired, ih.h)
			continue
		}
		kept = append(kept, ih)
	}
	clear(p.idle[len(kept):])
	p.idle = kept
	p.mu.Unlock()

	for _, h := range expired {
		_ = h.Close()
	}
	if len(expired) > 0 {
		klog.V(2).Infof("pool: closed %d expired handles", len(expired))
	}
}

// Stats reports the number of idle handles and of handles created so far.
func (p *Pool) Stats() (idle, created int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), p.created
}

// Close stops the cleanup goroutine and closes every idle handle. Handles
// still out are closed when put back.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.stop)
	<-p.done

	var errs []error
	for _, ih := range idle {
		errs = append(errs, ih.h.Close())
	}
	return errors.Join(errs...)
}
