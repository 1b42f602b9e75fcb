// Package multi drives several transfer handles at once and reports their
// results as they complete.
//
// Each added handle performs on its own goroutine. The Multi owns a handle
// from Add until its result is returned by Poll or the handle is given back by
// Remove; the caller must not touch it in between.
package multi

import (
	"slices"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl/easy"
)

// Token identifies a handle added to a Multi.
type Token uint64

// Result is the outcome of one completed transfer.
type Result struct {
	Token  Token
	Handle *easy.Easy
	// Err is what Handle.Perform returned.
	Err error
}

type transfer struct {
	h    *easy.Easy
	err  error
	done chan struct{}
}

// Multi is safe for concurrent use.
type Multi struct {
	mu       sync.Mutex
	next     Token
	running  map[Token]*transfer
	finished []Token
	wake     chan struct{}
}

// New returns an empty Multi.
func New() *Multi {
	return &Multi{
		running: make(map[Token]*transfer),
		wake:    make(chan struct{}, 1),
	}
}

// Add starts h's transfer and returns the token its result will carry.
func (m *Multi) Add(h *easy.Easy) Token {
	m.mu.Lock()
	m.next++
	tok := m.next
	t := &transfer{h: h, done: make(chan struct{})}
	m.running[tok] = t
	m.mu.Unlock()

	klog.V(4).Infof("multi: started transfer %d", tok)
	go func() {
		t.err = h.Perform()
		m.mu.Lock()
		m.finished = append(m.finished, tok)
		m.mu.Unlock()
		close(t.done)
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}()
	return tok
}

// Poll waits up to timeout for at least one transfer to finish and returns
// every result available by then, in completion order. It returns nil at once
// when no transfer is in flight.
func (m *Multi) Poll(timeout time.Duration) []Result {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if len(m.finished) > 0 {
			results := m.collect()
			m.mu.Unlock()
			return results
		}
		idle := len(m.running) == 0
		m.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-m.wake:
		case <-timer.C:
			return nil
		}
	}
}

// collect drains finished transfers. m.mu must be held.
func (m *Multi) collect() []Result {
	results := make([]Result, 0, len(m.finished))
	for _, tok := range m.finished {
		t, ok := m.running[tok]
		if !ok {
			continue
		}
		delete(m.running, tok)
		results = append(results, Result{Token: tok, Handle: t.h, Err: t.err})
	}
	m.finished = m.finished[:0]
	return results
}

// Remove takes the handle for tok back, waiting for its transfer to finish if
// it is still running. The transfer's result is discarded.
func (m *Multi) Remove(tok Token) (*easy.Easy, bool) {
	m.mu.Lock()
	t, ok := m.running[tok]
	if ok {
		delete(m.running, tok)
		m.finished = slices.DeleteFunc(m.finished, func(f Token) bool { return f == tok })
	}
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	<-t.done
	klog.V(4).Infof("multi: removed transfer %d", tok)
	return t.h, true
}

// Len reports how many handles the Multi holds, running or finished.
func (m *Multi) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}
