package badcurl

import (
	"sync"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/native/nativetest"
)

func TestInitializerRunsOnce(t *testing.T) {
	g := NewGomegaWithT(t)
	engine := nativetest.New()
	pi := newInitializer(engine)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- pi.ensure()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		g.Expect(err).ToNot(HaveOccurred())
	}
	g.Expect(engine.InitCalls()).To(Equal(int64(1)))
}

func TestInitializerFailureIsSticky(t *testing.T) {
	g := NewGomegaWithT(t)
	engine := nativetest.New()
	engine.InitCode = native.OutOfMemory
	pi := newInitializer(engine)

	err := pi.ensure()
	g.Expect(err).To(MatchError(ErrInitialization))
	g.Expect(CodeOf(err)).To(Equal(native.OutOfMemory))

	engine.InitCode = native.OK
	g.Expect(pi.ensure()).To(BeIdenticalTo(err))
	g.Expect(engine.InitCalls()).To(Equal(int64(1)))
}

type panickyInit struct{ native.Engine }

func (panickyInit) GlobalInit(int64) native.Code { panic("no ssl backend") }

func TestInitializerRecoversEnginePanics(t *testing.T) {
	g := NewGomegaWithT(t)
	pi := newInitializer(panickyInit{nativetest.New()})

	var err error
	g.Expect(func() { err = pi.ensure() }).ToNot(Panic())
	g.Expect(err).To(MatchError(ErrInitialization))
	g.Expect(err.Error()).To(ContainSubstring("no ssl backend"))
}

func TestProcessEngine(t *testing.T) {
	g := NewGomegaWithT(t)
	engine := nativetest.New()

	g.Expect(SetEngine(nil)).ToNot(Succeed())
	g.Expect(SetEngine(engine)).To(Succeed())
	g.Expect(Init()).To(Succeed())
	g.Expect(Engine()).To(BeIdenticalTo(engine))
	g.Expect(SetEngine(nativetest.New())).To(MatchError(ErrAlreadyInitialized))

	g.Expect(Version().Version).To(Equal("nativetest/0"))
	g.Expect(SupportsProtocol("https")).To(BeTrue())
	g.Expect(SupportsProtocol("gopher")).To(BeFalse())
}

// swapProcess installs pi as the process initializer for the rest of the test.
func swapProcess(t *testing.T, pi *initializer) {
	t.Helper()
	processMu.Lock()
	prev := process
	process = pi
	processMu.Unlock()
	t.Cleanup(func() {
		processMu.Lock()
		process = prev
		processMu.Unlock()
	})
}

// slowInit holds GlobalInit until release is closed.
type slowInit struct {
	native.Engine
	entered chan struct{}
	release chan struct{}
}

func (s *slowInit) GlobalInit(flags int64) native.Code {
	close(s.entered)
	<-s.release
	return s.Engine.GlobalInit(flags)
}

func TestSetEngineWhileInitRuns(t *testing.T) {
	g := NewGomegaWithT(t)
	first := &slowInit{Engine: nativetest.New(), entered: make(chan struct{}), release: make(chan struct{})}
	swapProcess(t, newInitializer(first))

	done := make(chan error, 1)
	go func() { done <- Init() }()
	<-first.entered

	g.Expect(SetEngine(nativetest.New())).To(MatchError(ErrAlreadyInitialized))
	close(first.release)
	g.Expect(<-done).To(Succeed())
	g.Expect(Engine()).To(BeIdenticalTo(first))
}

func TestSetEngineBeforeInit(t *testing.T) {
	g := NewGomegaWithT(t)
	swapProcess(t, newInitializer(nativetest.New()))

	replacement := nativetest.New()
	g.Expect(SetEngine(replacement)).To(Succeed())
	g.Expect(Engine()).To(BeIdenticalTo(replacement))
}
