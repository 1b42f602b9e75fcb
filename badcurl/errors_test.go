package badcurl

import (
	"errors"
	"fmt"
	"io"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/native/nativetest"
)

func TestErrorSentinels(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		matches []error
		misses  []error
	}{
		{
			name:    "invalid input",
			err:     InvalidInput(native.OptURL, "bad url"),
			matches: []error{ErrInvalidInput},
			misses:  []error{ErrNative, ErrCallbackPanic, ErrPoisoned},
		},
		{
			name:    "native",
			err:     &Error{Kind: KindNative, Code: native.CouldntConnect},
			matches: []error{ErrNative},
			misses:  []error{ErrInvalidInput, ErrInitialization},
		},
		{
			name:    "panic",
			err:     CallbackPanic("write", "boom", nil, false),
			matches: []error{ErrCallbackPanic},
			misses:  []error{ErrPoisoned, ErrNative},
		},
		{
			name:    "poisoned",
			err:     CallbackPanic("write", "boom", nil, true),
			matches: []error{ErrCallbackPanic, ErrPoisoned},
		},
		{
			name:    "init",
			err:     &Error{Kind: KindInitialization, Code: native.FailedInit},
			matches: []error{ErrInitialization},
			misses:  []error{ErrNative},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGomegaWithT(t)
			wrapped := fmt.Errorf("doing things: %w", tt.err)
			for _, target := range tt.matches {
				g.Expect(errors.Is(wrapped, target)).To(BeTrue(), target.Error())
			}
			for _, target := range tt.misses {
				g.Expect(errors.Is(wrapped, target)).To(BeFalse(), target.Error())
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	g := NewGomegaWithT(t)

	g.Expect(InvalidInput(native.OptURL, "unsupported scheme %q", "ftp").Error()).
		To(Equal(`badcurl: invalid input for URL: unsupported scheme "ftp"`))
	g.Expect(InvalidInput(0, "handle is closed").Error()).
		To(Equal("badcurl: invalid input: handle is closed"))

	nerr := &Error{
		Kind:    KindNative,
		Code:    native.CouldntResolveHost,
		Message: "Couldn't resolve host name",
		Detail:  "lookup nope.invalid: no such host",
		Err:     io.ErrUnexpectedEOF,
	}
	g.Expect(nerr.Error()).To(Equal("badcurl: [6] Couldn't resolve host name: lookup nope.invalid: no such host: unexpected EOF"))
	g.Expect(errors.Is(nerr, io.ErrUnexpectedEOF)).To(BeTrue())

	g.Expect(CallbackPanic("header", "boom", nil, false).Error()).
		To(Equal("badcurl: callback panicked (header callback: boom)"))
	g.Expect(CallbackPanic("", 42, nil, true).Error()).
		To(ContainSubstring("call Reset"))
}

func TestFromCode(t *testing.T) {
	g := NewGomegaWithT(t)
	engine := nativetest.New()

	g.Expect(FromCode(engine, native.OK, "")).To(Succeed())

	err := FromCode(engine, native.OperationTimedout, "after 100 ms")
	g.Expect(err).To(MatchError(ErrNative))
	g.Expect(CodeOf(err)).To(Equal(native.OperationTimedout))
	g.Expect(CategoryOfError(err)).To(Equal(CategoryConnection))
	g.Expect(err.Error()).To(ContainSubstring("after 100 ms"))

	g.Expect(CodeOf(errors.New("plain"))).To(Equal(native.OK))
	g.Expect(CategoryOfError(InvalidInput(0, "x"))).To(BeZero())
}

func TestCategoryOf(t *testing.T) {
	tests := map[native.Code]Category{
		native.OK:                     0,
		native.CouldntResolveHost:     CategoryConnection,
		native.OperationTimedout:      CategoryConnection,
		native.SSLConnectError:        CategoryTLS,
		native.PeerFailedVerification: CategoryTLS,
		native.HTTPReturnedError:      CategoryProtocol,
		native.TooManyRedirects:       CategoryProtocol,
		native.WriteError:             CategoryAborted,
		native.AbortedByCallback:      CategoryAborted,
		native.OutOfMemory:            CategoryInternal,
		native.UnknownOption:          CategoryInternal,
	}
	for code, want := range tests {
		t.Run(code.String(), func(t *testing.T) {
			g := NewGomegaWithT(t)
			g.Expect(CategoryOf(code)).To(Equal(want))
		})
	}
	g := NewGomegaWithT(t)
	g.Expect(CategoryAborted.String()).To(Equal("aborted by callback"))
	g.Expect(Category(0).String()).To(Equal("none"))
}
