package easy

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

func appliedOptions(h *Easy) []native.Option {
	var opts []native.Option
	for _, c := range engine.Calls() {
		if c.Handle == h.handle() {
			opts = append(opts, c.Option)
		}
	}
	return opts
}

func TestImpersonateAppliesStagesInOrder(t *testing.T) {
	g := NewGomegaWithT(t)
	h := newHandle(t)
	engine.ResetCalls()

	g.Expect(h.Impersonate(profiles.Chrome120, true)).To(Succeed())
	g.Expect(appliedOptions(h)).To(Equal([]native.Option{
		native.OptSSLClientHello,
		native.OptSSLCipherList,
		native.OptSSLECCurves,
		native.OptSSLSigHashAlgs,
		native.OptTLSExtensionOrder,
		native.OptALPN,
		native.OptSSLEnableALPS,
		native.OptSSLCertCompression,
		native.OptSSLPermuteExtensions,
		native.OptHTTP2Settings,
		native.OptHTTP2WindowUpdate,
		native.OptHTTP2PseudoHeadersOrder,
		native.OptHTTP2StreamWeight,
		native.OptHTTP2StreamExclusive,
		native.OptHTTPBaseHeader,
		native.OptHTTPHeaderOrder,
		native.OptUserAgent,
		native.OptHTTPVersion,
	}))

	id, ok := h.Profile()
	g.Expect(ok).To(BeTrue())
	g.Expect(id).To(Equal(profiles.Chrome120))

	p := profiles.Lookup(profiles.Chrome120)
	fp, err := h.TLSFingerprint()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(fp).To(Equal("chrome_120|" + fingerprint.FormatExtensionOrder(p.TLS.Extensions)))

	ua, _ := engine.Option(h.handle(), native.OptUserAgent)
	g.Expect(ua).To(Equal(p.UserAgent))
	version, _ := engine.Option(h.handle(), native.OptHTTPVersion)
	g.Expect(version).To(Equal(native.HTTPVersion2TLS))
}

func TestImpersonateWithoutHTTPVersion(t *testing.T) {
	g := NewGomegaWithT(t)
	h := newHandle(t)
	engine.ResetCalls()

	g.Expect(h.Impersonate(profiles.Firefox117, false)).To(Succeed())
	g.Expect(appliedOptions(h)).ToNot(ContainElement(native.OptHTTPVersion))
	g.Expect(appliedOptions(h)).To(HaveLen(17))
}

func TestImpersonateSurvivesReset(t *testing.T) {
	g := NewGomegaWithT(t)
	h := newHandle(t)

	g.Expect(h.Impersonate(profiles.Safari16_0, false)).To(Succeed())
	g.Expect(h.Reset()).To(Succeed())

	hello, ok := engine.Option(h.handle(), native.OptSSLClientHello)
	g.Expect(ok).To(BeTrue())
	g.Expect(hello).To(Equal("safari_16_0"))
	id, _ := h.Profile()
	g.Expect(id).To(Equal(profiles.Safari16_0))

	g.Expect(h.ResetAll()).To(Succeed())
	_, ok = h.Profile()
	g.Expect(ok).To(BeFalse())
	_, ok = engine.Option(h.handle(), native.OptSSLClientHello)
	g.Expect(ok).To(BeFalse())
}

func TestImpersonateUnwindsOnEngineFailure(t *testing.T) {
	g := NewGomegaWithT(t)
	h := newHandle(t)

	g.Expect(h.UserAgent("custom/1")).To(Succeed())
	engine.FailOptions[native.OptHTTPHeaderOrder] = native.NotBuiltIn

	err := h.Impersonate(profiles.Chrome120, false)
	e := asError(g, err)
	g.Expect(e.Kind).To(Equal(badcurl.KindNative))
	g.Expect(e.Code).To(Equal(native.NotBuiltIn))
	g.Expect(e.Option).To(Equal(native.OptHTTPHeaderOrder))

	for _, opt := range []native.Option{native.OptSSLClientHello, native.OptSSLCipherList, native.OptHTTP2Settings, native.OptHTTPBaseHeader} {
		_, ok := engine.Option(h.handle(), opt)
		g.Expect(ok).To(BeFalse(), opt.String())
	}
	ua, _ := engine.Option(h.handle(), native.OptUserAgent)
	g.Expect(ua).To(Equal("custom/1"))
	_, ok := h.Profile()
	g.Expect(ok).To(BeFalse())
}

func TestFailedImpersonationKeepsThePreviousProfile(t *testing.T) {
	g := NewGomegaWithT(t)
	h := newHandle(t)

	g.Expect(h.Impersonate(profiles.Chrome120, false)).To(Succeed())
	engine.FailOptions[native.OptUserAgent] = native.OutOfMemory

	g.Expect(h.Impersonate(profiles.Firefox117, false)).To(MatchError(badcurl.ErrNative))

	id, _ := h.Profile()
	g.Expect(id).To(Equal(profiles.Chrome120))
	hello, _ := engine.Option(h.handle(), native.OptSSLClientHello)
	g.Expect(hello).To(Equal("chrome_120"))
	ciphers, _ := engine.Option(h.handle(), native.OptSSLCipherList)
	g.Expect(ciphers).To(Equal(h.settings.str(native.OptSSLCipherList)))
}

func TestImpersonateUnknownProfile(t *testing.T) {
	g := NewGomegaWithT(t)
	h := newHandle(t)
	engine.ResetCalls()

	for _, id := range []profiles.ID{0, -1, 999} {
		err := h.Impersonate(id, true)
		g.Expect(err).To(MatchError(badcurl.ErrInvalidInput))
		g.Expect(err.Error()).To(ContainSubstring(ErrUnknownProfile))
	}
	g.Expect(engine.Calls()).To(BeEmpty())
}
