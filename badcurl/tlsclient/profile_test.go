package tlsclient

import (
	"testing"

	"github.com/bogdanfinn/fhttp/http2"
	tlsprofiles "github.com/bogdanfinn/tls-client/profiles"
	. "github.com/onsi/gomega"

	"github.com/ditsuke/go-badcurl/badcurl/native"
)

func TestProfileReplacesTemplate(t *testing.T) {
	g := NewGomegaWithT(t)
	cfg := clientConfig{
		hello: "chrome_120",
		tls:   tlsShape{ciphers: "TLS_AES_128_GCM_SHA256", extensions: "0-10-13-16-43-51"},
		h2:    h2Shape{settings: "1:4096;4:65535", windowUpdate: 1000, weight: 42, exclusive: true, pseudoOrder: "mpas"},
	}

	p, code, err := cfg.profile()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(code).To(Equal(native.OK))

	id := p.GetClientHelloId()
	g.Expect(id.Version).To(HaveSuffix("-custom"))
	spec, err := p.GetClientHelloSpec()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(spec.CipherSuites).To(HaveLen(2))
	g.Expect(spec.CipherSuites).To(ContainElement(uint16(0x1301)))

	g.Expect(p.GetSettingsOrder()).To(Equal([]http2.SettingID{1, 4}))
	g.Expect(p.GetSettings()).To(HaveKeyWithValue(http2.SettingID(4), uint32(65535)))
	g.Expect(p.GetPriorities()).To(BeEmpty())
	g.Expect(p.GetConnectionFlow()).To(Equal(uint32(1000)))
	g.Expect(p.GetHeaderPriority()).To(Equal(&http2.PriorityParam{Weight: 41, Exclusive: true}))
	g.Expect(p.GetPseudoHeaderOrder()).To(Equal([]string{":method", ":path", ":authority", ":scheme"}))
	g.Expect(profileAkamai(p)).To(Equal("1:4096;4:65535|1000|0|m,p,a,s"))
}

func TestProfileKeepsTemplateByDefault(t *testing.T) {
	g := NewGomegaWithT(t)
	template := tlsprofiles.MappedTLSClients["chrome_120"]

	p, code, err := clientConfig{hello: "chrome_120"}.profile()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(code).To(Equal(native.OK))
	g.Expect(p.GetClientHelloId().Client).To(Equal(template.GetClientHelloId().Client))
	g.Expect(p.GetClientHelloId().Version).To(Equal(template.GetClientHelloId().Version))
	g.Expect(profileAkamai(p)).To(Equal(profileAkamai(template)))
	g.Expect(p.GetHeaderPriority()).To(Equal(template.GetHeaderPriority()))
}

func TestProfileRejects(t *testing.T) {
	g := NewGomegaWithT(t)

	_, code, err := clientConfig{hello: "netscape_4"}.profile()
	g.Expect(code).To(Equal(native.SSLEngineNotFound))
	g.Expect(err).To(HaveOccurred())

	_, code, err = clientConfig{
		hello: "chrome_120",
		tls:   tlsShape{ciphers: "TLS_AES_128_GCM_SHA256", extensions: "0-10-99"},
	}.profile()
	g.Expect(code).To(Equal(native.NotBuiltIn))
	g.Expect(err).To(MatchError(ContainSubstring("99")))
}

func TestClientHelloJA3(t *testing.T) {
	g := NewGomegaWithT(t)
	hello := clientHello{ciphers: []uint16{0x1301}, curves: []uint16{29}, extensions: []uint16{0, 21}}

	g.Expect(hello.ja3(false)).To(Equal("771,4865,0-21,29,0"))
	g.Expect(hello.ja3(true)).To(Equal("771,2570-4865,2570-0-2570-21,2570-29,0"))
	g.Expect(hello.extensions).To(Equal([]uint16{0, 21}))

	hello.curves = []uint16{0x11ec, 29, 23}
	g.Expect(hello.keyShares(true)).To(Equal([]string{"GREASE", "X25519MLKEM768", "X25519"}))
	g.Expect(hello.keyShares(false)).To(Equal([]string{"X25519MLKEM768", "X25519"}))
}

func TestResolveDropsEmptyExtensions(t *testing.T) {
	g := NewGomegaWithT(t)

	hello, code, err := tlsShape{ciphers: "TLS_AES_128_GCM_SHA256", extensions: "0-16-17513-27"}.resolve()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(code).To(Equal(native.OK))
	g.Expect(hello.extensions).To(Equal([]uint16{0, 16}))

	hello, _, _ = tlsShape{
		ciphers:         "TLS_AES_128_GCM_SHA256",
		extensions:      "0-16-17513-27",
		alps:            true,
		certCompression: "brotli",
	}.resolve()
	g.Expect(hello.extensions).To(Equal([]uint16{0, 16, 17513, 27}))

	_, code, _ = tlsShape{ciphers: "NOT-A-CIPHER"}.resolve()
	g.Expect(code).To(Equal(native.SSLCipher))
}
