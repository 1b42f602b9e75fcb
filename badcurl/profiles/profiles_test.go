package profiles_test

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

func TestGoldenFingerprints(t *testing.T) {
	testCases := []struct {
		id     profiles.ID
		ja3    string
		akamai string
	}{
		{
			id:     profiles.Chrome120,
			ja3:    "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53,0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513-65037,29-23-24,0",
			akamai: "1:65536;2:0;4:6291456;6:262144|15663105|0|m,a,s,p",
		},
		{
			id:     profiles.Chrome104,
			ja3:    "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53,0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513-21,29-23-24,0",
			akamai: "1:65536;3:1000;4:6291456;6:262144|15663105|0|m,a,s,p",
		},
		{
			id:     profiles.Firefox117,
			ja3:    "771,4865-4867-4866-49195-49199-52393-52392-49196-49200-49162-49161-49171-49172-156-157-47-53,0-23-65281-10-11-35-16-5-34-51-43-13-45-28-21,29-23-24-25-256-257,0",
			akamai: "1:65536;4:131072;5:16384|12517377|0|m,p,a,s",
		},
		{
			id:     profiles.Safari16_0,
			akamai: "4:4194304;3:100|10485760|0|m,s,p,a",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.id.String(), func(t *testing.T) {
			g := NewGomegaWithT(t)
			p := profiles.Lookup(tc.id)
			if tc.ja3 != "" {
				g.Expect(p.JA3()).To(Equal(tc.ja3))
			}
			g.Expect(p.Akamai()).To(Equal(tc.akamai))
		})
	}
}

func TestEveryProfileIsComplete(t *testing.T) {
	for _, id := range profiles.All() {
		t.Run(id.String(), func(t *testing.T) {
			g := NewGomegaWithT(t)
			p := profiles.Lookup(id)

			g.Expect(p.ID).To(Equal(id))
			g.Expect(p.TLS.ClientHello).ToNot(BeEmpty())
			g.Expect(p.UserAgent).To(HavePrefix("Mozilla/5.0"))
			g.Expect(p.HTTPVersion).To(Equal(native.HTTPVersion2TLS))

			_, err := fingerprint.CipherIDs(p.TLS.Ciphers)
			g.Expect(err).ToNot(HaveOccurred())
			_, err = fingerprint.CurveIDs(p.TLS.Curves)
			g.Expect(err).ToNot(HaveOccurred())
			_, err = fingerprint.SigAlgIDs(p.TLS.SigAlgs)
			g.Expect(err).ToNot(HaveOccurred())
			_, err = fingerprint.CertCompressionIDs(p.TLS.CertCompression)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(p.HTTP2.StreamWeight).To(BeNumerically(">=", 1))
			g.Expect(p.HTTP2.StreamWeight).To(BeNumerically("<=", 256))
			g.Expect(p.HTTP2.PseudoHeaderOrder).To(ConsistOf(fingerprint.PseudoHeaders))

			// Every default header must be named in the wire order.
			for _, h := range p.DefaultHeaders {
				name, _, ok := strings.Cut(h, ":")
				g.Expect(ok).To(BeTrue(), h)
				g.Expect(p.HeaderOrder).To(ContainElement(strings.ToLower(name)))
			}
			g.Expect(p.HeaderOrder).To(ContainElement("user-agent"))
		})
	}
}

func TestParseID(t *testing.T) {
	g := NewGomegaWithT(t)

	for _, name := range []string{"chrome120", "Chrome_120", "CHROME-120"} {
		id, err := profiles.ParseID(name)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(id).To(Equal(profiles.Chrome120))
	}

	id, err := profiles.ParseID("safari_ios_17.0")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(id).To(Equal(profiles.SafariIOS17_0))

	_, err = profiles.ParseID("netscape4")
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("chrome120"))

	g.Expect(profiles.Names()).To(HaveLen(len(profiles.All())))
	g.Expect(profiles.ID(0).String()).To(Equal("ID(0)"))
}
