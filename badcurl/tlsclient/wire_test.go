package tlsclient_test

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/ditsuke/go-badcurl/badcurl/easy"
	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

// seen is what a bare HTTP/2 server observed of the first connection made to
// it.
type seen struct {
	conn net.Conn
	err  error

	ciphers    []uint16
	extensions []uint16
	curves     []uint16
	sigAlgs    []uint16
	alpn       []string

	settingsOrder []http2.SettingID
	settings      map[http2.SettingID]uint32
	window        uint32
	priority      http2.PriorityParam
	pseudo        []string
}

func greaseFree(ids []uint16) []uint16 {
	return lo.Reject(ids, func(id uint16, _ int) bool { return id&0x0f0f == 0x0a0a })
}

// listenH2 starts a TLS listener that records the ClientHello and HTTP/2
// preface of one connection and answers its first request with 200.
func listenH2(t *testing.T) (string, <-chan seen) {
	t.Helper()
	certs := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(certs.Close)

	hellos := make(chan seen, 1)
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: certs.TLS.Certificates,
		NextProtos:   []string{"h2"},
		GetConfigForClient: func(info *tls.ClientHelloInfo) (*tls.Config, error) {
			s := seen{
				ciphers:    slices.Clone(info.CipherSuites),
				extensions: slices.Clone(info.Extensions),
				alpn:       slices.Clone(info.SupportedProtos),
			}
			for _, c := range info.SupportedCurves {
				s.curves = append(s.curves, uint16(c))
			}
			for _, a := range info.SignatureSchemes {
				s.sigAlgs = append(s.sigAlgs, uint16(a))
			}
			select {
			case hellos <- s:
			default:
			}
			return nil, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan seen, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			out <- seen{err: err}
			return
		}
		s, err := serveH2(conn.(*tls.Conn), hellos)
		s.conn, s.err = conn, err
		out <- s
	}()
	return "https://" + ln.Addr().String() + "/", out
}

func serveH2(conn *tls.Conn, hellos <-chan seen) (seen, error) {
	if err := conn.Handshake(); err != nil {
		return seen{}, err
	}
	s := <-hellos
	if proto := conn.ConnectionState().NegotiatedProtocol; proto != "h2" {
		return s, fmt.Errorf("negotiated %q", proto)
	}
	preface := make([]byte, len(http2.ClientPreface))
	if _, err := io.ReadFull(conn, preface); err != nil {
		return s, err
	}
	if string(preface) != http2.ClientPreface {
		return s, errors.New("bad client preface")
	}

	fr := http2.NewFramer(conn, conn)
	s.settings = make(map[http2.SettingID]uint32)
	for {
		f, err := fr.ReadFrame()
		if err != nil {
			return s, err
		}
		switch f := f.(type) {
		case *http2.SettingsFrame:
			if f.IsAck() {
				continue
			}
			_ = f.ForeachSetting(func(setting http2.Setting) error {
				s.settingsOrder = append(s.settingsOrder, setting.ID)
				s.settings[setting.ID] = setting.Val
				return nil
			})
		case *http2.WindowUpdateFrame:
			if f.StreamID == 0 {
				s.window = f.Increment
			}
		case *http2.HeadersFrame:
			s.priority = f.Priority
			fields, err := hpack.NewDecoder(4096, nil).DecodeFull(f.HeaderBlockFragment())
			if err != nil {
				return s, err
			}
			for _, field := range fields {
				if field.IsPseudo() {
					s.pseudo = append(s.pseudo, field.Name)
				}
			}
			return s, respond(fr, f.StreamID)
		}
	}
}

func respond(fr *http2.Framer, stream uint32) error {
	var block bytes.Buffer
	enc := hpack.NewEncoder(&block)
	_ = enc.WriteField(hpack.HeaderField{Name: ":status", Value: "200"})
	_ = enc.WriteField(hpack.HeaderField{Name: "content-length", Value: "0"})
	if err := fr.WriteSettings(); err != nil {
		return err
	}
	if err := fr.WriteSettingsAck(); err != nil {
		return err
	}
	return fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      stream,
		BlockFragment: block.Bytes(),
		EndStream:     true,
		EndHeaders:    true,
	})
}

func TestImpersonationOnTheWire(t *testing.T) {
	g := NewGomegaWithT(t)
	url, result := listenH2(t)
	p := profiles.Lookup(profiles.Chrome120)

	h := easy.New()
	t.Cleanup(func() { _ = h.Close() })
	g.Expect(h.Impersonate(profiles.Chrome120, true)).To(Succeed())
	g.Expect(h.SSLVerifyPeer(false)).To(Succeed())
	g.Expect(h.Timeout(10 * time.Second)).To(Succeed())
	g.Expect(h.URL(url)).To(Succeed())
	g.Expect(h.Perform()).To(Succeed())
	g.Expect(h.ResponseCode()).To(Equal(200))

	var s seen
	g.Eventually(result, 5*time.Second).Should(Receive(&s))
	if s.conn != nil {
		defer s.conn.Close()
	}
	g.Expect(s.err).ToNot(HaveOccurred())

	ciphers, err := fingerprint.CipherIDs(p.TLS.Ciphers)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(greaseFree(s.ciphers)).To(Equal(ciphers))
	g.Expect(s.ciphers[0] & 0x0f0f).To(Equal(uint16(0x0a0a)))

	curves, err := fingerprint.CurveIDs(p.TLS.Curves)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(greaseFree(s.curves)).To(Equal(curves))
	sigAlgs, err := fingerprint.SigAlgIDs(p.TLS.SigAlgs)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(s.sigAlgs).To(Equal(sigAlgs))
	g.Expect(s.alpn).To(Equal(p.TLS.ALPN))

	// server_name is left out for an IP literal; the rest may be permuted.
	want := lo.Without(p.TLS.Extensions, 0)
	g.Expect(greaseFree(s.extensions)).To(ConsistOf(want))

	var order []uint16
	for _, id := range s.settingsOrder {
		order = append(order, uint16(id))
	}
	g.Expect(order).To(Equal(lo.Map(p.HTTP2.Settings, func(st fingerprint.Setting, _ int) uint16 { return st.ID })))
	for _, st := range p.HTTP2.Settings {
		g.Expect(s.settings).To(HaveKeyWithValue(http2.SettingID(st.ID), st.Value))
	}
	g.Expect(s.window).To(Equal(p.HTTP2.WindowUpdate))
	g.Expect(s.priority.Weight).To(Equal(uint8(p.HTTP2.StreamWeight - 1)))
	g.Expect(s.priority.Exclusive).To(Equal(p.HTTP2.StreamExclusive))
	g.Expect(s.pseudo).To(Equal(p.HTTP2.PseudoHeaderOrder))

	ja3, err := h.TLSFingerprint()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(ja3).To(Equal(p.JA3()))
	akamai, err := h.HTTP2Fingerprint()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(akamai).To(Equal(p.Akamai()))
}
