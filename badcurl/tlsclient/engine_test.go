package tlsclient

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"unsafe"

	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// recorder collects what the engine hands to the write and header callbacks.
type recorder struct {
	body    []byte
	headers []string
	limit   int
}

func onWrite(buf *byte, size uintptr, token native.Token) uintptr {
	r := (*recorder)(token)
	if r.limit > 0 && len(r.body)+int(size) > r.limit {
		return 0
	}
	r.body = append(r.body, unsafe.Slice(buf, size)...)
	return size
}

func onHeader(buf *byte, size uintptr, token native.Token) uintptr {
	r := (*recorder)(token)
	r.headers = append(r.headers, string(unsafe.Slice(buf, size)))
	return size
}

func setup(t *testing.T, g *WithT, e *Engine, url string) (native.Handle, *recorder) {
	t.Helper()
	h := e.EasyInit()
	t.Cleanup(func() { e.EasyCleanup(h) })

	rec := &recorder{}
	token := native.Token(unsafe.Pointer(rec))
	g.Expect(e.SetoptFunc(h, native.OptWriteFunction, native.DataFunc(onWrite))).To(Equal(native.OK))
	g.Expect(e.SetoptToken(h, native.OptWriteData, token)).To(Equal(native.OK))
	g.Expect(e.SetoptFunc(h, native.OptHeaderFunction, native.DataFunc(onHeader))).To(Equal(native.OK))
	g.Expect(e.SetoptToken(h, native.OptHeaderData, token)).To(Equal(native.OK))
	g.Expect(e.SetoptString(h, native.OptURL, url)).To(Equal(native.OK))
	g.Expect(e.SetoptString(h, native.OptSSLClientHello, "chrome_120")).To(Equal(native.OK))
	g.Expect(e.SetoptLong(h, native.OptSSLVerifyPeer, 0)).To(Equal(native.OK))
	g.Expect(e.SetoptLong(h, native.OptTimeoutMS, 10_000)).To(Equal(native.OK))
	return h, rec
}

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Agent", r.UserAgent())
		w.Header().Set("X-Custom", r.Header.Get("X-Custom"))
		fmt.Fprint(w, "hello from badcurl")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s", r.Method, body)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["zeta"] = []string{"last"}
		w.Header()["alpha"] = []string{"first"}
		w.Header()["X-Multi"] = []string{"one", "two"}
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 64*1024))
	})
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPerformGet(t *testing.T) {
	g := NewGomegaWithT(t)
	srv := newServer(t)
	e := New()
	g.Expect(e.GlobalInit(native.GlobalDefault)).To(Equal(native.OK))

	h, rec := setup(t, g, e, srv.URL+"/hello")
	g.Expect(e.SetoptString(h, native.OptUserAgent, "badcurl-test/1")).To(Equal(native.OK))
	g.Expect(e.SetoptSlist(h, native.OptHTTPHeader, []string{"X-Custom: yes"})).To(Equal(native.OK))

	g.Expect(e.Perform(h)).To(Equal(native.OK), e.ErrorDetail(h))
	g.Expect(string(rec.body)).To(Equal("hello from badcurl"))
	g.Expect(rec.headers[0]).To(HavePrefix("HTTP/1.1 200"))
	g.Expect(rec.headers).To(ContainElement("X-Agent: badcurl-test/1\r\n"))
	g.Expect(rec.headers).To(ContainElement("X-Custom: yes\r\n"))
	g.Expect(rec.headers[len(rec.headers)-1]).To(Equal("\r\n"))

	status, code := e.Getinfo(h, native.InfoResponseCode)
	g.Expect(code).To(Equal(native.OK))
	g.Expect(status).To(Equal(int64(200)))
	size, _ := e.Getinfo(h, native.InfoSizeDownload)
	g.Expect(size).To(Equal(int64(len("hello from badcurl"))))
	version, _ := e.Getinfo(h, native.InfoHTTPVersion)
	g.Expect(version).To(Equal(native.HTTPVersion1_1))
	total, _ := e.Getinfo(h, native.InfoTotalTime)
	g.Expect(total).To(BeNumerically(">", 0))
	g.Expect(e.ErrorDetail(h)).To(BeEmpty())
}

func TestPerformPostAndUpload(t *testing.T) {
	g := NewGomegaWithT(t)
	srv := newServer(t)
	e := New()

	h, rec := setup(t, g, e, srv.URL+"/echo")
	g.Expect(e.SetoptString(h, native.OptPostFields, "a=1&b=2")).To(Equal(native.OK))
	g.Expect(e.Perform(h)).To(Equal(native.OK), e.ErrorDetail(h))
	g.Expect(string(rec.body)).To(Equal("POST a=1&b=2"))

	rec.body = nil
	g.Expect(e.SetoptString(h, native.OptCustomRequest, "PATCH")).To(Equal(native.OK))
	g.Expect(e.Perform(h)).To(Equal(native.OK), e.ErrorDetail(h))
	g.Expect(string(rec.body)).To(Equal("PATCH a=1&b=2"))
	up, _ := e.Getinfo(h, native.InfoSizeUpload)
	g.Expect(up).To(Equal(int64(7)))

	// An upload without a read callback sends an empty body.
	rec.body = nil
	g.Expect(e.SetoptString(h, native.OptCustomRequest, "")).To(Equal(native.OK))
	g.Expect(e.SetoptLong(h, native.OptUpload, 1)).To(Equal(native.OK))
	g.Expect(e.Perform(h)).To(Equal(native.OK), e.ErrorDetail(h))
	g.Expect(string(rec.body)).To(Equal("PUT "))
}

func TestPerformFailures(t *testing.T) {
	g := NewGomegaWithT(t)
	srv := newServer(t)
	e := New()

	h, rec := setup(t, g, e, srv.URL+"/missing")
	g.Expect(e.Perform(h)).To(Equal(native.OK))
	g.Expect(rec.headers[0]).To(HavePrefix("HTTP/1.1 404"))

	g.Expect(e.SetoptLong(h, native.OptFailOnError, 1)).To(Equal(native.OK))
	g.Expect(e.Perform(h)).To(Equal(native.HTTPReturnedError))
	g.Expect(e.ErrorDetail(h)).To(ContainSubstring("404"))

	g.Expect(e.SetoptString(h, native.OptURL, srv.URL+"/loop")).To(Equal(native.OK))
	g.Expect(e.SetoptLong(h, native.OptFollowLocation, 1)).To(Equal(native.OK))
	g.Expect(e.SetoptLong(h, native.OptMaxRedirs, 3)).To(Equal(native.OK))
	g.Expect(e.Perform(h)).To(Equal(native.TooManyRedirects))

	rec.limit = 1024
	g.Expect(e.SetoptString(h, native.OptURL, srv.URL+"/big")).To(Equal(native.OK))
	g.Expect(e.Perform(h)).To(Equal(native.WriteError))

	g.Expect(e.SetoptString(h, native.OptURL, "")).To(Equal(native.OK))
	g.Expect(e.Perform(h)).To(Equal(native.URLMalformat))
	g.Expect(e.ErrorDetail(h)).To(Equal(ErrNoURL))
}

func TestPerformConnectionRefused(t *testing.T) {
	g := NewGomegaWithT(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	g.Expect(err).ToNot(HaveOccurred())
	addr := l.Addr().String()
	g.Expect(l.Close()).To(Succeed())

	e := New()
	h, _ := setup(t, g, e, "https://"+addr+"/")
	g.Expect(e.Perform(h)).To(Equal(native.CouldntConnect))
	g.Expect(e.ErrorDetail(h)).ToNot(BeEmpty())
}

func TestSetoptValidation(t *testing.T) {
	g := NewGomegaWithT(t)
	e := New()
	h := e.EasyInit()
	defer e.EasyCleanup(h)

	g.Expect(e.SetoptString(h, native.OptSSLClientHello, "netscape_4")).To(Equal(native.SSLEngineNotFound))
	g.Expect(e.SetoptString(h, native.OptSSLCipherList, "TLS_AES_128_GCM_SHA256:NOT-A-CIPHER")).To(Equal(native.SSLCipher))
	g.Expect(e.SetoptString(h, native.OptSSLECCurves, "X25519:P-1024")).To(Equal(native.SSLCipher))
	g.Expect(e.SetoptString(h, native.OptHTTP2Settings, "1:")).To(Equal(native.BadFunctionArgument))
	g.Expect(e.SetoptString(h, native.OptHTTP2PseudoHeadersOrder, "mmsp")).To(Equal(native.BadFunctionArgument))
	g.Expect(e.SetoptSlist(h, native.OptALPN, []string{"h3"})).To(Equal(native.NotBuiltIn))
	g.Expect(e.SetoptLong(h, native.OptHTTPVersion, 42)).To(Equal(native.UnsupportedProtocol))
	g.Expect(e.SetoptLong(h, native.OptHTTPVersion, native.HTTPVersion2PriorKnowledge)).To(Equal(native.NotBuiltIn))

	g.Expect(e.SetoptString(h, native.OptVerbose, "1")).To(Equal(native.BadFunctionArgument))
	g.Expect(e.SetoptLong(h, native.Option(7), 1)).To(Equal(native.UnknownOption))
	g.Expect(e.SetoptLong(native.Handle(9999), native.OptVerbose, 1)).To(Equal(native.BadFunctionArgument))
}

func TestFingerprintInfo(t *testing.T) {
	g := NewGomegaWithT(t)
	e := New()
	h := e.EasyInit()
	defer e.EasyCleanup(h)

	ja3, code := e.Getinfo(h, native.InfoTLSFingerprint)
	g.Expect(code).To(Equal(native.OK))
	g.Expect(ja3).To(BeEmpty())

	g.Expect(e.SetoptString(h, native.OptSSLCipherList, "TLS_AES_128_GCM_SHA256:TLS_AES_256_GCM_SHA384")).To(Equal(native.OK))
	g.Expect(e.SetoptString(h, native.OptSSLECCurves, "X25519:P-256")).To(Equal(native.OK))
	g.Expect(e.SetoptString(h, native.OptTLSExtensionOrder, "0-23-65281")).To(Equal(native.OK))
	ja3, code = e.Getinfo(h, native.InfoTLSFingerprint)
	g.Expect(code).To(Equal(native.OK))
	g.Expect(ja3).To(Equal("771,4865-4866,0-23-65281,29-23,0"))

	g.Expect(e.SetoptString(h, native.OptHTTP2Settings, "1:65536;4:6291456")).To(Equal(native.OK))
	g.Expect(e.SetoptLong(h, native.OptHTTP2WindowUpdate, 15663105)).To(Equal(native.OK))
	g.Expect(e.SetoptString(h, native.OptHTTP2PseudoHeadersOrder, "masp")).To(Equal(native.OK))
	akamai, code := e.Getinfo(h, native.InfoHTTP2Fingerprint)
	g.Expect(code).To(Equal(native.OK))
	g.Expect(akamai).To(Equal("1:65536;4:6291456|15663105|0|m,a,s,p"))

	_, code = e.Getinfo(h, native.Info(99))
	g.Expect(code).To(Equal(native.UnknownOption))
}

func TestHeaderLinesAreCanonicalAndSorted(t *testing.T) {
	g := NewGomegaWithT(t)
	srv := newServer(t)
	e := New()

	h, rec := setup(t, g, e, srv.URL+"/order")
	g.Expect(e.Perform(h)).To(Equal(native.OK), e.ErrorDetail(h))

	lines := rec.headers[1 : len(rec.headers)-1]
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		name, _, ok := strings.Cut(line, ": ")
		g.Expect(ok).To(BeTrue(), line)
		names = append(names, name)
	}
	g.Expect(slices.IsSorted(names)).To(BeTrue(), "%v", names)
	g.Expect(lines).To(ContainElement("Alpha: first\r\n"))
	g.Expect(lines).To(ContainElement("Zeta: last\r\n"))
	multi := lo.Filter(lines, func(line string, _ int) bool { return strings.HasPrefix(line, "X-Multi: ") })
	g.Expect(multi).To(Equal([]string{"X-Multi: one\r\n", "X-Multi: two\r\n"}))
}

func TestDefaultMaxRedirs(t *testing.T) {
	g := NewGomegaWithT(t)
	srv := newServer(t)
	e := New()

	h, _ := setup(t, g, e, srv.URL+"/loop")
	g.Expect(e.SetoptLong(h, native.OptFollowLocation, 1)).To(Equal(native.OK))
	g.Expect(e.lookup(h).clientConfig().maxRedirs).To(Equal(native.LongDefault(native.OptMaxRedirs)))
	g.Expect(e.Perform(h)).To(Equal(native.TooManyRedirects))
}

func TestEasyResetKeepsClients(t *testing.T) {
	g := NewGomegaWithT(t)
	srv := newServer(t)
	e := New()

	h, _ := setup(t, g, e, srv.URL+"/hello")
	g.Expect(e.Perform(h)).To(Equal(native.OK), e.ErrorDetail(h))
	st := e.lookup(h)
	g.Expect(st.clients).To(HaveLen(1))

	e.EasyReset(h)
	g.Expect(st.strs).To(BeEmpty())
	g.Expect(st.cb.HasRead()).To(BeFalse())
	g.Expect(st.clients).To(HaveLen(1))
	g.Expect(e.Perform(h)).To(Equal(native.URLMalformat))
}

func TestVersion(t *testing.T) {
	g := NewGomegaWithT(t)
	v := New().Version()
	g.Expect(v.Version).To(Equal(EngineVersion))
	g.Expect(v.Protocols).To(ConsistOf("http", "https"))
	g.Expect(v.Features).To(ContainElement("impersonate"))
}
