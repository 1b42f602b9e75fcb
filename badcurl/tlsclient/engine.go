package tlsclient

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tls_client "github.com/bogdanfinn/tls-client"
	tlsprofiles "github.com/bogdanfinn/tls-client/profiles"
	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// EngineVersion is reported by Version.
const EngineVersion = "badcurl-tlsclient/1.0 tls-client/1.14"

// Messages reported through ErrorDetail.
const (
	ErrNoURL           = "no URL set"
	ErrUnknownHello    = "unknown ClientHello template"
	ErrBuildClient     = "could not build transport"
	ErrBuildRequest    = "could not build request"
	ErrTooManyRedirect = "maximum redirects followed"
)

var protocols = []string{"http", "https"}

var features = []string{"SSL", "HTTP2", "IDN", "libz", "brotli", "zstd", "alt-svc", "impersonate"}

// Engine is the tls-client backed native.Engine. The zero value is not usable;
// call New.
type Engine struct {
	inits atomic.Int64

	mu      sync.Mutex
	next    native.Handle
	handles map[native.Handle]*handle
}

// New returns an engine with no handles.
func New() *Engine {
	return &Engine{handles: make(map[native.Handle]*handle)}
}

// transferInfo is what Getinfo reports about the last Perform.
type transferInfo struct {
	status     int64
	url        string
	protoMajor int
	protoMinor int
	total      time.Duration
	down       int64
	up         int64
}

type handle struct {
	longs map[native.Option]int64
	strs  map[native.Option]string
	lists map[native.Option][]string
	cb    native.Callbacks

	jar     tls_client.CookieJar
	clients map[clientConfig]tls_client.HttpClient

	last   transferInfo
	detail string
}

func newHandle() *handle {
	h := &handle{
		jar:     tls_client.NewCookieJar(),
		clients: make(map[clientConfig]tls_client.HttpClient),
	}
	h.clear()
	return h
}

func (h *handle) clear() {
	h.longs = make(map[native.Option]int64)
	h.strs = make(map[native.Option]string)
	h.lists = make(map[native.Option][]string)
	h.cb = native.Callbacks{}
	h.detail = ""
}

func (h *handle) long(opt native.Option) int64 {
	if v, ok := h.longs[opt]; ok {
		return v
	}
	return native.LongDefault(opt)
}

// longSet reports the value of opt if it differs from the default.
func (h *handle) longSet(opt native.Option) (int64, bool) {
	v, ok := h.longs[opt]
	return v, ok
}

func (h *handle) flag(opt native.Option) bool { return h.long(opt) != 0 }

func (e *Engine) lookup(h native.Handle) *handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[h]
}

// GlobalInit has nothing to set up; it counts calls for diagnostics.
func (e *Engine) GlobalInit(flags int64) native.Code {
	if n := e.inits.Add(1); n > 1 {
		klog.Warningf("tlsclient: GlobalInit called %d times", n)
	}
	klog.V(2).Infof("tlsclient: global init (flags %#x)", flags)
	return native.OK
}

func (e *Engine) EasyInit() native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.handles[e.next] = newHandle()
	return e.next
}

func (e *Engine) EasyCleanup(h native.Handle) {
	e.mu.Lock()
	st, ok := e.handles[h]
	delete(e.handles, h)
	e.mu.Unlock()
	if !ok {
		return
	}
	for _, c := range st.clients {
		c.CloseIdleConnections()
	}
}

func (e *Engine) EasyReset(h native.Handle) {
	if st := e.lookup(h); st != nil {
		st.clear()
	}
}

func (e *Engine) target(h native.Handle, opt native.Option, kind native.ValueKind) (*handle, native.Code) {
	st := e.lookup(h)
	switch {
	case st == nil:
		return nil, native.BadFunctionArgument
	case !opt.Known():
		return nil, native.UnknownOption
	case opt.Kind() != kind:
		return nil, native.BadFunctionArgument
	}
	return st, native.OK
}

func (e *Engine) SetoptLong(h native.Handle, opt native.Option, v int64) native.Code {
	kind := native.KindLong
	if opt.Kind() == native.KindOffT {
		kind = native.KindOffT
	}
	st, code := e.target(h, opt, kind)
	if code != native.OK {
		return code
	}
	switch opt {
	case native.OptHTTPVersion:
		if v < native.HTTPVersionNone || v > native.HTTPVersion2PriorKnowledge {
			return native.UnsupportedProtocol
		}
		if v == native.HTTPVersion2PriorKnowledge {
			return native.NotBuiltIn
		}
	case native.OptTimeoutMS, native.OptConnectTimeout:
		if v < 0 {
			return native.BadFunctionArgument
		}
	}
	if v == native.LongDefault(opt) {
		delete(st.longs, opt)
		return native.OK
	}
	st.longs[opt] = v
	return native.OK
}

func (e *Engine) SetoptString(h native.Handle, opt native.Option, v string) native.Code {
	st, code := e.target(h, opt, native.KindString)
	if code != native.OK {
		return code
	}
	if v == "" {
		delete(st.strs, opt)
		return native.OK
	}
	if code := checkString(opt, v); code != native.OK {
		st.detail = native.Strerror(code) + ": " + v
		return code
	}
	st.strs[opt] = v
	return native.OK
}

// checkString rejects values the engine cannot honour.
func checkString(opt native.Option, v string) native.Code {
	var err error
	switch opt {
	case native.OptSSLClientHello:
		if _, ok := tlsprofiles.MappedTLSClients[v]; !ok {
			return native.SSLEngineNotFound
		}
	case native.OptSSLCipherList:
		if _, err = fingerprint.CipherIDs(fingerprint.SplitList(v)); err != nil {
			return native.SSLCipher
		}
	case native.OptSSLECCurves:
		if _, err = fingerprint.CurveIDs(fingerprint.SplitList(v)); err != nil {
			return native.SSLCipher
		}
	case native.OptSSLSigHashAlgs:
		if _, err = fingerprint.SigAlgIDs(fingerprint.SplitList(v)); err != nil {
			return native.SSLCipher
		}
	case native.OptSSLCertCompression:
		_, err = fingerprint.CertCompressionIDs(fingerprint.SplitList(v))
	case native.OptTLSExtensionOrder:
		_, err = fingerprint.ParseExtensionOrder(v)
	case native.OptHTTP2Settings:
		_, err = fingerprint.ParseSettings(v)
	case native.OptHTTP2PseudoHeadersOrder:
		_, err = fingerprint.DecodePseudoOrder(v)
	}
	if err != nil {
		return native.BadFunctionArgument
	}
	return native.OK
}

var knownALPN = []string{"h2", "http/1.1"}

func (e *Engine) SetoptSlist(h native.Handle, opt native.Option, v []string) native.Code {
	st, code := e.target(h, opt, native.KindSlist)
	if code != native.OK {
		return code
	}
	if v == nil {
		delete(st.lists, opt)
		return native.OK
	}
	if opt == native.OptALPN {
		if unknown, _ := lo.Difference(v, knownALPN); len(unknown) > 0 {
			st.detail = "unsupported ALPN protocols: " + strings.Join(unknown, ", ")
			return native.NotBuiltIn
		}
	}
	st.lists[opt] = append([]string(nil), v...)
	return native.OK
}

func (e *Engine) SetoptFunc(h native.Handle, opt native.Option, fn any) native.Code {
	st, code := e.target(h, opt, native.KindFunc)
	if code != native.OK {
		return code
	}
	return st.cb.SetFunc(opt, fn)
}

func (e *Engine) SetoptToken(h native.Handle, opt native.Option, t native.Token) native.Code {
	st, code := e.target(h, opt, native.KindToken)
	if code != native.OK {
		return code
	}
	return st.cb.SetToken(opt, t)
}

func (e *Engine) Getinfo(h native.Handle, info native.Info) (any, native.Code) {
	st := e.lookup(h)
	if st == nil {
		return nil, native.BadFunctionArgument
	}
	switch info {
	case native.InfoResponseCode:
		return st.last.status, native.OK
	case native.InfoEffectiveURL:
		if st.last.url == "" {
			return st.strs[native.OptURL], native.OK
		}
		return st.last.url, native.OK
	case native.InfoHTTPVersion:
		return httpVersion(st.last.protoMajor, st.last.protoMinor), native.OK
	case native.InfoTotalTime:
		return st.last.total.Seconds(), native.OK
	case native.InfoSizeDownload:
		return st.last.down, native.OK
	case native.InfoSizeUpload:
		return st.last.up, native.OK
	case native.InfoTLSFingerprint:
		return st.ja3()
	case native.InfoHTTP2Fingerprint:
		return st.akamai()
	}
	return nil, native.UnknownOption
}

func httpVersion(major, minor int) int64 {
	switch {
	case major == 2:
		return native.HTTPVersion2_0
	case major == 1 && minor == 1:
		return native.HTTPVersion1_1
	case major == 1:
		return native.HTTPVersion1_0
	default:
		return native.HTTPVersionNone
	}
}

// ja3 renders the ClientHello the handle's options build, without GREASE
// values and before any extension permutation. It is empty until a cipher
// list is set.
func (h *handle) ja3() (any, native.Code) {
	shape := h.tlsShape()
	if shape.ciphers == "" {
		return "", native.OK
	}
	hello, code, _ := shape.resolve()
	if code != native.OK {
		return nil, code
	}
	return hello.ja3(false), native.OK
}

// akamai renders the HTTP/2 preface the handle's client sends. It is empty
// until SETTINGS are set.
func (h *handle) akamai() (any, native.Code) {
	cfg := h.clientConfig()
	if cfg.h2.settings == "" {
		return "", native.OK
	}
	profile, code, _ := cfg.profile()
	if code != native.OK {
		return nil, code
	}
	return profileAkamai(profile), native.OK
}

func (e *Engine) ErrorDetail(h native.Handle) string {
	if st := e.lookup(h); st != nil {
		return st.detail
	}
	return ""
}

func (e *Engine) Strerror(c native.Code) string { return native.Strerror(c) }

func (e *Engine) Version() native.VersionInfo {
	return native.VersionInfo{
		Version:   EngineVersion,
		Protocols: append([]string(nil), protocols...),
		Features:  append([]string(nil), features...),
	}
}
