package easy

import (
	"slices"
	"time"

	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/option"
)

// settings remembers the option values applied to the engine handle, in the
// order they were first set, so they can be replayed after an engine reset and
// restored when an impersonation is unwound.
type settings struct {
	byOpt map[native.Option]option.Value
	order []native.Option
}

func newSettings() settings {
	return settings{byOpt: make(map[native.Option]option.Value)}
}

func (s *settings) set(v option.Value) {
	if _, ok := s.byOpt[v.Option()]; !ok {
		s.order = append(s.order, v.Option())
	}
	s.byOpt[v.Option()] = v
}

// current is the value the engine holds for opt: the remembered one or the
// default.
func (s *settings) current(opt native.Option) option.Value {
	if v, ok := s.byOpt[opt]; ok {
		return v
	}
	return option.Default(opt)
}

func (s *settings) str(opt native.Option) string {
	v, _ := s.current(opt).Interface().(string)
	return v
}

func (s *settings) values() []option.Value {
	out := make([]option.Value, 0, len(s.order))
	for _, opt := range s.order {
		out = append(out, s.byOpt[opt])
	}
	return out
}

func (s *settings) dropTransferScoped() {
	s.order = slices.DeleteFunc(s.order, func(opt native.Option) bool {
		if option.ScopeOf(opt) == option.ScopeTransfer {
			delete(s.byOpt, opt)
			return true
		}
		return false
	})
}

// SetOption validates value for opt and applies it to the engine handle. An
// out-of-domain value is rejected with badcurl.KindInvalidInput before the
// engine is called; an engine rejection is a badcurl.KindNative error naming
// the option. See option.Encode for the accepted value types.
func (e *Easy) SetOption(opt native.Option, value any) error {
	if err := e.usable(); err != nil {
		return err
	}
	v, err := option.Encode(opt, value)
	if err != nil {
		return err
	}
	return e.apply(v)
}

func (e *Easy) apply(v option.Value) error {
	if code := v.Apply(e.engine, e.handle()); code != native.OK {
		return e.optionError(v.Option(), code)
	}
	e.settings.set(v)
	return nil
}

// URL sets the request target. Only http and https URLs are accepted.
func (e *Easy) URL(url string) error { return e.SetOption(native.OptURL, url) }

// Timeout limits the whole transfer. Zero means no limit.
func (e *Easy) Timeout(d time.Duration) error { return e.SetOption(native.OptTimeoutMS, d) }

// ConnectTimeout limits the connection phase. Zero restores the engine default.
func (e *Easy) ConnectTimeout(d time.Duration) error {
	return e.SetOption(native.OptConnectTimeout, d)
}

func (e *Easy) FollowLocation(follow bool) error {
	return e.SetOption(native.OptFollowLocation, follow)
}

// MaxRedirections caps followed redirects; -1 is unlimited.
func (e *Easy) MaxRedirections(n int) error { return e.SetOption(native.OptMaxRedirs, n) }

// SSLVerifyPeer toggles certificate and host name verification.
func (e *Easy) SSLVerifyPeer(verify bool) error {
	if err := e.SetOption(native.OptSSLVerifyPeer, verify); err != nil {
		return err
	}
	return e.SetOption(native.OptSSLVerifyHost, verify)
}

// Proxy routes the transfer through an http, https or socks5 proxy. An empty
// string disables it.
func (e *Easy) Proxy(proxy string) error { return e.SetOption(native.OptProxy, proxy) }

// CustomRequest overrides the request method.
func (e *Easy) CustomRequest(method string) error {
	return e.SetOption(native.OptCustomRequest, method)
}

// PostFields sends body as a POST request body.
func (e *Easy) PostFields(body string) error { return e.SetOption(native.OptPostFields, body) }

// Upload makes the transfer send the read callback's data as the request body.
func (e *Easy) Upload(upload bool) error { return e.SetOption(native.OptUpload, upload) }

// InFileSize announces the upload size; -1 means unknown.
func (e *Easy) InFileSize(size int64) error { return e.SetOption(native.OptInFileSize, size) }

// HTTPHeaders sets extra "Name: value" request headers for the next request.
func (e *Easy) HTTPHeaders(headers []string) error {
	return e.SetOption(native.OptHTTPHeader, headers)
}

func (e *Easy) UserAgent(ua string) error { return e.SetOption(native.OptUserAgent, ua) }

// HTTPVersion selects the HTTP version, one of native.HTTPVersion*.
func (e *Easy) HTTPVersion(v int64) error { return e.SetOption(native.OptHTTPVersion, v) }

func (e *Easy) Verbose(verbose bool) error { return e.SetOption(native.OptVerbose, verbose) }

// FailOnError makes HTTP responses with status >= 400 fail the transfer.
func (e *Easy) FailOnError(fail bool) error { return e.SetOption(native.OptFailOnError, fail) }

// AcceptEncoding sets the Accept-Encoding header and enables decoding of the
// named encodings.
func (e *Easy) AcceptEncoding(encodings string) error {
	return e.SetOption(native.OptAcceptEncoding, encodings)
}

func (e *Easy) Cookie(cookie string) error { return e.SetOption(native.OptCookie, cookie) }

// SSLCipherList sets the cipher suites, in ClientHello order.
func (e *Easy) SSLCipherList(ciphers ...string) error {
	return e.SetOption(native.OptSSLCipherList, ciphers)
}

// SSLECCurves sets the supported groups, in ClientHello order.
func (e *Easy) SSLECCurves(curves ...string) error {
	return e.SetOption(native.OptSSLECCurves, curves)
}

// SSLSigHashAlgs sets the signature algorithms, in ClientHello order.
func (e *Easy) SSLSigHashAlgs(algs ...string) error {
	return e.SetOption(native.OptSSLSigHashAlgs, algs)
}

// TLSExtensionOrder sets the ClientHello extension order.
func (e *Easy) TLSExtensionOrder(ids ...uint16) error {
	return e.SetOption(native.OptTLSExtensionOrder, ids)
}

func (e *Easy) ALPN(protocols ...string) error { return e.SetOption(native.OptALPN, protocols) }

func (e *Easy) SSLCertCompression(algs ...string) error {
	return e.SetOption(native.OptSSLCertCompression, algs)
}

func (e *Easy) SSLPermuteExtensions(permute bool) error {
	return e.SetOption(native.OptSSLPermuteExtensions, permute)
}

// HTTP2Settings sets the SETTINGS frame as "id:value;id:value".
func (e *Easy) HTTP2Settings(settings string) error {
	return e.SetOption(native.OptHTTP2Settings, settings)
}

func (e *Easy) HTTP2WindowUpdate(increment uint32) error {
	return e.SetOption(native.OptHTTP2WindowUpdate, increment)
}

// HTTP2PseudoHeaderOrder orders the request pseudo-headers, e.g.
// ":method", ":authority", ":scheme", ":path".
func (e *Easy) HTTP2PseudoHeaderOrder(order ...string) error {
	return e.SetOption(native.OptHTTP2PseudoHeadersOrder, order)
}

// HTTP2StreamPriority sets the request stream's weight (1-256) and exclusive
// flag.
func (e *Easy) HTTP2StreamPriority(weight int, exclusive bool) error {
	if err := e.SetOption(native.OptHTTP2StreamWeight, weight); err != nil {
		return err
	}
	return e.SetOption(native.OptHTTP2StreamExclusive, exclusive)
}

// BaseHeaders sets headers sent with every request on the handle, below the
// per-request HTTPHeaders.
func (e *Easy) BaseHeaders(headers []string) error {
	return e.SetOption(native.OptHTTPBaseHeader, headers)
}

// HeaderOrder sets the wire order of request headers by lower-case name.
func (e *Easy) HeaderOrder(names []string) error {
	return e.SetOption(native.OptHTTPHeaderOrder, names)
}
