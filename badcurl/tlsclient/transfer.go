package tlsclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"

	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// Perform runs one transfer with the options currently set on h.
func (e *Engine) Perform(h native.Handle) native.Code {
	st := e.lookup(h)
	if st == nil {
		return native.BadFunctionArgument
	}
	st.last = transferInfo{}
	st.detail = ""

	start := time.Now()
	code, err := st.perform()
	st.last.total = time.Since(start)

	if code != native.OK {
		st.detail = native.Strerror(code)
		if err != nil {
			st.detail = err.Error()
		}
	}
	return code
}

func (h *handle) debug(kind native.InfoType, format string, args ...any) native.Code {
	if !h.flag(native.OptVerbose) {
		return native.OK
	}
	return h.cb.Debug(kind, fmt.Appendf(nil, format, args...))
}

func (h *handle) perform() (native.Code, error) {
	rawURL := h.strs[native.OptURL]
	if rawURL == "" {
		return native.URLMalformat, errors.New(ErrNoURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return native.URLMalformat, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return native.UnsupportedProtocol, fmt.Errorf("protocol %q not supported", u.Scheme)
	}
	h.last.url = rawURL

	client, code, err := h.client(h.clientConfig())
	if code != native.OK {
		return code, err
	}

	body, code, err := h.requestBody()
	if code != native.OK {
		return code, err
	}
	h.last.up = int64(len(body))

	method := h.method(body != nil)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := fhttp.NewRequest(method, rawURL, reader)
	if err != nil {
		return native.URLMalformat, fmt.Errorf("%s: %w", ErrBuildRequest, err)
	}
	h.setHeaders(req)

	if code := h.debug(native.InfoText, "Trying %s\n", u.Host); code != native.OK {
		return code, nil
	}
	if code := h.debug(native.InfoHeaderOut, "%s %s\r\n%s\r\n", method, u.RequestURI(), requestHeaderText(req)); code != native.OK {
		return code, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var connectExpired atomic.Bool
	if ms := h.long(native.OptConnectTimeout); ms > 0 {
		timer := time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
			connectExpired.Store(true)
			cancel()
		})
		defer timer.Stop()
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if connectExpired.Load() {
			return native.OperationTimedout, fmt.Errorf("connect timeout: %w", err)
		}
		return classify(err), err
	}
	defer resp.Body.Close()

	h.last.status = int64(resp.StatusCode)
	h.last.protoMajor, h.last.protoMinor = resp.ProtoMajor, resp.ProtoMinor
	if resp.Request != nil && resp.Request.URL != nil {
		h.last.url = resp.Request.URL.String()
	}

	if code := h.deliverHeaders(resp); code != native.OK {
		return code, nil
	}
	if h.flag(native.OptFailOnError) && resp.StatusCode >= 400 {
		return native.HTTPReturnedError, fmt.Errorf("the requested URL returned error: %d", resp.StatusCode)
	}
	return h.deliverBody(resp)
}

// requestBody returns the request body, or nil for a request without one.
func (h *handle) requestBody() ([]byte, native.Code, error) {
	if h.flag(native.OptUpload) {
		r := h.cb.Reader()
		body, err := io.ReadAll(r)
		if err != nil {
			if code := r.Code(); code != native.OK {
				return nil, code, err
			}
			return nil, native.ReadError, err
		}
		if size := h.long(native.OptInFileSize); size >= 0 && int64(len(body)) != size {
			return nil, native.PartialFile, fmt.Errorf("read %d bytes, INFILESIZE is %d", len(body), size)
		}
		if body == nil {
			body = []byte{}
		}
		return body, native.OK, nil
	}
	if fields, ok := h.strs[native.OptPostFields]; ok {
		return []byte(fields), native.OK, nil
	}
	return nil, native.OK, nil
}

func (h *handle) method(hasBody bool) string {
	if m := h.strs[native.OptCustomRequest]; m != "" {
		return m
	}
	switch {
	case h.flag(native.OptUpload):
		return fhttp.MethodPut
	case hasBody:
		return fhttp.MethodPost
	default:
		return fhttp.MethodGet
	}
}

// setHeaders builds the request headers: the base set, then User-Agent,
// Accept-Encoding and Cookie, then the per-request lines, which override or
// (with an empty value) remove any of them. The wire order of regular and
// pseudo headers rides along under the fhttp order keys.
func (h *handle) setHeaders(req *fhttp.Request) {
	headers := fhttp.Header{}
	for _, line := range h.lists[native.OptHTTPBaseHeader] {
		name, value, _ := strings.Cut(line, ":")
		headers.Set(name, strings.TrimSpace(value))
	}
	if ua, ok := h.strs[native.OptUserAgent]; ok {
		headers.Set("User-Agent", ua)
	}
	if enc, ok := h.strs[native.OptAcceptEncoding]; ok {
		headers.Set("Accept-Encoding", enc)
	}
	if cookie, ok := h.strs[native.OptCookie]; ok {
		headers.Set("Cookie", cookie)
	}
	for _, line := range h.lists[native.OptHTTPHeader] {
		name, value, _ := strings.Cut(line, ":")
		if value = strings.TrimSpace(value); value == "" {
			headers.Del(name)
			continue
		}
		headers.Set(name, value)
	}

	if order := h.lists[native.OptHTTPHeaderOrder]; len(order) > 0 {
		headers[fhttp.HeaderOrderKey] = slices.Clone(order)
	}
	if raw := h.strs[native.OptHTTP2PseudoHeadersOrder]; raw != "" {
		if order, err := fingerprint.DecodePseudoOrder(raw); err == nil {
			headers[fhttp.PHeaderOrderKey] = order
		}
	}
	req.Header = headers
}

func requestHeaderText(req *fhttp.Request) string {
	var b strings.Builder
	for _, name := range sortedNames(req.Header) {
		for _, v := range req.Header[name] {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}
	return b.String()
}

func sortedNames(header fhttp.Header) []string {
	names := make([]string, 0, len(header))
	for name := range header {
		if name == fhttp.HeaderOrderKey || name == fhttp.PHeaderOrderKey {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func statusLine(resp *fhttp.Response) string {
	if resp.ProtoMajor == 2 {
		return fmt.Sprintf("HTTP/2 %d\r\n", resp.StatusCode)
	}
	return fmt.Sprintf("HTTP/%d.%d %s\r\n", resp.ProtoMajor, resp.ProtoMinor, resp.Status)
}

// deliverHeaders hands the status line, each header line and the terminating
// blank line to the header callback. The response only keeps headers by
// canonical name, so lines are delivered sorted by name.
func (h *handle) deliverHeaders(resp *fhttp.Response) native.Code {
	lines := []string{statusLine(resp)}
	for _, name := range sortedNames(resp.Header) {
		for _, v := range resp.Header[name] {
			lines = append(lines, name+": "+v+"\r\n")
		}
	}
	lines = append(lines, "\r\n")
	for _, line := range lines {
		if code := h.debug(native.InfoHeaderIn, "%s", line); code != native.OK {
			return code
		}
		if code := h.cb.Header([]byte(line)); code != native.OK {
			return code
		}
	}
	return native.OK
}

// deliverBody streams the response body to the write callback and reports
// progress after every chunk.
func (h *handle) deliverBody(resp *fhttp.Response) (native.Code, error) {
	progress := h.cb.HasXferInfo() && !h.flag(native.OptNoProgress)
	total := max(resp.ContentLength, 0)
	up := h.last.up
	if progress {
		if code := h.cb.XferInfo(total, 0, up, up); code != native.OK {
			return code, nil
		}
	}

	buf := make([]byte, native.MaxWriteSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			h.last.down += int64(n)
			if code := h.cb.Write(buf[:n]); code != native.OK {
				return code, nil
			}
			if progress {
				if code := h.cb.XferInfo(total, h.last.down, up, up); code != native.OK {
					return code, nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if code := classify(err); code != native.CouldntConnect {
				return code, err
			}
			return native.RecvError, err
		}
	}
	if resp.ContentLength >= 0 && resp.Header.Get("Content-Encoding") == "" && h.last.down < resp.ContentLength {
		return native.PartialFile, fmt.Errorf("%d bytes remaining to read", resp.ContentLength-h.last.down)
	}
	return native.OK, nil
}

// classify maps a transport error to the closest engine status.
func classify(err error) native.Code {
	var dnsErr *net.DNSError
	var netErr net.Error
	var opErr *net.OpError
	msg := err.Error()
	switch {
	case errors.Is(err, errTooManyRedirects), strings.Contains(msg, ErrTooManyRedirect):
		return native.TooManyRedirects
	case errors.Is(err, native.ErrReadAborted):
		return native.AbortedByCallback
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return native.OperationTimedout
	case errors.As(err, &netErr) && netErr.Timeout():
		return native.OperationTimedout
	case strings.Contains(msg, "Client.Timeout exceeded"):
		return native.OperationTimedout
	case errors.As(err, &dnsErr):
		return native.CouldntResolveHost
	case strings.Contains(msg, "x509:"), strings.Contains(msg, "certificate"):
		return native.PeerFailedVerification
	case strings.Contains(msg, "tls:"), strings.Contains(msg, "handshake"):
		return native.SSLConnectError
	case errors.Is(err, syscall.ECONNREFUSED):
		return native.CouldntConnect
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF):
		return native.RecvError
	case errors.Is(err, io.EOF):
		return native.GotNothing
	case strings.Contains(msg, "http2:"):
		return native.HTTP2
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return native.CouldntConnect
	case strings.Contains(msg, "proxy"):
		return native.CouldntResolveProxy
	default:
		return native.CouldntConnect
	}
}
