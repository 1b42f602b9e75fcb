package easy

import (
	"fmt"
	"time"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

func getinfo[T any](e *Easy, info native.Info) (T, error) {
	var zero T
	if e.closed {
		return zero, badcurl.InvalidInput(0, ErrHandleClosed)
	}
	v, code := e.engine.Getinfo(e.handle(), info)
	if code != native.OK {
		return zero, &badcurl.Error{Kind: badcurl.KindNative, Code: code, Message: e.engine.Strerror(code)}
	}
	t, ok := v.(T)
	if !ok {
		return zero, &badcurl.Error{
			Kind:    badcurl.KindNative,
			Code:    native.BadFunctionArgument,
			Message: fmt.Sprintf("engine returned %T for info %d, want %T", v, int(info), zero),
		}
	}
	return t, nil
}

// ResponseCode is the HTTP status of the last response, 0 if none was
// received.
func (e *Easy) ResponseCode() (int, error) {
	code, err := getinfo[int64](e, native.InfoResponseCode)
	return int(code), err
}

// EffectiveURL is the URL of the last request, after redirects.
func (e *Easy) EffectiveURL() (string, error) {
	return getinfo[string](e, native.InfoEffectiveURL)
}

// HTTPVersionUsed is the native.HTTPVersion* value of the last response.
func (e *Easy) HTTPVersionUsed() (int64, error) {
	return getinfo[int64](e, native.InfoHTTPVersion)
}

// TotalTime is the duration of the last transfer.
func (e *Easy) TotalTime() (time.Duration, error) {
	secs, err := getinfo[float64](e, native.InfoTotalTime)
	return time.Duration(secs * float64(time.Second)), err
}

// SizeDownload is the number of body bytes received by the last transfer.
func (e *Easy) SizeDownload() (int64, error) {
	return getinfo[int64](e, native.InfoSizeDownload)
}

// SizeUpload is the number of body bytes sent by the last transfer.
func (e *Easy) SizeUpload() (int64, error) {
	return getinfo[int64](e, native.InfoSizeUpload)
}

// TLSFingerprint is the JA3 fingerprint of the ClientHello the handle sends.
func (e *Easy) TLSFingerprint() (string, error) {
	return getinfo[string](e, native.InfoTLSFingerprint)
}

// HTTP2Fingerprint is the Akamai fingerprint of the handle's HTTP/2 preface.
func (e *Easy) HTTP2Fingerprint() (string, error) {
	return getinfo[string](e, native.InfoHTTP2Fingerprint)
}
