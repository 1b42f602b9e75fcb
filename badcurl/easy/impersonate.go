package easy

import (
	"errors"
	"slices"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/instrumentation"
	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
	"github.com/ditsuke/go-badcurl/badcurl/option"
	"github.com/ditsuke/go-badcurl/badcurl/profiles"
)

type stage struct {
	name   string
	values []option.Value
}

type entry struct {
	opt   native.Option
	value any
}

// stages encodes a profile in the order it is applied: TLS, HTTP/2, header
// order, User-Agent and optionally the HTTP version.
func stages(p profiles.Profile, adjustHTTPVersion bool) ([]stage, error) {
	raw := []struct {
		name    string
		entries []entry
	}{
		{"tls", []entry{
			{native.OptSSLClientHello, p.TLS.ClientHello},
			{native.OptSSLCipherList, p.TLS.Ciphers},
			{native.OptSSLECCurves, p.TLS.Curves},
			{native.OptSSLSigHashAlgs, p.TLS.SigAlgs},
			{native.OptTLSExtensionOrder, p.TLS.Extensions},
			{native.OptALPN, p.TLS.ALPN},
			{native.OptSSLEnableALPS, p.TLS.ALPS},
			{native.OptSSLCertCompression, p.TLS.CertCompression},
			{native.OptSSLPermuteExtensions, p.TLS.PermuteExtensions},
		}},
		{"http2", []entry{
			{native.OptHTTP2Settings, fingerprint.FormatSettings(p.HTTP2.Settings)},
			{native.OptHTTP2WindowUpdate, p.HTTP2.WindowUpdate},
			{native.OptHTTP2PseudoHeadersOrder, p.HTTP2.PseudoHeaderOrder},
			{native.OptHTTP2StreamWeight, p.HTTP2.StreamWeight},
			{native.OptHTTP2StreamExclusive, p.HTTP2.StreamExclusive},
		}},
		{"header order", []entry{
			{native.OptHTTPBaseHeader, p.DefaultHeaders},
			{native.OptHTTPHeaderOrder, p.HeaderOrder},
		}},
		{"user agent", []entry{
			{native.OptUserAgent, p.UserAgent},
		}},
	}
	if adjustHTTPVersion {
		raw = append(raw, struct {
			name    string
			entries []entry
		}{"http version", []entry{{native.OptHTTPVersion, p.HTTPVersion}}})
	}

	out := make([]stage, 0, len(raw))
	for _, r := range raw {
		st := stage{name: r.name}
		for _, en := range r.entries {
			v, err := option.Encode(en.opt, en.value)
			if err != nil {
				return nil, err
			}
			st.values = append(st.values, v)
		}
		out = append(out, st)
	}
	return out, nil
}

// Impersonate configures the handle to look like the browser build id: TLS
// ClientHello, HTTP/2 preface, default headers and their order, User-Agent
// and, when adjustHTTPVersion is set, the HTTP version the browser negotiates.
//
// The options are applied in that fixed order. If the engine rejects one, the
// options already applied are restored to their previous values and the
// handle's profile is left as it was; the engine error is returned.
func (e *Easy) Impersonate(id profiles.ID, adjustHTTPVersion bool) error {
	if err := e.usable(); err != nil {
		return err
	}
	if !slices.Contains(profiles.All(), id) {
		return badcurl.InvalidInput(0, "%s %d", ErrUnknownProfile, int(id))
	}
	p := profiles.Lookup(id)

	plan, err := stages(p, adjustHTTPVersion)
	if err != nil {
		return err
	}

	var undo []option.Value
	for _, st := range plan {
		for _, v := range st.values {
			prev := e.settings.current(v.Option())
			if code := v.Apply(e.engine, e.handle()); code != native.OK {
				failure := e.optionError(v.Option(), code)
				e.log.V(2).Info("impersonation failed, unwinding",
					"profile", p.Name, "stage", st.name, "option", v.Option().String(), "code", int(code))
				if rerr := e.unwind(undo); rerr != nil {
					failure.Err = rerr
				}
				instrumentation.RecordImpersonate(e.ctx, p.Name, failure)
				return failure
			}
			undo = append(undo, prev)
		}
	}

	for _, st := range plan {
		for _, v := range st.values {
			e.settings.set(v)
		}
	}
	e.profile = id
	instrumentation.RecordImpersonate(e.ctx, p.Name, nil)
	e.log.V(2).Info("impersonating", "profile", p.Name, "ja3", p.JA3())
	return nil
}

// unwind restores previous values, most recent first.
func (e *Easy) unwind(undo []option.Value) error {
	var errs []error
	for i := len(undo) - 1; i >= 0; i-- {
		if code := undo[i].Apply(e.engine, e.handle()); code != native.OK {
			errs = append(errs, e.optionError(undo[i].Option(), code))
		}
	}
	return errors.Join(errs...)
}
