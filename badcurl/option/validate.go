package option

import (
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/idna"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= 1<<63-1
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= 1<<63-1
	}
	return 0, false
}

func long(opt native.Option, v any) (int64, error) {
	n, ok := integer(v)
	if !ok {
		return 0, badcurl.InvalidInput(opt, "want an integer, got %T", v)
	}
	return n, nil
}

func boolean(opt native.Option, v any) (Value, error) {
	if b, ok := v.(bool); ok {
		return Value{opt: opt, long: lo.Ternary[int64](b, 1, 0)}, nil
	}
	n, err := long(opt, v)
	if err != nil {
		return Value{}, err
	}
	if n != 0 && n != 1 {
		return Value{}, badcurl.InvalidInput(opt, "want 0 or 1, got %d", n)
	}
	return Value{opt: opt, long: n}, nil
}

func verifyHost(opt native.Option, v any) (Value, error) {
	if b, ok := v.(bool); ok {
		return Value{opt: opt, long: lo.Ternary[int64](b, 2, 0)}, nil
	}
	n, err := long(opt, v)
	if err != nil {
		return Value{}, err
	}
	if n != 0 && n != 2 {
		return Value{}, badcurl.InvalidInput(opt, "want 0 or 2, got %d", n)
	}
	return Value{opt: opt, long: n}, nil
}

func longAtLeast(low int64) func(native.Option, any) (Value, error) {
	return func(opt native.Option, v any) (Value, error) {
		n, err := long(opt, v)
		if err != nil {
			return Value{}, err
		}
		if n < low {
			return Value{}, badcurl.InvalidInput(opt, "%d is below the minimum %d", n, low)
		}
		return Value{opt: opt, long: n}, nil
	}
}

func longBetween(low, high int64) func(native.Option, any) (Value, error) {
	return func(opt native.Option, v any) (Value, error) {
		n, err := long(opt, v)
		if err != nil {
			return Value{}, err
		}
		if n < low || n > high {
			return Value{}, badcurl.InvalidInput(opt, "%d is outside [%d, %d]", n, low, high)
		}
		return Value{opt: opt, long: n}, nil
	}
}

func millis(opt native.Option, v any) (Value, error) {
	if d, ok := v.(time.Duration); ok {
		if d < 0 {
			return Value{}, badcurl.InvalidInput(opt, "negative timeout %s", d)
		}
		return Value{opt: opt, long: Millis(d)}, nil
	}
	return longAtLeast(0)(opt, v)
}

func str(opt native.Option, v any) (string, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return "", badcurl.InvalidInput(opt, "want a string, got %T", v)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return "", badcurl.InvalidInput(opt, "string contains a NUL byte")
	}
	return s, nil
}

func plainString(opt native.Option, v any) (Value, error) {
	s, err := str(opt, v)
	if err != nil {
		return Value{}, err
	}
	return Value{opt: opt, str: s}, nil
}

func bodyString(opt native.Option, v any) (Value, error) {
	return plainString(opt, v)
}

func headerValue(opt native.Option, v any) (Value, error) {
	s, err := str(opt, v)
	if err != nil {
		return Value{}, err
	}
	if !httpguts.ValidHeaderFieldValue(s) {
		return Value{}, badcurl.InvalidInput(opt, "%q is not a valid header value", s)
	}
	return Value{opt: opt, str: s}, nil
}

func method(opt native.Option, v any) (Value, error) {
	s, err := str(opt, v)
	if err != nil {
		return Value{}, err
	}
	if s != "" && !httpguts.ValidHeaderFieldName(s) {
		return Value{}, badcurl.InvalidInput(opt, "%q is not a valid request method", s)
	}
	return Value{opt: opt, str: s}, nil
}

// checkHost validates an URL host through IDNA lookup rules.
func checkHost(opt native.Option, u *url.URL) error {
	host := u.Hostname()
	if host == "" {
		return badcurl.InvalidInput(opt, "%q has no host", u.Redacted())
	}
	if strings.HasPrefix(u.Host, "[") {
		return nil
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return badcurl.InvalidInput(opt, "bad host %q: %v", host, err)
	}
	return nil
}

func urlString(opt native.Option, v any) (Value, error) {
	s, err := str(opt, v)
	if err != nil {
		return Value{}, err
	}
	if s == "" {
		return Value{opt: opt}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return Value{}, badcurl.InvalidInput(opt, "%v", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return Value{}, badcurl.InvalidInput(opt, "unsupported scheme %q", u.Scheme)
	}
	if err := checkHost(opt, u); err != nil {
		return Value{}, err
	}
	return Value{opt: opt, str: s}, nil
}

var proxySchemes = []string{"http", "https", "socks5", "socks5h"}

func proxyString(opt native.Option, v any) (Value, error) {
	s, err := str(opt, v)
	if err != nil {
		return Value{}, err
	}
	if s == "" {
		return Value{opt: opt}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return Value{}, badcurl.InvalidInput(opt, "%v", err)
	}
	if !lo.Contains(proxySchemes, strings.ToLower(u.Scheme)) {
		return Value{}, badcurl.InvalidInput(opt, "unsupported proxy scheme %q (want one of %s)", u.Scheme, strings.Join(proxySchemes, ", "))
	}
	if err := checkHost(opt, u); err != nil {
		return Value{}, err
	}
	return Value{opt: opt, str: s}, nil
}

func uniqueEntries(opt native.Option, entries []string) error {
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			return badcurl.InvalidInput(opt, "empty list entry")
		}
		if strings.IndexByte(e, 0) >= 0 {
			return badcurl.InvalidInput(opt, "list entry contains a NUL byte")
		}
	}
	if dups := lo.FindDuplicates(entries); len(dups) > 0 {
		return badcurl.InvalidInput(opt, "duplicate entries %q", dups)
	}
	return nil
}

// nameList encodes ':' separated name lists such as cipher suites and curves.
// Unknown names are left for the engine to reject.
func nameList(opt native.Option, v any) (Value, error) {
	var names []string
	switch t := v.(type) {
	case []string:
		names = t
	default:
		s, err := str(opt, v)
		if err != nil {
			return Value{}, err
		}
		if s == "" {
			return Value{opt: opt}, nil
		}
		names = strings.Split(strings.ReplaceAll(s, ",", ":"), ":")
	}
	if len(names) == 0 {
		return Value{opt: opt}, nil
	}
	if err := uniqueEntries(opt, names); err != nil {
		return Value{}, err
	}
	return Value{opt: opt, str: strings.Join(names, ":")}, nil
}

func extensionOrder(opt native.Option, v any) (Value, error) {
	var ids []uint16
	switch t := v.(type) {
	case []uint16:
		ids = t
	default:
		s, err := str(opt, v)
		if err != nil {
			return Value{}, err
		}
		if ids, err = fingerprint.ParseExtensionOrder(s); err != nil {
			return Value{}, badcurl.InvalidInput(opt, "%v", err)
		}
	}
	if dups := lo.FindDuplicates(ids); len(dups) > 0 {
		return Value{}, badcurl.InvalidInput(opt, "duplicate extensions %v", dups)
	}
	return Value{opt: opt, str: fingerprint.FormatExtensionOrder(ids)}, nil
}

func http2Settings(opt native.Option, v any) (Value, error) {
	s, err := str(opt, v)
	if err != nil {
		return Value{}, err
	}
	settings, err := fingerprint.ParseSettings(s)
	if err != nil {
		return Value{}, badcurl.InvalidInput(opt, "%v", err)
	}
	ids := lo.Map(settings, func(s fingerprint.Setting, _ int) uint16 { return s.ID })
	if dups := lo.FindDuplicates(ids); len(dups) > 0 {
		return Value{}, badcurl.InvalidInput(opt, "duplicate settings %v", dups)
	}
	return Value{opt: opt, str: fingerprint.FormatSettings(settings)}, nil
}

func pseudoOrder(opt native.Option, v any) (Value, error) {
	var order []string
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return Value{opt: opt}, nil
		}
		order = t
	default:
		s, err := str(opt, v)
		if err != nil {
			return Value{}, err
		}
		if s == "" {
			return Value{opt: opt}, nil
		}
		if order, err = fingerprint.DecodePseudoOrder(s); err != nil {
			return Value{}, badcurl.InvalidInput(opt, "%v", err)
		}
	}
	if len(order) != len(fingerprint.PseudoHeaders) || len(lo.Uniq(order)) != len(order) {
		return Value{}, badcurl.InvalidInput(opt, "must name each of %s once", strings.Join(fingerprint.PseudoHeaders, " "))
	}
	enc, err := fingerprint.EncodePseudoOrder(order)
	if err != nil {
		return Value{}, badcurl.InvalidInput(opt, "%v", err)
	}
	return Value{opt: opt, str: enc}, nil
}

func list(opt native.Option, v any) ([]string, error) {
	l, ok := v.([]string)
	if !ok {
		return nil, badcurl.InvalidInput(opt, "want []string, got %T", v)
	}
	return append([]string(nil), l...), nil
}

// headerLines encodes "Name: value" request header lines. "Name:" removes an
// engine-provided header.
func headerLines(opt native.Option, v any) (Value, error) {
	lines, err := list(opt, v)
	if err != nil {
		return Value{}, err
	}
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return Value{}, badcurl.InvalidInput(opt, "header %q is not of the form \"Name: value\"", line)
		}
		if !httpguts.ValidHeaderFieldName(name) {
			return Value{}, badcurl.InvalidInput(opt, "invalid header name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(strings.TrimSpace(value)) {
			return Value{}, badcurl.InvalidInput(opt, "invalid value for header %q", name)
		}
		names = append(names, strings.ToLower(name))
	}
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return Value{}, badcurl.InvalidInput(opt, "duplicate headers %q", dups)
	}
	return Value{opt: opt, list: lines}, nil
}

func headerNames(opt native.Option, v any) (Value, error) {
	names, err := list(opt, v)
	if err != nil {
		return Value{}, err
	}
	for i, n := range names {
		if !httpguts.ValidHeaderFieldName(n) {
			return Value{}, badcurl.InvalidInput(opt, "invalid header name %q", n)
		}
		names[i] = strings.ToLower(n)
	}
	if err := uniqueEntries(opt, names); err != nil {
		return Value{}, err
	}
	return Value{opt: opt, list: names}, nil
}

func protocolList(opt native.Option, v any) (Value, error) {
	protos, err := list(opt, v)
	if err != nil {
		return Value{}, err
	}
	if err := uniqueEntries(opt, protos); err != nil {
		return Value{}, err
	}
	return Value{opt: opt, list: protos}, nil
}
