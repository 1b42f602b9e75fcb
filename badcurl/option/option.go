// Package option validates and encodes option values before they reach the
// engine. A value that is out of domain for its option is rejected with a
// badcurl.KindInvalidInput error and never passed to the engine; an encoded
// Value is applied with exactly one engine setter call.
package option

import (
	"fmt"
	"time"

	"github.com/ditsuke/go-badcurl/badcurl"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// Scope says how long a setting lives on a handle.
type Scope int

const (
	// ScopeHandle settings describe the handle (target, TLS and HTTP/2 shape,
	// timeouts) and survive a Reset.
	ScopeHandle Scope = iota
	// ScopeTransfer settings describe one request (method, body, extra
	// headers, cookies) and are cleared by a Reset.
	ScopeTransfer
)

func (s Scope) String() string {
	if s == ScopeTransfer {
		return "transfer"
	}
	return "handle"
}

// Value is an encoded option value ready for the engine.
type Value struct {
	opt  native.Option
	long int64
	str  string
	list []string
}

// Option is the option the value is for.
func (v Value) Option() native.Option { return v.opt }

// Interface returns the encoded value as int64, string or []string.
func (v Value) Interface() any {
	switch v.opt.Kind() {
	case native.KindLong, native.KindOffT:
		return v.long
	case native.KindSlist:
		return v.list
	default:
		return v.str
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%s=%v", v.opt, v.Interface())
}

// Apply hands the value to the engine with the setter matching its kind.
func (v Value) Apply(engine native.Engine, h native.Handle) native.Code {
	switch v.opt.Kind() {
	case native.KindLong, native.KindOffT:
		return engine.SetoptLong(h, v.opt, v.long)
	case native.KindString:
		return engine.SetoptString(h, v.opt, v.str)
	case native.KindSlist:
		return engine.SetoptSlist(h, v.opt, v.list)
	default:
		return native.BadFunctionArgument
	}
}

type rule struct {
	scope  Scope
	encode func(native.Option, any) (Value, error)
}

var rules = map[native.Option]rule{
	native.OptVerbose:        {ScopeHandle, boolean},
	native.OptNoProgress:     {ScopeHandle, boolean},
	native.OptFailOnError:    {ScopeHandle, boolean},
	native.OptUpload:         {ScopeTransfer, boolean},
	native.OptFollowLocation: {ScopeHandle, boolean},
	native.OptSSLVerifyPeer:  {ScopeHandle, boolean},
	native.OptSSLVerifyHost:  {ScopeHandle, verifyHost},
	native.OptMaxRedirs:      {ScopeHandle, longAtLeast(-1)},
	native.OptHTTPVersion:    {ScopeHandle, longBetween(native.HTTPVersionNone, native.HTTPVersion2PriorKnowledge)},
	native.OptTimeoutMS:      {ScopeHandle, millis},
	native.OptConnectTimeout: {ScopeHandle, millis},

	native.OptSSLEnableALPS:        {ScopeHandle, boolean},
	native.OptSSLPermuteExtensions: {ScopeHandle, boolean},
	native.OptHTTP2WindowUpdate:    {ScopeHandle, longBetween(1, 1<<31-1)},
	native.OptHTTP2StreamWeight:    {ScopeHandle, longBetween(1, 256)},
	native.OptHTTP2StreamExclusive: {ScopeHandle, boolean},

	native.OptURL:            {ScopeHandle, urlString},
	native.OptProxy:          {ScopeHandle, proxyString},
	native.OptPostFields:     {ScopeTransfer, bodyString},
	native.OptUserAgent:      {ScopeHandle, headerValue},
	native.OptCookie:         {ScopeTransfer, headerValue},
	native.OptCustomRequest:  {ScopeTransfer, method},
	native.OptAcceptEncoding: {ScopeHandle, headerValue},
	native.OptSSLCipherList:  {ScopeHandle, nameList},
	native.OptSSLECCurves:    {ScopeHandle, nameList},

	native.OptSSLSigHashAlgs:          {ScopeHandle, nameList},
	native.OptSSLCertCompression:      {ScopeHandle, nameList},
	native.OptHTTP2PseudoHeadersOrder: {ScopeHandle, pseudoOrder},
	native.OptHTTP2Settings:           {ScopeHandle, http2Settings},
	native.OptTLSExtensionOrder:       {ScopeHandle, extensionOrder},
	native.OptSSLClientHello:          {ScopeHandle, plainString},

	native.OptHTTPHeader:      {ScopeTransfer, headerLines},
	native.OptHTTPBaseHeader:  {ScopeHandle, headerLines},
	native.OptHTTPHeaderOrder: {ScopeHandle, headerNames},
	native.OptALPN:            {ScopeHandle, protocolList},

	native.OptInFileSize: {ScopeTransfer, longAtLeast(-1)},
}

// Encode validates value for opt and encodes it.
//
// Long options accept any integer type; boolean options also accept bool and
// timeouts accept time.Duration. String options accept string, and the
// list-valued string options ([]string joined with ':'). List options accept
// []string. A nil value encodes the option's default. Function and token
// options are not encodable; callbacks are registered on the handle.
func Encode(opt native.Option, value any) (Value, error) {
	r, ok := rules[opt]
	if !ok {
		switch opt.Kind() {
		case native.KindFunc, native.KindToken:
			return Value{}, badcurl.InvalidInput(opt, "callbacks and their data are set with RegisterCallback")
		}
		return Value{}, badcurl.InvalidInput(opt, "unknown option %d", int(opt))
	}
	if value == nil {
		return Default(opt), nil
	}
	return r.encode(opt, value)
}

// MustEncode is Encode for values known to be valid. It panics otherwise.
func MustEncode(opt native.Option, value any) Value {
	v, err := Encode(opt, value)
	if err != nil {
		panic(err)
	}
	return v
}

// Default returns the value that restores opt to the engine default: the
// native.LongDefault for long options, the empty string or a nil list
// otherwise.
func Default(opt native.Option) Value {
	v := Value{opt: opt}
	switch opt.Kind() {
	case native.KindLong, native.KindOffT:
		v.long = native.LongDefault(opt)
	}
	return v
}

// ScopeOf reports opt's scope. Callbacks are handle scoped.
func ScopeOf(opt native.Option) Scope {
	return rules[opt].scope
}

// Known lists every encodable option.
func Known() []native.Option {
	out := make([]native.Option, 0, len(rules))
	for opt := range rules {
		out = append(out, opt)
	}
	return out
}

// Millis converts a duration to the engine's millisecond timeouts, rounding up
// so that a positive duration never becomes "no timeout".
func Millis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}
