package native

import "fmt"

// Option is an engine option code. The numeric range encodes the value type the
// same way libcurl's CURLOPTTYPE_* bases do.
type Option int

const (
	typeLong     Option = 0
	typeObject   Option = 10000
	typeFunction Option = 20000
	typeOffT     Option = 30000
)

// ValueKind is the value type an option accepts.
type ValueKind int

const (
	KindLong ValueKind = iota + 1
	KindString
	KindSlist
	KindFunc
	KindToken
	KindOffT
)

func (k ValueKind) String() string {
	switch k {
	case KindLong:
		return "long"
	case KindString:
		return "string"
	case KindSlist:
		return "slist"
	case KindFunc:
		return "function"
	case KindToken:
		return "token"
	case KindOffT:
		return "off_t"
	default:
		return "unknown"
	}
}

// Long options.
const (
	OptVerbose        = typeLong + 41
	OptNoProgress     = typeLong + 43
	OptFailOnError    = typeLong + 45
	OptUpload         = typeLong + 46
	OptFollowLocation = typeLong + 52
	OptSSLVerifyPeer  = typeLong + 64
	OptMaxRedirs      = typeLong + 68
	OptSSLVerifyHost  = typeLong + 81
	OptHTTPVersion    = typeLong + 84
	OptTimeoutMS      = typeLong + 155
	OptConnectTimeout = typeLong + 156

	// Impersonation extensions.
	OptSSLEnableALPS        = typeLong + 1001
	OptSSLPermuteExtensions = typeLong + 1002
	OptHTTP2WindowUpdate    = typeLong + 1003
	OptHTTP2StreamWeight    = typeLong + 1004
	OptHTTP2StreamExclusive = typeLong + 1005
)

// String and list options.
const (
	OptWriteData      = typeObject + 1
	OptURL            = typeObject + 2
	OptProxy          = typeObject + 4
	OptReadData       = typeObject + 9
	OptPostFields     = typeObject + 15
	OptUserAgent      = typeObject + 18
	OptCookie         = typeObject + 22
	OptHTTPHeader     = typeObject + 23
	OptHeaderData     = typeObject + 29
	OptCustomRequest  = typeObject + 36
	OptXferInfoData   = typeObject + 57
	OptSSLCipherList  = typeObject + 83
	OptDebugData      = typeObject + 95
	OptAcceptEncoding = typeObject + 102
	OptSSLECCurves    = typeObject + 298

	// Impersonation extensions.
	OptSSLSigHashAlgs          = typeObject + 1001
	OptSSLCertCompression      = typeObject + 1002
	OptHTTP2PseudoHeadersOrder = typeObject + 1003
	OptHTTP2Settings           = typeObject + 1004
	OptTLSExtensionOrder       = typeObject + 1005
	OptSSLClientHello          = typeObject + 1006
	OptHTTPBaseHeader          = typeObject + 1008
	OptHTTPHeaderOrder         = typeObject + 1009
	OptALPN                    = typeObject + 1010
)

// Function options.
const (
	OptWriteFunction    = typeFunction + 11
	OptReadFunction     = typeFunction + 12
	OptHeaderFunction   = typeFunction + 79
	OptDebugFunction    = typeFunction + 94
	OptXferInfoFunction = typeFunction + 219
)

// Large-offset options.
const (
	OptInFileSize = typeOffT + 115
)

// Kind reports the value type opt accepts.
func (o Option) Kind() ValueKind {
	switch o {
	case OptHTTPHeader, OptHTTPBaseHeader, OptHTTPHeaderOrder, OptALPN:
		return KindSlist
	case OptWriteData, OptReadData, OptHeaderData, OptXferInfoData, OptDebugData:
		return KindToken
	}
	switch {
	case o >= typeOffT:
		return KindOffT
	case o >= typeFunction:
		return KindFunc
	case o >= typeObject:
		return KindString
	default:
		return KindLong
	}
}

// longDefaults lists the long and off_t options whose value on a fresh or
// reset handle is not 0.
var longDefaults = map[Option]int64{
	OptNoProgress:        1,
	OptSSLVerifyPeer:     1,
	OptSSLVerifyHost:     2,
	OptMaxRedirs:         30,
	OptHTTP2StreamWeight: 16,
	OptInFileSize:        -1,
}

// LongDefault is the value a long or off_t option holds on a fresh handle.
// Engines start every handle from these values.
func LongDefault(opt Option) int64 {
	return longDefaults[opt]
}

var optionNames = map[Option]string{
	OptVerbose:                 "VERBOSE",
	OptNoProgress:              "NOPROGRESS",
	OptFailOnError:             "FAILONERROR",
	OptUpload:                  "UPLOAD",
	OptFollowLocation:          "FOLLOWLOCATION",
	OptSSLVerifyPeer:           "SSL_VERIFYPEER",
	OptMaxRedirs:               "MAXREDIRS",
	OptSSLVerifyHost:           "SSL_VERIFYHOST",
	OptHTTPVersion:             "HTTP_VERSION",
	OptTimeoutMS:               "TIMEOUT_MS",
	OptConnectTimeout:          "CONNECTTIMEOUT_MS",
	OptSSLEnableALPS:           "SSL_ENABLE_ALPS",
	OptSSLPermuteExtensions:    "SSL_PERMUTE_EXTENSIONS",
	OptHTTP2WindowUpdate:       "HTTP2_WINDOW_UPDATE",
	OptHTTP2StreamWeight:       "HTTP2_STREAM_WEIGHT",
	OptHTTP2StreamExclusive:    "HTTP2_STREAM_EXCLUSIVE",
	OptWriteData:               "WRITEDATA",
	OptURL:                     "URL",
	OptProxy:                   "PROXY",
	OptReadData:                "READDATA",
	OptPostFields:              "COPYPOSTFIELDS",
	OptUserAgent:               "USERAGENT",
	OptCookie:                  "COOKIE",
	OptHTTPHeader:              "HTTPHEADER",
	OptHeaderData:              "HEADERDATA",
	OptCustomRequest:           "CUSTOMREQUEST",
	OptXferInfoData:            "XFERINFODATA",
	OptSSLCipherList:           "SSL_CIPHER_LIST",
	OptDebugData:               "DEBUGDATA",
	OptAcceptEncoding:          "ACCEPT_ENCODING",
	OptSSLECCurves:             "SSL_EC_CURVES",
	OptSSLSigHashAlgs:          "SSL_SIG_HASH_ALGS",
	OptSSLCertCompression:      "SSL_CERT_COMPRESSION",
	OptHTTP2PseudoHeadersOrder: "HTTP2_PSEUDO_HEADERS_ORDER",
	OptHTTP2Settings:           "HTTP2_SETTINGS",
	OptTLSExtensionOrder:       "TLS_EXTENSION_ORDER",
	OptSSLClientHello:          "SSL_CLIENT_HELLO",
	OptHTTPBaseHeader:          "HTTPBASEHEADER",
	OptHTTPHeaderOrder:         "HTTPHEADER_ORDER",
	OptALPN:                    "ALPN",
	OptWriteFunction:           "WRITEFUNCTION",
	OptReadFunction:            "READFUNCTION",
	OptHeaderFunction:          "HEADERFUNCTION",
	OptDebugFunction:           "DEBUGFUNCTION",
	OptXferInfoFunction:        "XFERINFOFUNCTION",
	OptInFileSize:              "INFILESIZE_LARGE",
}

// Known reports whether opt is part of the engine ABI.
func (o Option) Known() bool {
	_, ok := optionNames[o]
	return ok
}

func (o Option) String() string {
	if n, ok := optionNames[o]; ok {
		return n
	}
	return fmt.Sprintf("OPTION(%d)", int(o))
}

// HTTP versions accepted by OptHTTPVersion.
const (
	HTTPVersionNone int64 = iota
	HTTPVersion1_0
	HTTPVersion1_1
	HTTPVersion2_0
	HTTPVersion2TLS
	HTTPVersion2PriorKnowledge
)

// Info selects a value for Engine.Getinfo.
type Info int

const (
	InfoResponseCode Info = iota + 1
	InfoEffectiveURL
	InfoHTTPVersion
	InfoTotalTime
	InfoSizeDownload
	InfoSizeUpload
	// InfoTLSFingerprint is the JA3 string of the configured ClientHello.
	InfoTLSFingerprint
	// InfoHTTP2Fingerprint is the Akamai-style HTTP/2 fingerprint
	// (SETTINGS|WINDOW_UPDATE|PRIORITY|PSEUDO_HEADER_ORDER).
	InfoHTTP2Fingerprint
)
