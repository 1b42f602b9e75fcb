package badcurl

import "github.com/ditsuke/go-badcurl/badcurl/native"

// Category groups native codes for diagnostics. It never replaces the code.
type Category int

const (
	CategoryConnection Category = iota + 1
	CategoryTLS
	CategoryProtocol
	// CategoryAborted covers transfers stopped by an application callback,
	// including short writes.
	CategoryAborted
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryTLS:
		return "tls"
	case CategoryProtocol:
		return "protocol"
	case CategoryAborted:
		return "aborted by callback"
	case CategoryInternal:
		return "internal"
	default:
		return "none"
	}
}

// CategoryOf classifies code. native.OK has no category.
func CategoryOf(code native.Code) Category {
	switch code {
	case native.OK:
		return 0
	case native.CouldntResolveProxy, native.CouldntResolveHost, native.CouldntConnect,
		native.OperationTimedout, native.SendError, native.RecvError, native.Again:
		return CategoryConnection
	case native.SSLConnectError, native.SSLEngineNotFound, native.SSLEngineSetFailed,
		native.SSLCertProblem, native.SSLCipher, native.PeerFailedVerification,
		native.SSLCACert, native.SSLShutdownFailed, native.SSLIssuerError,
		native.SSLPinnedPubKeyNotMatch, native.SSLInvalidCertStatus:
		return CategoryTLS
	case native.UnsupportedProtocol, native.URLMalformat, native.WeirdServerReply,
		native.HTTP2, native.PartialFile, native.HTTPReturnedError, native.RangeError,
		native.TooManyRedirects, native.GotNothing, native.BadContentEncoding,
		native.HTTP2Stream:
		return CategoryProtocol
	case native.WriteError, native.ReadError, native.AbortedByCallback:
		return CategoryAborted
	default:
		return CategoryInternal
	}
}
