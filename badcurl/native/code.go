package native

import "fmt"

// Code is an engine status code. Values match libcurl's CURLcode.
type Code int

const (
	OK                      Code = 0
	UnsupportedProtocol     Code = 1
	FailedInit              Code = 2
	URLMalformat            Code = 3
	NotBuiltIn              Code = 4
	CouldntResolveProxy     Code = 5
	CouldntResolveHost      Code = 6
	CouldntConnect          Code = 7
	WeirdServerReply        Code = 8
	HTTP2                   Code = 16
	PartialFile             Code = 18
	HTTPReturnedError       Code = 22
	WriteError              Code = 23
	UploadFailed            Code = 25
	ReadError               Code = 26
	OutOfMemory             Code = 27
	OperationTimedout       Code = 28
	RangeError              Code = 33
	SSLConnectError         Code = 35
	FunctionNotFound        Code = 41
	AbortedByCallback       Code = 42
	BadFunctionArgument     Code = 43
	TooManyRedirects        Code = 47
	UnknownOption           Code = 48
	GotNothing              Code = 52
	SSLEngineNotFound       Code = 53
	SSLEngineSetFailed      Code = 54
	SendError               Code = 55
	RecvError               Code = 56
	SSLCertProblem          Code = 58
	SSLCipher               Code = 59
	PeerFailedVerification  Code = 60
	BadContentEncoding      Code = 61
	SSLCACert               Code = 77
	SSLShutdownFailed       Code = 80
	Again                   Code = 81
	SSLIssuerError          Code = 83
	SSLPinnedPubKeyNotMatch Code = 90
	SSLInvalidCertStatus    Code = 91
	HTTP2Stream             Code = 92
)

var strerror = map[Code]string{
	OK:                      "No error",
	UnsupportedProtocol:     "Unsupported protocol",
	FailedInit:              "Failed initialization",
	URLMalformat:            "URL using bad/illegal format or missing URL",
	NotBuiltIn:              "A requested feature, protocol or option was not found built-in in this libcurl due to a build-time decision.",
	CouldntResolveProxy:     "Couldn't resolve proxy name",
	CouldntResolveHost:      "Couldn't resolve host name",
	CouldntConnect:          "Couldn't connect to server",
	WeirdServerReply:        "Weird server reply",
	HTTP2:                   "Error in the HTTP2 framing layer",
	PartialFile:             "Transferred a partial file",
	HTTPReturnedError:       "HTTP response code said error",
	WriteError:              "Failed writing received data to disk/application",
	UploadFailed:            "Upload failed (at start/before it took off)",
	ReadError:               "Failed to open/read local data from file/application",
	OutOfMemory:             "Out of memory",
	OperationTimedout:       "Timeout was reached",
	RangeError:              "Requested range was not delivered by the server",
	SSLConnectError:         "SSL connect error",
	FunctionNotFound:        "A required function in the library was not found",
	AbortedByCallback:       "Operation was aborted by an application callback",
	BadFunctionArgument:     "A libcurl function was given a bad argument",
	TooManyRedirects:        "Number of redirects hit maximum amount",
	UnknownOption:           "An unknown option was passed in to libcurl",
	GotNothing:              "Server returned nothing (no headers, no data)",
	SSLEngineNotFound:       "SSL crypto engine not found",
	SSLEngineSetFailed:      "Can not set SSL crypto engine as default",
	SendError:               "Failed sending data to the peer",
	RecvError:               "Failure when receiving data from the peer",
	SSLCertProblem:          "Problem with the local SSL certificate",
	SSLCipher:               "Couldn't use specified SSL cipher",
	PeerFailedVerification:  "SSL peer certificate or SSH remote key was not OK",
	BadContentEncoding:      "Unrecognized or bad HTTP Content or Transfer-Encoding",
	SSLCACert:               "Problem with the SSL CA cert (path? access rights?)",
	SSLShutdownFailed:       "Failed to shut down the SSL connection",
	Again:                   "Socket not ready for send/recv",
	SSLIssuerError:          "SSL server certificate issuer check failed",
	SSLPinnedPubKeyNotMatch: "SSL public key does not match pinned public key",
	SSLInvalidCertStatus:    "SSL server certificate status verification FAILED",
	HTTP2Stream:             "Stream error in the HTTP/2 framing layer",
}

// Strerror is the default status-to-text table. Engines may delegate to it.
func Strerror(c Code) string {
	if s, ok := strerror[c]; ok {
		return s
	}
	return "Unknown error"
}

func (c Code) String() string {
	return fmt.Sprintf("%d (%s)", int(c), Strerror(c))
}
