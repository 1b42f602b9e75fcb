// Package tlsclient is the production transfer engine. It implements
// native.Engine on top of github.com/bogdanfinn/tls-client, whose uTLS
// ClientHello templates and fhttp transport give requests the TLS and HTTP/2
// shape of a real browser.
//
// Each engine handle keeps its options, its registered callbacks, a cookie jar
// and a small cache of tls-client clients keyed by the connection-level options
// (ClientHello template, proxy, timeouts, redirect policy, verification). The
// cache survives EasyReset, so a reset handle reuses its connections the way a
// curl handle keeps its connection cache.
//
// What each option controls:
//   - SSL_CLIENT_HELLO selects a template from tls-client's
//     profiles.MappedTLSClients, e.g. "chrome_120" or "safari_ios_17_0"; an
//     unknown name is rejected with SSLEngineNotFound.
//   - Cipher, curve, signature algorithm and extension lists are validated
//     against the engine's name tables and reported through the fingerprint
//     infos; the bytes on the wire come from the template.
//   - HTTPBASEHEADER, HTTPHEADER, USERAGENT and COOKIE build the request
//     headers; HTTPHEADER_ORDER and HTTP2_PSEUDO_HEADERS_ORDER fix their order
//     through fhttp's ordering keys.
//
// Request bodies from a read callback are read completely before the request
// is sent, so callbacks only ever run on the goroutine calling Perform.
package tlsclient
