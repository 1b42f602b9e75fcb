// Package badcurl is a synchronous HTTP(S) client layer over a native-style
// transfer engine, with browser impersonation profiles that make outgoing TLS
// and HTTP/2 fingerprints match real browsers.
//
// The package itself holds the process-wide pieces: engine initialization and
// the error taxonomy shared by every sub-package. Transfers are driven through
// the easy package:
//
//	h := easy.New()
//	defer h.Close()
//
//	if err := h.URL("https://example.com/"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.Impersonate(profiles.Chrome120, true); err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.BodyWriter(os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.Perform(); err != nil {
//	    log.Fatal(err)
//	}
//
// Errors are always *Error values. Match them with errors.Is against
// ErrInvalidInput, ErrNative, ErrCallbackPanic, ErrPoisoned and
// ErrInitialization, or with errors.As to read the native code and category.
//
// Initialization happens lazily on the first handle. Call Init at the start of
// main to surface a failure before any goroutines are started. No global
// teardown is ever performed.
package badcurl
