// Package native declares the calling convention of the transfer engine that
// badcurl drives: an opaque per-transfer handle, integer option codes, integer
// status codes and fixed-signature callbacks that receive a raw buffer, a length
// and an opaque user-data token.
//
// The layout mirrors libcurl's easy interface closely enough that the same
// option and status numbering can be used, but the engine itself is an ordinary
// Go value implementing Engine. The tlsclient package provides the production
// engine; nativetest provides a scriptable in-memory one.
//
// Engines are not required to be safe for concurrent use of a single Handle.
// Distinct handles may be used from distinct goroutines.
package native

import "unsafe"

// Handle is an engine-allocated opaque transfer handle. The zero Handle is never
// returned for a live transfer.
type Handle uintptr

// Token is the opaque user-data value passed back to callbacks. Callers use the
// address of the storage holding their closure.
type Token unsafe.Pointer

// GlobalInit flags.
const (
	GlobalSSL     int64 = 1 << 0
	GlobalWin32   int64 = 1 << 1
	GlobalAll           = GlobalSSL | GlobalWin32
	GlobalDefault       = GlobalAll
)

// VersionInfo is the engine's self-description.
type VersionInfo struct {
	Version   string
	Protocols []string
	Features  []string
}

// Engine is the native transfer engine.
//
// Option setters follow libcurl's reset conventions: an empty string, a nil list,
// a nil function or a nil token restore the option's default.
//
// There is intentionally no global cleanup entry point.
type Engine interface {
	// GlobalInit performs process-wide setup. It must be called once before
	// EasyInit.
	GlobalInit(flags int64) Code

	// EasyInit allocates a handle, returning 0 on failure.
	EasyInit() Handle
	// EasyCleanup releases h. h must not be used afterwards.
	EasyCleanup(h Handle)
	// EasyReset restores every option of h to its default while keeping the
	// handle and its connection cache.
	EasyReset(h Handle)

	SetoptLong(h Handle, opt Option, v int64) Code
	SetoptString(h Handle, opt Option, v string) Code
	SetoptSlist(h Handle, opt Option, v []string) Code
	SetoptFunc(h Handle, opt Option, fn any) Code
	SetoptToken(h Handle, opt Option, t Token) Code

	// Perform runs one blocking transfer with the options currently set on h.
	Perform(h Handle) Code

	// Getinfo reads a value recorded by the last Perform on h.
	Getinfo(h Handle, info Info) (any, Code)
	// ErrorDetail returns a human-readable description of the last failure on
	// h, or "" when nothing failed.
	ErrorDetail(h Handle) string

	Strerror(c Code) string
	Version() VersionInfo
}
