package badcurl

import (
	"github.com/samber/lo"

	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// Version returns the process engine's version string and supported protocols.
func Version() native.VersionInfo {
	return Engine().Version()
}

// SupportsProtocol reports whether the process engine lists protocol.
func SupportsProtocol(protocol string) bool {
	return lo.Contains(Version().Protocols, protocol)
}
