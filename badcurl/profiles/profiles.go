// Package profiles is the static catalog of browser impersonation profiles.
//
// Each profile bundles the TLS ClientHello shape, HTTP/2 connection preface,
// default request headers and User-Agent captured from a real browser build.
// The table is built once at package initialization and never mutated; Lookup
// is a pure function. Adding a profile means adding a table entry together
// with the capture it was taken from.
package profiles

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// ID identifies a browser build.
type ID int

const (
	Chrome104 ID = iota + 1
	Chrome110
	Chrome117
	Chrome120
	Chrome124
	Chrome131
	Chrome133
	Firefox117
	Firefox120
	Firefox133
	Safari16_0
	SafariIOS17_0

	numProfiles = iota
)

// TLS describes the ClientHello.
type TLS struct {
	// ClientHello names the engine's ClientHello template for this build.
	ClientHello     string
	Ciphers         []string
	Curves          []string
	SigAlgs         []string
	Extensions      []uint16
	ALPN            []string
	ALPS            bool
	CertCompression []string
	// PermuteExtensions is set for builds that shuffle extension order on
	// every connection (Chrome 110+). Extensions then holds the unshuffled
	// order used for the golden fingerprint.
	PermuteExtensions bool
}

// HTTP2 describes the HTTP/2 connection preface and request framing.
type HTTP2 struct {
	Settings          []fingerprint.Setting
	WindowUpdate      uint32
	PseudoHeaderOrder []string
	StreamWeight      int
	StreamExclusive   bool
}

// Profile is one impersonation bundle.
type Profile struct {
	ID      ID
	Name    string
	Browser string
	Version string
	// Origin documents the capture the values were taken from.
	Origin string

	TLS   TLS
	HTTP2 HTTP2

	// DefaultHeaders are "Name: value" lines sent with every request, and
	// HeaderOrder the lower-case header names in wire order (including
	// user-agent).
	DefaultHeaders []string
	HeaderOrder    []string
	UserAgent      string

	// HTTPVersion is the native.HTTPVersion* value the browser negotiates.
	HTTPVersion int64
}

// JA3 is the fingerprint of the unpermuted ClientHello.
func (p Profile) JA3() string {
	ciphers, err := fingerprint.CipherIDs(p.TLS.Ciphers)
	if err != nil {
		panic(fmt.Sprintf("profiles: %s: %v", p.Name, err))
	}
	curves, err := fingerprint.CurveIDs(p.TLS.Curves)
	if err != nil {
		panic(fmt.Sprintf("profiles: %s: %v", p.Name, err))
	}
	return fingerprint.JA3(fingerprint.TLSVersion12, ciphers, p.TLS.Extensions, curves, []uint8{0})
}

// Akamai is the HTTP/2 fingerprint.
func (p Profile) Akamai() string {
	order, err := fingerprint.EncodePseudoOrder(p.HTTP2.PseudoHeaderOrder)
	if err != nil {
		panic(fmt.Sprintf("profiles: %s: %v", p.Name, err))
	}
	return fingerprint.Akamai(p.HTTP2.Settings, p.HTTP2.WindowUpdate, order)
}

func (id ID) String() string {
	if id < 1 || id > numProfiles {
		return fmt.Sprintf("ID(%d)", int(id))
	}
	return table[id].Name
}

// Lookup returns the bundle for id. Every declared ID has an entry.
func Lookup(id ID) Profile {
	return table[id]
}

// All lists every profile ID in declaration order.
func All() []ID {
	ids := make([]ID, 0, numProfiles)
	for id := ID(1); id <= numProfiles; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Names lists every profile name in declaration order.
func Names() []string {
	return lo.Map(All(), func(id ID, _ int) string { return id.String() })
}

// ParseID resolves a profile name such as "chrome120" or "Chrome_120".
func ParseID(name string) (ID, error) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", ".", "", " ", "").Replace(name))
	if id, ok := byName[key]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown impersonation profile %q (known: %s)", name, strings.Join(Names(), ", "))
}

var (
	table  [numProfiles + 1]Profile
	byName = make(map[string]ID, numProfiles)
)

func init() {
	for _, p := range catalog() {
		table[p.ID] = p
		byName[strings.ReplaceAll(p.Name, "_", "")] = p.ID
	}
	for id := ID(1); id <= numProfiles; id++ {
		if table[id].ID != id {
			panic(fmt.Sprintf("profiles: no table entry for profile %d", int(id)))
		}
	}
}

// httpVersionFor returns the native HTTP version implied by alpn.
func httpVersionFor(alpn []string) int64 {
	if lo.Contains(alpn, "h2") {
		return native.HTTPVersion2TLS
	}
	return native.HTTPVersion1_1
}
