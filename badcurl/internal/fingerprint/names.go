// Package fingerprint holds the TLS and HTTP/2 naming tables shared by the
// profile table and the engine, and renders JA3 and Akamai HTTP/2 fingerprint
// strings from them.
package fingerprint

import (
	"fmt"
	"strings"
)

// Cipher suite names use the OpenSSL/BoringSSL spelling that curl accepts.
var cipherIDs = map[string]uint16{
	"TLS_AES_128_GCM_SHA256":        0x1301,
	"TLS_AES_256_GCM_SHA384":        0x1302,
	"TLS_CHACHA20_POLY1305_SHA256":  0x1303,
	"ECDHE-ECDSA-AES128-GCM-SHA256": 0xc02b,
	"ECDHE-RSA-AES128-GCM-SHA256":   0xc02f,
	"ECDHE-ECDSA-AES256-GCM-SHA384": 0xc02c,
	"ECDHE-RSA-AES256-GCM-SHA384":   0xc030,
	"ECDHE-ECDSA-CHACHA20-POLY1305": 0xcca9,
	"ECDHE-RSA-CHACHA20-POLY1305":   0xcca8,
	"ECDHE-ECDSA-AES128-SHA":        0xc009,
	"ECDHE-ECDSA-AES256-SHA":        0xc00a,
	"ECDHE-RSA-AES128-SHA":          0xc013,
	"ECDHE-RSA-AES256-SHA":          0xc014,
	"ECDHE-ECDSA-AES128-SHA256":     0xc023,
	"ECDHE-ECDSA-AES256-SHA384":     0xc024,
	"ECDHE-RSA-AES128-SHA256":       0xc027,
	"ECDHE-RSA-AES256-SHA384":       0xc028,
	"ECDHE-ECDSA-DES-CBC3-SHA":      0xc008,
	"ECDHE-RSA-DES-CBC3-SHA":        0xc012,
	"AES128-GCM-SHA256":             0x009c,
	"AES256-GCM-SHA384":             0x009d,
	"AES128-SHA":                    0x002f,
	"AES256-SHA":                    0x0035,
	"AES128-SHA256":                 0x003c,
	"AES256-SHA256":                 0x003d,
	"DES-CBC3-SHA":                  0x000a,
}

var curveIDs = map[string]uint16{
	"X25519":                0x001d,
	"P-256":                 0x0017,
	"P-384":                 0x0018,
	"P-521":                 0x0019,
	"ffdhe2048":             0x0100,
	"ffdhe3072":             0x0101,
	"X25519Kyber768Draft00": 0x6399,
	"X25519MLKEM768":        0x11ec,
}

var sigAlgIDs = map[string]uint16{
	"rsa_pkcs1_sha1":         0x0201,
	"ecdsa_sha1":             0x0203,
	"rsa_pkcs1_sha256":       0x0401,
	"ecdsa_secp256r1_sha256": 0x0403,
	"rsa_pkcs1_sha384":       0x0501,
	"ecdsa_secp384r1_sha384": 0x0503,
	"rsa_pkcs1_sha512":       0x0601,
	"ecdsa_secp521r1_sha512": 0x0603,
	"rsa_pss_rsae_sha256":    0x0804,
	"rsa_pss_rsae_sha384":    0x0805,
	"rsa_pss_rsae_sha512":    0x0806,
	"ed25519":                0x0807,
}

var certCompression = map[string]uint16{
	"zlib":   1,
	"brotli": 2,
	"zstd":   3,
}

// UnknownNameError reports a name missing from one of the tables.
type UnknownNameError struct {
	Table string
	Name  string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Table, e.Name)
}

func lookup(table string, ids map[string]uint16, names []string) ([]uint16, error) {
	out := make([]uint16, 0, len(names))
	for _, n := range names {
		id, ok := ids[n]
		if !ok {
			return nil, &UnknownNameError{Table: table, Name: n}
		}
		out = append(out, id)
	}
	return out, nil
}

// CipherIDs maps cipher names to IANA identifiers.
func CipherIDs(names []string) ([]uint16, error) { return lookup("cipher", cipherIDs, names) }

// CurveIDs maps group names to IANA identifiers.
func CurveIDs(names []string) ([]uint16, error) { return lookup("curve", curveIDs, names) }

// SigAlgIDs maps signature scheme names to IANA identifiers.
func SigAlgIDs(names []string) ([]uint16, error) { return lookup("signature algorithm", sigAlgIDs, names) }

// CertCompressionIDs maps certificate compression algorithm names to RFC 8879
// identifiers.
func CertCompressionIDs(names []string) ([]uint16, error) {
	return lookup("certificate compression algorithm", certCompression, names)
}

// SplitList splits a curl-style list on ':' or ','. Blank entries are dropped.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ',' })
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
