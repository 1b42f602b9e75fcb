package fingerprint

import (
	"fmt"
	"strconv"
	"strings"
)

// TLSVersion12 is the legacy ClientHello version every modern browser sends.
const TLSVersion12 = 771

func joinIDs[T uint8 | uint16 | uint32](ids []T, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, sep)
}

// JA3 renders the JA3 fingerprint string
// "version,ciphers,extensions,curves,pointformats". GREASE values are expected
// to be absent from the inputs.
func JA3(version uint16, ciphers, extensions, curves []uint16, pointFormats []uint8) string {
	return fmt.Sprintf("%d,%s,%s,%s,%s",
		version,
		joinIDs(ciphers, "-"),
		joinIDs(extensions, "-"),
		joinIDs(curves, "-"),
		joinIDs(pointFormats, "-"),
	)
}

// ParseExtensionOrder parses a '-' separated list of extension identifiers.
func ParseExtensionOrder(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	out := make([]uint16, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad extension id %q: %w", p, err)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

// FormatExtensionOrder is the inverse of ParseExtensionOrder.
func FormatExtensionOrder(ids []uint16) string { return joinIDs(ids, "-") }

// Setting is one HTTP/2 SETTINGS parameter.
type Setting struct {
	ID    uint16
	Value uint32
}

// HTTP/2 SETTINGS identifiers (RFC 9113 §6.5.2).
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
	SettingNoRFC7540Priorities  uint16 = 0x9
)

// FormatSettings renders settings as "id:value;id:value".
func FormatSettings(settings []Setting) string {
	parts := make([]string, len(settings))
	for i, s := range settings {
		parts[i] = fmt.Sprintf("%d:%d", s.ID, s.Value)
	}
	return strings.Join(parts, ";")
}

// ParseSettings parses the FormatSettings form.
func ParseSettings(s string) ([]Setting, error) {
	if s == "" {
		return nil, nil
	}
	var out []Setting
	for _, pair := range strings.Split(s, ";") {
		id, val, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("bad HTTP/2 setting %q", pair)
		}
		i, err := strconv.ParseUint(strings.TrimSpace(id), 10, 16)
		if err != nil || i == 0 {
			return nil, fmt.Errorf("bad HTTP/2 setting id %q", id)
		}
		v, err := strconv.ParseUint(strings.TrimSpace(val), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad HTTP/2 setting value %q", val)
		}
		out = append(out, Setting{ID: uint16(i), Value: uint32(v)})
	}
	return out, nil
}

var pseudoLetters = map[string]byte{
	":method":    'm',
	":authority": 'a',
	":scheme":    's',
	":path":      'p',
}

// PseudoHeaders lists the request pseudo-headers in canonical order.
var PseudoHeaders = []string{":method", ":authority", ":scheme", ":path"}

// EncodePseudoOrder renders pseudo-header names as curl-impersonate's
// four-letter form, e.g. "masp".
func EncodePseudoOrder(order []string) (string, error) {
	var b strings.Builder
	for _, h := range order {
		l, ok := pseudoLetters[h]
		if !ok {
			return "", fmt.Errorf("unknown pseudo-header %q", h)
		}
		b.WriteByte(l)
	}
	return b.String(), nil
}

// DecodePseudoOrder parses the four-letter form. Every pseudo-header must be
// named exactly once.
func DecodePseudoOrder(s string) ([]string, error) {
	if len(s) != len(pseudoLetters) {
		return nil, fmt.Errorf("pseudo-header order %q must name all %d pseudo-headers", s, len(pseudoLetters))
	}
	seen := make(map[byte]bool, len(s))
	out := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		var name string
		for h, l := range pseudoLetters {
			if l == s[i] {
				name = h
			}
		}
		if name == "" || seen[s[i]] {
			return nil, fmt.Errorf("bad pseudo-header order %q", s)
		}
		seen[s[i]] = true
		out = append(out, name)
	}
	return out, nil
}

// Akamai renders the Akamai HTTP/2 fingerprint
// "SETTINGS|WINDOW_UPDATE|PRIORITY|PSEUDO_HEADER_ORDER". PRIORITY is "0" since
// no PRIORITY frames are sent ahead of the request.
func Akamai(settings []Setting, windowUpdate uint32, pseudoOrder string) string {
	letters := make([]string, len(pseudoOrder))
	for i := range pseudoOrder {
		letters[i] = string(pseudoOrder[i])
	}
	return fmt.Sprintf("%s|%d|0|%s", FormatSettings(settings), windowUpdate, strings.Join(letters, ","))
}
