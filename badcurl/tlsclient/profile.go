package tlsclient

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bogdanfinn/fhttp/http2"
	tls_client "github.com/bogdanfinn/tls-client"
	tlsprofiles "github.com/bogdanfinn/tls-client/profiles"
	tls "github.com/bogdanfinn/utls"
	"github.com/samber/lo"

	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// tlsShape is the ClientHello described by the handle's TLS options. With no
// cipher list set the SSL_CLIENT_HELLO template is sent as is.
type tlsShape struct {
	ciphers         string
	curves          string
	sigAlgs         string
	extensions      string
	alpn            string
	alps            bool
	certCompression string
}

// h2Shape is the HTTP/2 preface described by the handle's options. Zero
// fields keep the template's value.
type h2Shape struct {
	settings     string
	windowUpdate int64
	weight       int64
	exclusive    bool
	pseudoOrder  string
}

func (h *handle) tlsShape() tlsShape {
	return tlsShape{
		ciphers:         h.strs[native.OptSSLCipherList],
		curves:          h.strs[native.OptSSLECCurves],
		sigAlgs:         h.strs[native.OptSSLSigHashAlgs],
		extensions:      h.strs[native.OptTLSExtensionOrder],
		alpn:            strings.Join(h.lists[native.OptALPN], ","),
		alps:            h.flag(native.OptSSLEnableALPS),
		certCompression: h.strs[native.OptSSLCertCompression],
	}
}

func (h *handle) h2Shape() h2Shape {
	shape := h2Shape{
		settings:    h.strs[native.OptHTTP2Settings],
		pseudoOrder: h.strs[native.OptHTTP2PseudoHeadersOrder],
	}
	shape.windowUpdate, _ = h.longSet(native.OptHTTP2WindowUpdate)
	if weight, ok := h.longSet(native.OptHTTP2StreamWeight); ok {
		shape.weight = weight
		shape.exclusive = h.flag(native.OptHTTP2StreamExclusive)
	}
	return shape
}

// Values used when the corresponding option is unset.
var (
	defaultCurves     = []uint16{0x001d, 0x0017, 0x0018}
	defaultSigAlgs    = []uint16{0x0403, 0x0804, 0x0401, 0x0503, 0x0805, 0x0501, 0x0806, 0x0601}
	defaultExtensions = []uint16{0, 23, 65281, 10, 11, 35, 16, 13, 51, 45, 43}
	defaultALPN       = []string{"h2", "http/1.1"}
)

// buildableExtensions are the extensions a ClientHello can be built with.
var buildableExtensions = []uint16{
	tls.ExtensionServerName,
	tls.ExtensionStatusRequest,
	tls.ExtensionSupportedCurves,
	tls.ExtensionSupportedPoints,
	tls.ExtensionSignatureAlgorithms,
	tls.ExtensionALPN,
	tls.ExtensionSCT,
	tls.ExtensionPadding,
	tls.ExtensionExtendedMasterSecret,
	tls.ExtensionCompressCertificate,
	tls.ExtensionRecordSizeLimit,
	tls.ExtensionDelegatedCredentials,
	tls.ExtensionSessionTicket,
	tls.ExtensionSupportedVersions,
	tls.ExtensionPSKModes,
	tls.ExtensionKeyShare,
	tls.ExtensionNextProtoNeg,
	tls.ExtensionALPSOld,
	tls.ExtensionALPS,
	tls.ExtensionECH,
	tls.ExtensionRenegotiationInfo,
}

// Key share groups by tls-client name. A hybrid group is sent together with
// the classic group that follows it.
var (
	keyShareNames = map[uint16]string{
		0x001d: "X25519",
		0x0017: "P256",
		0x0018: "P384",
		0x0019: "P521",
		0x6399: "X25519Kyber768",
		0x11ec: "X25519MLKEM768",
	}
	hybridGroups = []uint16{0x6399, 0x11ec}
)

// Fixed parts of the ClientHello that no option describes.
var (
	delegatedCredentialAlgs = []string{"0403", "0503", "0603", "0203"}
	echCipherSuites         = []tls_client.CandidateCipherSuites{{KdfId: "HKDF_SHA256", AeadId: "AEAD_AES_128_GCM"}}
	echPayloadLengths       = []uint16{128, 160, 192, 224}
)

const recordSizeLimit = 0x4001

// clientHello is a resolved tlsShape.
type clientHello struct {
	ciphers         []uint16
	curves          []uint16
	sigAlgs         []uint16
	extensions      []uint16
	alpn            []string
	alps            bool
	certCompression []string
}

func (s tlsShape) resolve() (clientHello, native.Code, error) {
	var hello clientHello
	var err error
	if hello.ciphers, err = fingerprint.CipherIDs(fingerprint.SplitList(s.ciphers)); err != nil {
		return hello, native.SSLCipher, err
	}
	hello.curves = defaultCurves
	if s.curves != "" {
		if hello.curves, err = fingerprint.CurveIDs(fingerprint.SplitList(s.curves)); err != nil {
			return hello, native.SSLCipher, err
		}
	}
	hello.sigAlgs = defaultSigAlgs
	if s.sigAlgs != "" {
		if hello.sigAlgs, err = fingerprint.SigAlgIDs(fingerprint.SplitList(s.sigAlgs)); err != nil {
			return hello, native.SSLCipher, err
		}
	}
	hello.alpn = defaultALPN
	if s.alpn != "" {
		hello.alpn = strings.Split(s.alpn, ",")
	}
	hello.alps = s.alps
	if s.certCompression != "" {
		names := fingerprint.SplitList(s.certCompression)
		if _, err = fingerprint.CertCompressionIDs(names); err != nil {
			return hello, native.BadFunctionArgument, err
		}
		hello.certCompression = names
	}

	exts := defaultExtensions
	if s.extensions != "" {
		if exts, err = fingerprint.ParseExtensionOrder(s.extensions); err != nil {
			return hello, native.BadFunctionArgument, err
		}
	}
	if unknown := lo.Without(exts, buildableExtensions...); len(unknown) > 0 {
		return hello, native.NotBuiltIn, fmt.Errorf("cannot build TLS extensions %v", unknown)
	}
	hello.extensions = lo.Filter(exts, func(id uint16, _ int) bool { return hello.carries(id) })
	return hello, native.OK, nil
}

// carries reports whether the options give extension id something to send.
// Extensions without data are left out of the ClientHello.
func (c clientHello) carries(id uint16) bool {
	switch id {
	case tls.ExtensionALPN:
		return len(c.alpn) > 0
	case tls.ExtensionALPSOld, tls.ExtensionALPS:
		return c.alps && slices.Contains(c.alpn, "h2")
	case tls.ExtensionCompressCertificate:
		return len(c.certCompression) > 0
	}
	return true
}

// ja3 renders the hello's JA3 string. With grease set, GREASE placeholders go
// where Chromium puts them: first cipher, first curve, first extension and
// last extension before padding.
func (c clientHello) ja3(grease bool) string {
	ciphers, curves, exts := c.ciphers, c.curves, c.extensions
	if grease {
		ciphers = slices.Concat([]uint16{tls.GREASE_PLACEHOLDER}, ciphers)
		curves = slices.Concat([]uint16{tls.GREASE_PLACEHOLDER}, curves)
		exts = slices.Concat([]uint16{tls.GREASE_PLACEHOLDER}, exts)
		if n := len(exts); exts[n-1] == tls.ExtensionPadding {
			exts = slices.Insert(exts, n-1, uint16(tls.GREASE_PLACEHOLDER))
		} else {
			exts = append(exts, tls.GREASE_PLACEHOLDER)
		}
	}
	return fingerprint.JA3(fingerprint.TLSVersion12, ciphers, exts, curves, []uint8{0})
}

func (c clientHello) keyShares(grease bool) []string {
	var shares []string
	if grease {
		shares = append(shares, "GREASE")
	}
	for _, id := range c.curves {
		name, ok := keyShareNames[id]
		if !ok {
			continue
		}
		shares = append(shares, name)
		if !slices.Contains(hybridGroups, id) {
			break
		}
	}
	return shares
}

// specFactory returns the factory tls-client builds each connection's ClientHello
// with.
func (c clientHello) specFactory(grease bool) (func() (tls.ClientHelloSpec, error), error) {
	versions := []string{"1.3", "1.2"}
	if grease {
		versions = slices.Concat([]string{"GREASE"}, versions)
	}
	sigAlgs := lo.Map(c.sigAlgs, func(id uint16, _ int) string { return fmt.Sprintf("%04x", id) })
	var alps []string
	if c.carries(tls.ExtensionALPS) {
		alps = []string{"h2"}
	}
	return tls_client.GetSpecFactoryFromJa3String(c.ja3(grease), sigAlgs, delegatedCredentialAlgs, versions,
		c.keyShares(grease), c.alpn, alps, echCipherSuites, echPayloadLengths, c.certCompression, recordSizeLimit)
}

// greases reports whether the template sends GREASE values.
func greases(template tlsprofiles.ClientProfile) bool {
	spec, err := template.GetClientHelloSpec()
	return err == nil && len(spec.CipherSuites) > 0 && spec.CipherSuites[0] == tls.GREASE_PLACEHOLDER
}

// profile returns the tls-client profile for cfg: the named template with its
// ClientHello and HTTP/2 preface replaced by whatever the handle's options
// describe.
func (cfg clientConfig) profile() (tlsprofiles.ClientProfile, native.Code, error) {
	template, ok := tlsprofiles.MappedTLSClients[cfg.hello]
	if !ok {
		return tlsprofiles.ClientProfile{}, native.SSLEngineNotFound, fmt.Errorf("%s %q", ErrUnknownHello, cfg.hello)
	}

	id := template.GetClientHelloId()
	if cfg.tls.ciphers != "" {
		hello, code, err := cfg.tls.resolve()
		if code != native.OK {
			return tlsprofiles.ClientProfile{}, code, err
		}
		factory, err := hello.specFactory(greases(template))
		if err != nil {
			return tlsprofiles.ClientProfile{}, native.BadFunctionArgument, err
		}
		id = tls.ClientHelloID{Client: id.Client, Version: id.Version + "-custom", SpecFactory: factory}
	}

	settings, order, priorities := template.GetSettings(), template.GetSettingsOrder(), template.GetPriorities()
	if cfg.h2.settings != "" {
		parsed, err := fingerprint.ParseSettings(cfg.h2.settings)
		if err != nil {
			return tlsprofiles.ClientProfile{}, native.BadFunctionArgument, err
		}
		settings = make(map[http2.SettingID]uint32, len(parsed))
		order = make([]http2.SettingID, 0, len(parsed))
		for _, s := range parsed {
			settings[http2.SettingID(s.ID)] = s.Value
			order = append(order, http2.SettingID(s.ID))
		}
		priorities = nil
	}
	flow := template.GetConnectionFlow()
	if cfg.h2.windowUpdate > 0 {
		flow = uint32(cfg.h2.windowUpdate)
	}
	headerPriority := template.GetHeaderPriority()
	if cfg.h2.weight > 0 {
		headerPriority = &http2.PriorityParam{Weight: uint8(cfg.h2.weight - 1), Exclusive: cfg.h2.exclusive}
	}
	pseudoOrder := template.GetPseudoHeaderOrder()
	if cfg.h2.pseudoOrder != "" {
		decoded, err := fingerprint.DecodePseudoOrder(cfg.h2.pseudoOrder)
		if err != nil {
			return tlsprofiles.ClientProfile{}, native.BadFunctionArgument, err
		}
		pseudoOrder = decoded
	}

	return tlsprofiles.NewClientProfile(id, settings, order, pseudoOrder, flow, priorities, headerPriority,
		template.GetStreamID(), template.GetAllowHTTP(), template.GetHttp3Settings(), template.GetHttp3SettingsOrder(),
		template.GetHttp3PriorityParam(), template.GetHttp3PseudoHeaderOrder(), template.GetHttp3SendGreaseFrames()), native.OK, nil
}

// profileAkamai renders the HTTP/2 fingerprint of the preface p sends.
func profileAkamai(p tlsprofiles.ClientProfile) string {
	settings := lo.Map(p.GetSettingsOrder(), func(id http2.SettingID, _ int) fingerprint.Setting {
		return fingerprint.Setting{ID: uint16(id), Value: p.GetSettings()[id]}
	})
	order, _ := fingerprint.EncodePseudoOrder(p.GetPseudoHeaderOrder())
	return fingerprint.Akamai(settings, p.GetConnectionFlow(), order)
}
