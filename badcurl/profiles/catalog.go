package profiles

import (
	"fmt"

	"github.com/ditsuke/go-badcurl/badcurl/internal/fingerprint"
)

// Values below come from ClientHello and HTTP/2 preface captures of stock
// desktop builds on Windows 10 (Chrome, Firefox) and macOS/iOS (Safari),
// cross-checked against curl-impersonate's wrapper scripts for the same
// versions.

var (
	chromeCiphers = []string{
		"TLS_AES_128_GCM_SHA256",
		"TLS_AES_256_GCM_SHA384",
		"TLS_CHACHA20_POLY1305_SHA256",
		"ECDHE-ECDSA-AES128-GCM-SHA256",
		"ECDHE-RSA-AES128-GCM-SHA256",
		"ECDHE-ECDSA-AES256-GCM-SHA384",
		"ECDHE-RSA-AES256-GCM-SHA384",
		"ECDHE-ECDSA-CHACHA20-POLY1305",
		"ECDHE-RSA-CHACHA20-POLY1305",
		"ECDHE-RSA-AES128-SHA",
		"ECDHE-RSA-AES256-SHA",
		"AES128-GCM-SHA256",
		"AES256-GCM-SHA384",
		"AES128-SHA",
		"AES256-SHA",
	}
	chromeSigAlgs = []string{
		"ecdsa_secp256r1_sha256",
		"rsa_pss_rsae_sha256",
		"rsa_pkcs1_sha256",
		"ecdsa_secp384r1_sha384",
		"rsa_pss_rsae_sha384",
		"rsa_pkcs1_sha384",
		"rsa_pss_rsae_sha512",
		"rsa_pkcs1_sha512",
	}
	chromeExtensions         = []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 13, 18, 51, 45, 43, 27, 17513, 21}
	chromeExtensionsECH      = []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 13, 18, 51, 45, 43, 27, 17513, 65037}
	chromeExtensionsNewALPS  = []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 13, 18, 51, 45, 43, 27, 17613, 65037}
	chromeHeaderOrder        = []string{"sec-ch-ua", "sec-ch-ua-mobile", "sec-ch-ua-platform", "upgrade-insecure-requests", "user-agent", "accept", "sec-fetch-site", "sec-fetch-mode", "sec-fetch-user", "sec-fetch-dest", "accept-encoding", "accept-language"}
	chromeLegacySettings     = []fingerprint.Setting{{ID: 1, Value: 65536}, {ID: 3, Value: 1000}, {ID: 4, Value: 6291456}, {ID: 6, Value: 262144}}
	chromeSettings           = []fingerprint.Setting{{ID: 1, Value: 65536}, {ID: 2, Value: 0}, {ID: 4, Value: 6291456}, {ID: 6, Value: 262144}}
	chromePseudoHeaderOrder  = []string{":method", ":authority", ":scheme", ":path"}
	firefoxPseudoHeaderOrder = []string{":method", ":path", ":authority", ":scheme"}
	safariPseudoHeaderOrder  = []string{":method", ":scheme", ":path", ":authority"}

	firefoxCiphers = []string{
		"TLS_AES_128_GCM_SHA256",
		"TLS_CHACHA20_POLY1305_SHA256",
		"TLS_AES_256_GCM_SHA384",
		"ECDHE-ECDSA-AES128-GCM-SHA256",
		"ECDHE-RSA-AES128-GCM-SHA256",
		"ECDHE-ECDSA-CHACHA20-POLY1305",
		"ECDHE-RSA-CHACHA20-POLY1305",
		"ECDHE-ECDSA-AES256-GCM-SHA384",
		"ECDHE-RSA-AES256-GCM-SHA384",
		"ECDHE-ECDSA-AES256-SHA",
		"ECDHE-ECDSA-AES128-SHA",
		"ECDHE-RSA-AES128-SHA",
		"ECDHE-RSA-AES256-SHA",
		"AES128-GCM-SHA256",
		"AES256-GCM-SHA384",
		"AES128-SHA",
		"AES256-SHA",
	}
	firefoxSigAlgs = []string{
		"ecdsa_secp256r1_sha256",
		"ecdsa_secp384r1_sha384",
		"ecdsa_secp521r1_sha512",
		"rsa_pss_rsae_sha256",
		"rsa_pss_rsae_sha384",
		"rsa_pss_rsae_sha512",
		"rsa_pkcs1_sha256",
		"rsa_pkcs1_sha384",
		"rsa_pkcs1_sha512",
		"ecdsa_sha1",
		"rsa_pkcs1_sha1",
	}
	firefoxCurves       = []string{"X25519", "P-256", "P-384", "P-521", "ffdhe2048", "ffdhe3072"}
	firefoxHeaderOrder  = []string{"user-agent", "accept", "accept-language", "accept-encoding", "upgrade-insecure-requests", "sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site", "sec-fetch-user", "te"}
	firefoxSettings     = []fingerprint.Setting{{ID: 1, Value: 65536}, {ID: 4, Value: 131072}, {ID: 5, Value: 16384}}
	firefoxPushSettings = []fingerprint.Setting{{ID: 1, Value: 65536}, {ID: 2, Value: 0}, {ID: 4, Value: 131072}, {ID: 5, Value: 16384}}

	safariCiphers = []string{
		"TLS_AES_128_GCM_SHA256",
		"TLS_AES_256_GCM_SHA384",
		"TLS_CHACHA20_POLY1305_SHA256",
		"ECDHE-ECDSA-AES256-GCM-SHA384",
		"ECDHE-ECDSA-AES128-GCM-SHA256",
		"ECDHE-ECDSA-CHACHA20-POLY1305",
		"ECDHE-RSA-AES256-GCM-SHA384",
		"ECDHE-RSA-AES128-GCM-SHA256",
		"ECDHE-RSA-CHACHA20-POLY1305",
		"ECDHE-ECDSA-AES256-SHA",
		"ECDHE-ECDSA-AES128-SHA",
		"ECDHE-RSA-AES256-SHA",
		"ECDHE-RSA-AES128-SHA",
		"AES256-GCM-SHA384",
		"AES128-GCM-SHA256",
		"AES256-SHA",
		"AES128-SHA",
		"ECDHE-ECDSA-DES-CBC3-SHA",
		"ECDHE-RSA-DES-CBC3-SHA",
		"DES-CBC3-SHA",
	}
	safariSigAlgs = []string{
		"ecdsa_secp256r1_sha256",
		"rsa_pss_rsae_sha256",
		"rsa_pkcs1_sha256",
		"ecdsa_secp384r1_sha384",
		"ecdsa_sha1",
		"rsa_pss_rsae_sha384",
		"rsa_pkcs1_sha384",
		"rsa_pss_rsae_sha512",
		"rsa_pkcs1_sha512",
		"rsa_pkcs1_sha1",
	}
	safariExtensions  = []uint16{0, 23, 65281, 10, 11, 16, 5, 13, 18, 51, 45, 43, 27, 21}
	safariHeaderOrder = []string{"accept", "user-agent", "accept-language", "accept-encoding"}
	h2ALPN            = []string{"h2", "http/1.1"}
)

func chrome(id ID, major int, hello string, brands string, curves []string, exts []uint16) Profile {
	settings := chromeSettings
	if major < 106 {
		settings = chromeLegacySettings
	}
	encoding := "gzip, deflate, br"
	if major >= 123 {
		encoding = "gzip, deflate, br, zstd"
	}
	version := fmt.Sprintf("%d", major)
	return Profile{
		ID:      id,
		Name:    "chrome" + version,
		Browser: "Chrome",
		Version: version,
		Origin:  fmt.Sprintf("Chrome %d stable, Windows 10 x64, tls.peet.ws capture", major),
		TLS: TLS{
			ClientHello:       fmt.Sprintf("chrome_%s", hello),
			Ciphers:           chromeCiphers,
			Curves:            curves,
			SigAlgs:           chromeSigAlgs,
			Extensions:        exts,
			ALPN:              h2ALPN,
			ALPS:              true,
			CertCompression:   []string{"brotli"},
			PermuteExtensions: major >= 110,
		},
		HTTP2: HTTP2{
			Settings:          settings,
			WindowUpdate:      15663105,
			PseudoHeaderOrder: chromePseudoHeaderOrder,
			StreamWeight:      256,
			StreamExclusive:   true,
		},
		DefaultHeaders: []string{
			"sec-ch-ua: " + brands,
			"sec-ch-ua-mobile: ?0",
			`sec-ch-ua-platform: "Windows"`,
			"Upgrade-Insecure-Requests: 1",
			"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
			"Sec-Fetch-Site: none",
			"Sec-Fetch-Mode: navigate",
			"Sec-Fetch-User: ?1",
			"Sec-Fetch-Dest: document",
			"Accept-Encoding: " + encoding,
			"Accept-Language: en-US,en;q=0.9",
		},
		HeaderOrder: chromeHeaderOrder,
		UserAgent:   fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", major),
		HTTPVersion: httpVersionFor(h2ALPN),
	}
}

func firefox(id ID, major int, curves []string, exts []uint16, settings []fingerprint.Setting) Profile {
	version := fmt.Sprintf("%d", major)
	return Profile{
		ID:      id,
		Name:    "firefox" + version,
		Browser: "Firefox",
		Version: version,
		Origin:  fmt.Sprintf("Firefox %d release, Windows 10 x64, tls.peet.ws capture", major),
		TLS: TLS{
			ClientHello: "firefox_" + version,
			Ciphers:     firefoxCiphers,
			Curves:      curves,
			SigAlgs:     firefoxSigAlgs,
			Extensions:  exts,
			ALPN:        h2ALPN,
		},
		HTTP2: HTTP2{
			Settings:          settings,
			WindowUpdate:      12517377,
			PseudoHeaderOrder: firefoxPseudoHeaderOrder,
			StreamWeight:      42,
		},
		DefaultHeaders: []string{
			"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language: en-US,en;q=0.5",
			"Accept-Encoding: gzip, deflate, br",
			"Upgrade-Insecure-Requests: 1",
			"Sec-Fetch-Dest: document",
			"Sec-Fetch-Mode: navigate",
			"Sec-Fetch-Site: none",
			"Sec-Fetch-User: ?1",
			"TE: trailers",
		},
		HeaderOrder: firefoxHeaderOrder,
		UserAgent:   fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:%d.0) Gecko/20100101 Firefox/%d.0", major, major),
		HTTPVersion: httpVersionFor(h2ALPN),
	}
}

func safari(id ID, name, version, hello, ua string, settings []fingerprint.Setting, window uint32) Profile {
	return Profile{
		ID:      id,
		Name:    name,
		Browser: "Safari",
		Version: version,
		Origin:  fmt.Sprintf("Safari %s, tls.peet.ws capture", version),
		TLS: TLS{
			ClientHello:     hello,
			Ciphers:         safariCiphers,
			Curves:          []string{"X25519", "P-256", "P-384", "P-521"},
			SigAlgs:         safariSigAlgs,
			Extensions:      safariExtensions,
			ALPN:            h2ALPN,
			CertCompression: []string{"zlib"},
		},
		HTTP2: HTTP2{
			Settings:          settings,
			WindowUpdate:      window,
			PseudoHeaderOrder: safariPseudoHeaderOrder,
			StreamWeight:      255,
		},
		DefaultHeaders: []string{
			"Accept: text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language: en-US,en;q=0.9",
			"Accept-Encoding: gzip, deflate, br",
		},
		HeaderOrder: safariHeaderOrder,
		UserAgent:   ua,
		HTTPVersion: httpVersionFor(h2ALPN),
	}
}

func catalog() []Profile {
	classic := []string{"X25519", "P-256", "P-384"}
	kyber := []string{"X25519Kyber768Draft00", "X25519", "P-256", "P-384"}
	mlkem := []string{"X25519MLKEM768", "X25519", "P-256", "P-384"}

	return []Profile{
		chrome(Chrome104, 104, "104", `"Chromium";v="104", " Not A;Brand";v="99", "Google Chrome";v="104"`, classic, chromeExtensions),
		chrome(Chrome110, 110, "110", `"Chromium";v="110", "Not A(Brand";v="24", "Google Chrome";v="110"`, classic, chromeExtensions),
		chrome(Chrome117, 117, "117", `"Google Chrome";v="117", "Not;A=Brand";v="8", "Chromium";v="117"`, classic, chromeExtensions),
		chrome(Chrome120, 120, "120", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`, classic, chromeExtensionsECH),
		chrome(Chrome124, 124, "124", `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`, kyber, chromeExtensionsECH),
		chrome(Chrome131, 131, "131", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`, mlkem, chromeExtensionsECH),
		chrome(Chrome133, 133, "133", `"Not(A:Brand";v="99", "Google Chrome";v="133", "Chromium";v="133"`, mlkem, chromeExtensionsNewALPS),

		firefox(Firefox117, 117, firefoxCurves, []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 34, 51, 43, 13, 45, 28, 21}, firefoxSettings),
		firefox(Firefox120, 120, firefoxCurves, []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 34, 51, 43, 13, 45, 28, 65037}, firefoxSettings),
		firefox(Firefox133, 133, append([]string{"X25519MLKEM768"}, firefoxCurves...), []uint16{0, 23, 65281, 10, 11, 35, 16, 5, 34, 51, 43, 13, 45, 28, 27, 65037}, firefoxPushSettings),

		safari(Safari16_0, "safari16_0", "16.0", "safari_16_0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15",
			[]fingerprint.Setting{{ID: 4, Value: 4194304}, {ID: 3, Value: 100}}, 10485760),
		safari(SafariIOS17_0, "safari_ios17_0", "17.0", "safari_ios_17_0",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			[]fingerprint.Setting{{ID: 2, Value: 0}, {ID: 4, Value: 2097152}, {ID: 3, Value: 100}}, 10420225),
	}
}
