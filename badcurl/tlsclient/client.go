package tlsclient

import (
	"errors"
	"fmt"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"k8s.io/klog/v2"

	"github.com/ditsuke/go-badcurl/badcurl/native"
)

// DefaultClientHello is used when no SSL_CLIENT_HELLO is set.
const DefaultClientHello = "chrome_133"

// errTooManyRedirects stops the redirect chain once MAXREDIRS is reached.
var errTooManyRedirects = errors.New(ErrTooManyRedirect)

// clientConfig is the part of a handle's options that needs its own
// tls-client client. Everything else is applied per request.
type clientConfig struct {
	hello     string
	tls       tlsShape
	h2        h2Shape
	timeoutMS int64
	follow    bool
	maxRedirs int64
	insecure  bool
	proxy     string
	http1     bool
	permute   bool
}

func (h *handle) clientConfig() clientConfig {
	hello := h.strs[native.OptSSLClientHello]
	if hello == "" {
		hello = DefaultClientHello
	}
	version := h.long(native.OptHTTPVersion)
	return clientConfig{
		hello:     hello,
		tls:       h.tlsShape(),
		h2:        h.h2Shape(),
		timeoutMS: h.long(native.OptTimeoutMS),
		follow:    h.flag(native.OptFollowLocation),
		maxRedirs: h.long(native.OptMaxRedirs),
		insecure:  !h.flag(native.OptSSLVerifyPeer) || !h.flag(native.OptSSLVerifyHost),
		proxy:     h.strs[native.OptProxy],
		http1:     version == native.HTTPVersion1_0 || version == native.HTTPVersion1_1,
		permute:   h.flag(native.OptSSLPermuteExtensions),
	}
}

// client returns the cached client for cfg, building it on first use.
func (h *handle) client(cfg clientConfig) (tls_client.HttpClient, native.Code, error) {
	if c, ok := h.clients[cfg]; ok {
		return c, native.OK, nil
	}

	profile, code, err := cfg.profile()
	if code != native.OK {
		return nil, code, err
	}

	opts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutMilliseconds(int(cfg.timeoutMS)),
		tls_client.WithClientProfile(profile),
		tls_client.WithCookieJar(h.jar),
	}
	if cfg.permute {
		opts = append(opts, tls_client.WithRandomTLSExtensionOrder())
	}
	if cfg.follow {
		maxRedirs := cfg.maxRedirs
		opts = append(opts, tls_client.WithCustomRedirectFunc(func(_ *fhttp.Request, via []*fhttp.Request) error {
			if maxRedirs >= 0 && int64(len(via)) > maxRedirs {
				return errTooManyRedirects
			}
			return nil
		}))
	} else {
		opts = append(opts, tls_client.WithNotFollowRedirects())
	}
	if cfg.insecure {
		opts = append(opts, tls_client.WithInsecureSkipVerify())
	}
	if cfg.proxy != "" {
		opts = append(opts, tls_client.WithProxyUrl(cfg.proxy))
	}
	if cfg.http1 {
		opts = append(opts, tls_client.WithForceHttp1())
	}

	c, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), opts...)
	if err != nil {
		code := native.FailedInit
		if cfg.proxy != "" {
			code = native.CouldntResolveProxy
		}
		return nil, code, fmt.Errorf("%s: %w", ErrBuildClient, err)
	}
	klog.V(2).Infof("tlsclient: built client (hello %s, custom hello %t, custom http2 %t, http1 %t, proxy %t)",
		cfg.hello, cfg.tls.ciphers != "", cfg.h2 != (h2Shape{}), cfg.http1, cfg.proxy != "")
	h.clients[cfg] = c
	return c, native.OK, nil
}
